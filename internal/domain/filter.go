package domain

import (
	"fmt"
	"strings"
)

// GeneralVictimType is the victim category meaning no specific vulnerable group.
const GeneralVictimType = "ทั่วไป"

// AllAreas is the area selector that disables area filtering.
const AllAreas = "all"

// VictimMode controls how the victim-type set is matched.
type VictimMode int

const (
	// MatchAny passes records sharing at least one selected victim type.
	MatchAny VictimMode = iota
	// MatchAll passes records whose victim types equal the selected set.
	MatchAll
)

func (m VictimMode) String() string {
	if m == MatchAll {
		return "all"
	}
	return "any"
}

// ParseVictimMode accepts "any"/"or" and "all"/"and".
func ParseVictimMode(s string) (VictimMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "or":
		return MatchAny, nil
	case "all", "and":
		return MatchAll, nil
	default:
		return MatchAny, fmt.Errorf("unknown victim mode %q", s)
	}
}

// FilterPredicate selects records by status, victim type and area. It is a
// value: the With* methods return modified copies and never touch the receiver.
type FilterPredicate struct {
	statuses map[int]struct{}
	victims  map[string]struct{}
	mode     VictimMode
	area     string
}

// NewFilterPredicate builds a predicate. An empty area means AllAreas.
func NewFilterPredicate(statuses []int, victims []string, mode VictimMode, area string) FilterPredicate {
	p := FilterPredicate{
		statuses: make(map[int]struct{}, len(statuses)),
		victims:  make(map[string]struct{}, len(victims)),
		mode:     mode,
		area:     area,
	}
	for _, s := range statuses {
		p.statuses[s] = struct{}{}
	}
	for _, v := range victims {
		p.victims[v] = struct{}{}
	}
	if p.area == "" {
		p.area = AllAreas
	}
	return p
}

// DefaultFilterPredicate selects both published statuses, the given victim
// options, any-mode matching and every area.
func DefaultFilterPredicate(victimOptions []string) FilterPredicate {
	return NewFilterPredicate([]int{StatusWaiting, StatusInProgress}, victimOptions, MatchAny, AllAreas)
}

func (p FilterPredicate) clone() FilterPredicate {
	c := FilterPredicate{
		statuses: make(map[int]struct{}, len(p.statuses)),
		victims:  make(map[string]struct{}, len(p.victims)),
		mode:     p.mode,
		area:     p.area,
	}
	for s := range p.statuses {
		c.statuses[s] = struct{}{}
	}
	for v := range p.victims {
		c.victims[v] = struct{}{}
	}
	return c
}

// WithStatus returns a copy with status selected or deselected.
func (p FilterPredicate) WithStatus(status int, selected bool) FilterPredicate {
	c := p.clone()
	if selected {
		c.statuses[status] = struct{}{}
	} else {
		delete(c.statuses, status)
	}
	return c
}

// WithVictim returns a copy with one victim type selected or deselected.
func (p FilterPredicate) WithVictim(victim string, selected bool) FilterPredicate {
	c := p.clone()
	if selected {
		c.victims[victim] = struct{}{}
	} else {
		delete(c.victims, victim)
	}
	return c
}

// WithVictims returns a copy whose victim set is exactly victims.
func (p FilterPredicate) WithVictims(victims []string) FilterPredicate {
	c := p.clone()
	c.victims = make(map[string]struct{}, len(victims))
	for _, v := range victims {
		c.victims[v] = struct{}{}
	}
	return c
}

// WithMode returns a copy using mode.
func (p FilterPredicate) WithMode(mode VictimMode) FilterPredicate {
	c := p.clone()
	c.mode = mode
	return c
}

// WithArea returns a copy restricted to a subdistrict, or AllAreas.
func (p FilterPredicate) WithArea(area string) FilterPredicate {
	c := p.clone()
	c.area = area
	if c.area == "" {
		c.area = AllAreas
	}
	return c
}

// HasStatus reports whether status is selected.
func (p FilterPredicate) HasStatus(status int) bool {
	_, ok := p.statuses[status]
	return ok
}

// HasVictim reports whether a victim type is selected.
func (p FilterPredicate) HasVictim(victim string) bool {
	_, ok := p.victims[victim]
	return ok
}

// Victims returns the selected victim types in no particular order.
func (p FilterPredicate) Victims() []string {
	out := make([]string, 0, len(p.victims))
	for v := range p.victims {
		out = append(out, v)
	}
	return out
}

// Mode returns the victim matching mode.
func (p FilterPredicate) Mode() VictimMode { return p.mode }

// Area returns the area selector.
func (p FilterPredicate) Area() string { return p.area }

// Matches applies all three criteria to one record.
func (p FilterPredicate) Matches(r IncidentRecord) bool {
	if len(p.statuses) == 0 || len(p.victims) == 0 {
		return false
	}
	if _, ok := p.statuses[r.Status]; !ok {
		return false
	}
	if !p.matchesVictims(r.VictimTypes) {
		return false
	}
	return p.area == AllAreas || r.Location.Subdistrict == p.area
}

func (p FilterPredicate) matchesVictims(types []string) bool {
	if p.mode == MatchAny {
		if len(types) == 0 {
			_, general := p.victims[GeneralVictimType]
			return general
		}
		for _, t := range types {
			if _, ok := p.victims[t]; ok {
				return true
			}
		}
		return false
	}

	// General alone selects only records that name no victim type.
	if _, general := p.victims[GeneralVictimType]; general && len(p.victims) == 1 {
		return len(types) == 0
	}

	present := make(map[string]struct{}, len(types))
	for _, t := range types {
		if _, ok := p.victims[t]; !ok {
			return false
		}
		present[t] = struct{}{}
	}
	return len(present) == len(p.victims)
}

// Filter returns the records matching p, in input order.
func Filter(records []IncidentRecord, p FilterPredicate) []IncidentRecord {
	out := make([]IncidentRecord, 0)
	if len(p.statuses) == 0 || len(p.victims) == 0 {
		return out
	}
	for _, r := range records {
		if p.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
