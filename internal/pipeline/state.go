package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
)

// State is the load state machine: Idle, then Loading, then Ready or
// Failed. Ready and Failed return to Loading on refresh or poll.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the controller for display.
type Status struct {
	State         State               `json:"state"`
	CycleID       string              `json:"cycle_id,omitempty"`
	Token         string              `json:"fetched_at,omitempty"`
	LastUpdated   time.Time           `json:"last_updated,omitzero"`
	FromCache     bool                `json:"from_cache"`
	CacheEnabled  bool                `json:"cache_enabled"`
	MapHidden     bool                `json:"map_hidden"`
	LastError     string              `json:"last_error,omitempty"`
	Notice        string              `json:"notice,omitempty"`
	Rejected      int                 `json:"rejected"`
	LoadDuration  time.Duration       `json:"load_duration_ns"`
	Statistics    domain.Statistics   `json:"statistics"`
	VictimOptions []string            `json:"victim_options"`
	AreaOptions   []domain.AreaOption `json:"area_options"`
	Filter        FilterStatus        `json:"filter"`
}

// FilterStatus describes the active predicate.
type FilterStatus struct {
	Statuses []int    `json:"statuses"`
	Victims  []string `json:"victims"`
	Mode     string   `json:"mode"`
	Area     string   `json:"area"`
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:         c.state,
		CycleID:       c.cycleID,
		Token:         string(c.token),
		LastUpdated:   c.lastUpdated,
		FromCache:     c.fromCache,
		CacheEnabled:  c.cacheEnabled,
		MapHidden:     c.mapHidden,
		Rejected:      c.rejected,
		LoadDuration:  c.loadDuration,
		Statistics:    domain.ComputeStatistics(c.records, c.filtered),
		VictimOptions: c.victimOptions,
		AreaOptions:   c.areaOptions,
		Filter:        filterStatus(c.predicate),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if c.notice != "" && c.clock.Now().Before(c.noticeUntil) {
		st.Notice = c.notice
	}
	return st
}

func filterStatus(p domain.FilterPredicate) FilterStatus {
	var statuses []int
	for _, s := range []int{domain.StatusWaiting, domain.StatusInProgress} {
		if p.HasStatus(s) {
			statuses = append(statuses, s)
		}
	}
	victims := p.Victims()
	slices.Sort(victims)
	return FilterStatus{
		Statuses: statuses,
		Victims:  victims,
		Mode:     p.Mode().String(),
		Area:     p.Area(),
	}
}
