package domain

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// victimPriority lists the most vulnerable groups first.
var victimPriority = []string{
	"ผู้ป่วยติดเตียง",
	"ผู้ป่วยติดบ้าน",
	"เด็ก",
	"ผู้สูงอายุ",
	"คนพิการ",
	GeneralVictimType,
	"สัตว์เลี้ยง",
}

// CleanVictimType trims a raw victim entry and reports whether it is usable
// as a filter option. Entries carrying "^" or shorter than two characters
// are scraping artifacts.
func CleanVictimType(raw string) (string, bool) {
	if strings.Contains(raw, "^") {
		return "", false
	}
	cleaned := strings.TrimSpace(raw)
	if utf8.RuneCountInString(cleaned) < 2 {
		return "", false
	}
	return cleaned, true
}

// VictimTypeOptions lists the distinct usable victim types in records:
// priority groups first, the rest in Thai collation order.
func VictimTypeOptions(records []IncidentRecord) []string {
	seen := make(map[string]struct{})
	var types []string
	for _, r := range records {
		for _, v := range r.VictimTypes {
			cleaned, ok := CleanVictimType(v)
			if !ok {
				continue
			}
			if _, dup := seen[cleaned]; dup {
				continue
			}
			seen[cleaned] = struct{}{}
			types = append(types, cleaned)
		}
	}

	col := collate.New(language.Thai)
	sort.SliceStable(types, func(i, j int) bool {
		pi, pj := slices.Index(victimPriority, types[i]), slices.Index(victimPriority, types[j])
		switch {
		case pi >= 0 && pj >= 0:
			return pi < pj
		case pi >= 0:
			return true
		case pj >= 0:
			return false
		default:
			return col.CompareString(types[i], types[j]) < 0
		}
	})
	return types
}

// AreaOption is a subdistrict with the number of records filed from it.
type AreaOption struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AreaOptions counts records per non-empty subdistrict, most frequent first.
// Ties keep first-seen order.
func AreaOptions(records []IncidentRecord) []AreaOption {
	index := make(map[string]int)
	var opts []AreaOption
	for _, r := range records {
		name := r.Location.Subdistrict
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			opts[i].Count++
			continue
		}
		index[name] = len(opts)
		opts = append(opts, AreaOption{Name: name, Count: 1})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].Count > opts[j].Count
	})
	return opts
}

// Statistics summarises the loaded and filtered sets.
type Statistics struct {
	Total      int `json:"total"`
	Filtered   int `json:"filtered"`
	Waiting    int `json:"waiting"`
	InProgress int `json:"in_progress"`
}

// ComputeStatistics counts statuses over the filtered set.
func ComputeStatistics(all, filtered []IncidentRecord) Statistics {
	s := Statistics{Total: len(all), Filtered: len(filtered)}
	for _, r := range filtered {
		switch r.Status {
		case StatusWaiting:
			s.Waiting++
		case StatusInProgress:
			s.InProgress++
		}
	}
	return s
}
