package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Status values published by the feed.
const (
	StatusUnknown    = -1
	StatusWaiting    = 0
	StatusInProgress = 3
)

// StatusLabel returns the Thai display label for a status value.
func StatusLabel(status int) string {
	switch status {
	case StatusWaiting:
		return "รอการช่วยเหลือ"
	case StatusInProgress:
		return "กำลังช่วยเหลือ"
	default:
		return "ไม่ทราบสถานะ"
	}
}

// Location is the administrative area a report was filed from.
type Location struct {
	Province    string `json:"province"`
	District    string `json:"district"`
	Subdistrict string `json:"subdistrict"`
}

// IncidentRecord is a normalized rescue request. Records are immutable once
// built; a successful load replaces the whole set.
type IncidentRecord struct {
	ID               string    `json:"id"`
	DisplayNumber    string    `json:"display_number"`
	Coordinates      geo.Point `json:"coordinates"`
	Location         Location  `json:"location"`
	Status           int       `json:"status"`
	StatusText       string    `json:"status_text"`
	TypeName         string    `json:"type_name"`
	VictimTypes      []string  `json:"victim_types"`
	Note             string    `json:"note"`
	Ages             string    `json:"ages"`
	Disease          string    `json:"disease"`
	PatientCount     int       `json:"patient_count"`
	MedicStatusText  string    `json:"medic_status_text"`
	SickLevelSummary int       `json:"sick_level_summary"`
	CreatedAt        string    `json:"created_at"`
	UpdatedAt        string    `json:"updated_at"`
}

// HasNote reports whether the free-text note has visible content.
func (r IncidentRecord) HasNote() bool {
	return strings.TrimSpace(r.Note) != ""
}

// Label is the human-facing reference for the record.
func (r IncidentRecord) Label() string {
	if r.DisplayNumber != "" {
		return "#" + r.DisplayNumber
	}
	return r.ID
}

// MapsURL links the record's position in Google Maps.
func (r IncidentRecord) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", r.Coordinates.Lat, r.Coordinates.Lon)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
}

// UpdatedTime parses UpdatedAt, falling back to CreatedAt.
func (r IncidentRecord) UpdatedTime() (time.Time, bool) {
	if t, ok := parseTimestamp(r.UpdatedAt); ok {
		return t, true
	}
	return parseTimestamp(r.CreatedAt)
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
