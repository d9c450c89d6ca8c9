package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Marker colours by status.
const (
	ColorWaiting = "#ffc107"
	ColorOther   = "#17a2b8"
)

var bangkok = time.FixedZone("ICT", 7*60*60)

// Marker is one materialized map marker. ID is the source record's id.
type Marker struct {
	ID       string    `json:"id"`
	Position geo.Point `json:"position"`
	Status   int       `json:"status"`
	Color    string    `json:"color"`
	Title    string    `json:"title"`
	Popup    string    `json:"popup"`
}

// NewMarker builds the marker for a record.
func NewMarker(r domain.IncidentRecord) Marker {
	color := ColorOther
	if r.Status == domain.StatusWaiting {
		color = ColorWaiting
	}
	return Marker{
		ID:       r.ID,
		Position: r.Coordinates,
		Status:   r.Status,
		Color:    color,
		Title:    r.Label(),
		Popup:    PopupContent(r),
	}
}

// PopupContent renders the plain-text popup for a record. Empty fields are
// left out.
func PopupContent(r domain.IncidentRecord) string {
	var b strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	b.WriteString(r.Label())
	b.WriteByte('\n')
	statusText := r.StatusText
	if statusText == "" {
		statusText = domain.StatusLabel(r.Status)
	}
	line("สถานะ", statusText)
	line("พื้นที่", joinNonEmpty(", ", r.Location.Subdistrict, r.Location.District, r.Location.Province))
	line("ผู้ประสบภัย", strings.Join(r.VictimTypes, ", "))
	line("อายุ", r.Ages)
	line("โรคประจำตัว", r.Disease)
	if r.PatientCount > 0 {
		line("จำนวนผู้ป่วย", fmt.Sprint(r.PatientCount))
	}
	line("สถานะการแพทย์", r.MedicStatusText)
	line("หมายเหตุ", strings.TrimSpace(r.Note))
	if t, ok := r.UpdatedTime(); ok {
		line("อัปเดต", t.In(bangkok).Format("02/01/2006 15:04"))
	}
	b.WriteString(r.MapsURL())
	return b.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
