package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

func TestNewMarker_Color(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{status: domain.StatusWaiting, want: ColorWaiting},
		{status: domain.StatusInProgress, want: ColorOther},
		{status: domain.StatusUnknown, want: ColorOther},
	}

	for _, tt := range tests {
		t.Run(domain.StatusLabel(tt.status), func(t *testing.T) {
			m := NewMarker(domain.IncidentRecord{ID: "a", Status: tt.status})
			assert.Equal(t, tt.want, m.Color)
		})
	}
}

func TestPopupContent(t *testing.T) {
	rec := domain.IncidentRecord{
		ID:            "a1",
		DisplayNumber: "1024",
		Coordinates:   geo.Point{Lat: 7.0, Lon: 100.47},
		Location:      domain.Location{Province: "สงขลา", District: "หาดใหญ่", Subdistrict: "คอหงส์"},
		Status:        domain.StatusWaiting,
		VictimTypes:   []string{"ผู้สูงอายุ", "เด็ก"},
		Note:          "  ติดบนหลังคา ",
		UpdatedAt:     "2025-11-25T03:30:00Z",
	}

	got := PopupContent(rec)

	assert.Contains(t, got, "#1024\n")
	assert.Contains(t, got, "สถานะ: รอการช่วยเหลือ\n")
	assert.Contains(t, got, "พื้นที่: คอหงส์, หาดใหญ่, สงขลา\n")
	assert.Contains(t, got, "ผู้ประสบภัย: ผู้สูงอายุ, เด็ก\n")
	assert.Contains(t, got, "หมายเหตุ: ติดบนหลังคา\n")
	assert.Contains(t, got, "อัปเดต: 25/11/2025 10:30\n")
	assert.Contains(t, got, rec.MapsURL())
	assert.NotContains(t, got, "อายุ:")
}
