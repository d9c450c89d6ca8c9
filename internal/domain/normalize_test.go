package domain

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const hatYaiItem = `{
	"_id": "6925a1f0c1",
	"running_number": "HDY-0142",
	"created_at": "2025-11-25T08:00:00Z",
	"updated_at": "2025-11-25T09:15:00Z",
	"location": {
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [100.4747, 7.0086]},
		"properties": {
			"province": "สงขลา",
			"district": "หาดใหญ่",
			"subdistrict": "คอหงส์",
			"status": 0,
			"status_text": "รอการช่วยเหลือ",
			"type_name": "ขอความช่วยเหลือ",
			"victims": ["ผู้สูงอายุ", " เด็ก ", "", 7],
			"other": "น้ำท่วมชั้นสอง",
			"ages": "70, 8",
			"disease": "เบาหวาน",
			"patient": 2,
			"medic_status_text": "ต้องการแพทย์",
			"sick_level_summary": 3
		}
	}
}`

func TestNormalize_FullItem(t *testing.T) {
	n := NewNormalizer(ThailandBounds())

	rec, err := n.Normalize(json.RawMessage(hatYaiItem))
	require.NoError(t, err)

	assert.Equal(t, "6925a1f0c1", rec.ID)
	assert.Equal(t, "HDY-0142", rec.DisplayNumber)
	assert.InDelta(t, 7.0086, rec.Coordinates.Lat, 1e-9)
	assert.InDelta(t, 100.4747, rec.Coordinates.Lon, 1e-9)
	assert.Equal(t, Location{Province: "สงขลา", District: "หาดใหญ่", Subdistrict: "คอหงส์"}, rec.Location)
	assert.Equal(t, StatusWaiting, rec.Status)
	assert.Equal(t, "รอการช่วยเหลือ", rec.StatusText)
	assert.Equal(t, []string{"ผู้สูงอายุ", "เด็ก"}, rec.VictimTypes)
	assert.Equal(t, "น้ำท่วมชั้นสอง", rec.Note)
	assert.Equal(t, "70, 8", rec.Ages)
	assert.Equal(t, 2, rec.PatientCount)
	assert.Equal(t, 3, rec.SickLevelSummary)
	assert.Equal(t, "ต้องการแพทย์", rec.MedicStatusText)
	assert.Equal(t, "2025-11-25T09:15:00Z", rec.UpdatedAt)
	assert.True(t, rec.HasNote())
}

func TestNormalize_DefaultsMissingOptionalFields(t *testing.T) {
	n := NewNormalizer(ThailandBounds())

	rec, err := n.Normalize(json.RawMessage(`{"_id":"a","location":{"geometry":{"coordinates":[100.5,7.0]}}}`))
	require.NoError(t, err)

	assert.Empty(t, rec.DisplayNumber)
	assert.Empty(t, rec.Location.Subdistrict)
	assert.NotNil(t, rec.VictimTypes)
	assert.Empty(t, rec.VictimTypes)
	assert.Equal(t, StatusUnknown, rec.Status)
	assert.Zero(t, rec.PatientCount)
	assert.False(t, rec.HasNote())
}

func TestNormalize_LooseScalarTypes(t *testing.T) {
	n := NewNormalizer(ThailandBounds())

	rec, err := n.Normalize(json.RawMessage(`{
		"_id": 42,
		"running_number": 17,
		"location": {
			"geometry": {"coordinates": [100.5, 7.0]},
			"properties": {"status": "0", "ages": 65, "patient": null, "victims": "เด็ก"}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, "17", rec.DisplayNumber)
	assert.Equal(t, "65", rec.Ages)
	assert.Equal(t, StatusUnknown, rec.Status, "quoted status is not numeric")
	assert.Zero(t, rec.PatientCount)
	assert.Empty(t, rec.VictimTypes)
}

func TestNormalize_Rejections(t *testing.T) {
	n := NewNormalizer(ThailandBounds())

	tests := []struct {
		name string
		item string
		want error
	}{
		{"out of bounds", `{"_id":"a","location":{"geometry":{"coordinates":[999,999]}}}`, ErrOutOfBounds},
		{"swapped lat lng", `{"_id":"a","location":{"geometry":{"coordinates":[7.0,100.5]}}}`, ErrOutOfBounds},
		{"non numeric", `{"_id":"a","location":{"geometry":{"coordinates":["100.5","7.0"]}}}`, ErrInvalidCoordinates},
		{"single element", `{"_id":"a","location":{"geometry":{"coordinates":[100.5]}}}`, ErrInvalidCoordinates},
		{"three elements", `{"_id":"a","location":{"geometry":{"coordinates":[100.5,7.0,0]}}}`, ErrInvalidCoordinates},
		{"missing coordinates", `{"_id":"a","location":{"geometry":{}}}`, ErrInvalidCoordinates},
		{"null location", `{"_id":"a","location":null}`, ErrInvalidCoordinates},
		{"missing id", `{"location":{"geometry":{"coordinates":[100.5,7.0]}}}`, ErrMissingID},
		{"not an object", `[1,2]`, ErrMalformedItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(json.RawMessage(tt.item))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalizeItems_RejectsDoNotAffectSiblings(t *testing.T) {
	n := NewNormalizer(ThailandBounds())
	items := []json.RawMessage{
		json.RawMessage(`{"_id":"1","location":{"geometry":{"coordinates":[100.5,7.0]}}}`),
		json.RawMessage(`{"_id":"2","location":{"geometry":{"coordinates":[999,999]}}}`),
		json.RawMessage(`{"_id":"3","location":{"geometry":{"coordinates":[100.4,6.9]}}}`),
		json.RawMessage(`"garbage"`),
	}

	records, rejected := n.NormalizeItems(items, discardLogger())

	assert.Equal(t, 2, rejected)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, "3", records[1].ID)
}

func TestDedupeByID(t *testing.T) {
	records := []IncidentRecord{{ID: "a", Note: "first"}, {ID: "b"}, {ID: "a", Note: "second"}}

	out := DedupeByID(records)

	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Note)
	assert.Equal(t, "b", out[1].ID)
}

func TestIncidentRecord_Helpers(t *testing.T) {
	rec := IncidentRecord{ID: "x", DisplayNumber: "12", Coordinates: pointAt(7.0086, 100.4747), UpdatedAt: "2025-11-25T09:15:00Z"}

	assert.Equal(t, "#12", rec.Label())
	assert.Equal(t, "https://www.google.com/maps?q=7.0086,100.4747", rec.MapsURL())

	ts, ok := rec.UpdatedTime()
	require.True(t, ok)
	assert.Equal(t, 9, ts.Hour())

	rec.UpdatedAt = "not a time"
	rec.CreatedAt = "2025-11-25 08:00:00"
	ts, ok = rec.UpdatedTime()
	require.True(t, ok)
	assert.Equal(t, 8, ts.Hour())

	assert.Equal(t, "x", IncidentRecord{ID: "x"}.Label())
	assert.False(t, IncidentRecord{Note: "  \n"}.HasNote())
}
