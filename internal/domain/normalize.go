package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Rejection reasons for a single feed item.
var (
	ErrMalformedItem      = errors.New("malformed item")
	ErrMissingID          = errors.New("item has no _id")
	ErrInvalidCoordinates = errors.New("coordinates must be a [lng, lat] pair of numbers")
	ErrOutOfBounds        = errors.New("coordinates outside deployment bounds")
)

// ThailandBounds is the plausible region for reports: longitude 97-106,
// latitude 5-21.
func ThailandBounds() geo.Bounds {
	return geo.NewBounds(5, 97, 21, 106)
}

// Normalizer converts raw feed items into IncidentRecords. It is safe for
// concurrent use.
type Normalizer struct {
	bounds geo.Bounds
}

// NewNormalizer creates a Normalizer that rejects coordinates outside bounds.
func NewNormalizer(bounds geo.Bounds) *Normalizer {
	return &Normalizer{bounds: bounds}
}

// rawItem mirrors the parts of a feed item the normalizer reads. Scalar
// fields stay raw because upstream types are inconsistent.
type rawItem struct {
	ID            json.RawMessage `json:"_id"`
	RunningNumber json.RawMessage `json:"running_number"`
	CreatedAt     json.RawMessage `json:"created_at"`
	UpdatedAt     json.RawMessage `json:"updated_at"`
	Location      struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Geometry   struct {
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"location"`
}

// Normalize validates one raw item and builds its record.
func (n *Normalizer) Normalize(raw json.RawMessage) (IncidentRecord, error) {
	var item rawItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return IncidentRecord{}, fmt.Errorf("%w: %w", ErrMalformedItem, err)
	}

	point, err := parseCoordinates(item.Location.Geometry.Coordinates)
	if err != nil {
		return IncidentRecord{}, err
	}
	if !n.bounds.Contains(point) {
		return IncidentRecord{}, fmt.Errorf("%w: %s", ErrOutOfBounds, point)
	}

	id := scalarText(item.ID)
	if id == "" {
		return IncidentRecord{}, ErrMissingID
	}

	props := item.Location.Properties
	displayNumber := scalarText(item.RunningNumber)
	if displayNumber == "" {
		displayNumber = scalarText(props["running_number"])
	}
	updatedAt := scalarText(item.UpdatedAt)
	if updatedAt == "" {
		updatedAt = scalarText(props["updated_at"])
	}

	return IncidentRecord{
		ID:            id,
		DisplayNumber: displayNumber,
		Coordinates:   point,
		Location: Location{
			Province:    scalarText(props["province"]),
			District:    scalarText(props["district"]),
			Subdistrict: scalarText(props["subdistrict"]),
		},
		Status:           parseStatus(props["status"]),
		StatusText:       scalarText(props["status_text"]),
		TypeName:         scalarText(props["type_name"]),
		VictimTypes:      parseVictims(props["victims"]),
		Note:             scalarText(props["other"]),
		Ages:             scalarText(props["ages"]),
		Disease:          scalarText(props["disease"]),
		PatientCount:     intOrZero(props["patient"]),
		MedicStatusText:  scalarText(props["medic_status_text"]),
		SickLevelSummary: intOrZero(props["sick_level_summary"]),
		CreatedAt:        scalarText(item.CreatedAt),
		UpdatedAt:        updatedAt,
	}, nil
}

// NormalizeItems normalizes every item, dropping rejects. Rejections are
// logged at debug level and counted; they never abort the batch.
func (n *Normalizer) NormalizeItems(items []json.RawMessage, logger *slog.Logger) ([]IncidentRecord, int) {
	records := make([]IncidentRecord, 0, len(items))
	rejected := 0
	for i, raw := range items {
		rec, err := n.Normalize(raw)
		if err != nil {
			rejected++
			logger.Debug("rejected feed item", "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

// DedupeByID keeps the first record for each id, preserving order.
func DedupeByID(records []IncidentRecord) []IncidentRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]IncidentRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func parseCoordinates(raw json.RawMessage) (geo.Point, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return geo.Point{}, ErrInvalidCoordinates
	}
	lon, ok := numberValue(pair[0])
	if !ok {
		return geo.Point{}, ErrInvalidCoordinates
	}
	lat, ok := numberValue(pair[1])
	if !ok {
		return geo.Point{}, ErrInvalidCoordinates
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}

// parseStatus accepts integral JSON numbers only.
func parseStatus(raw json.RawMessage) int {
	f, ok := numberValue(raw)
	if !ok || f != math.Trunc(f) {
		return StatusUnknown
	}
	return int(f)
}

func parseVictims(raw json.RawMessage) []string {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []string{}
	}
	victims := make([]string, 0, len(entries))
	for _, e := range entries {
		if v := strings.TrimSpace(stringValue(e)); v != "" {
			victims = append(victims, v)
		}
	}
	return victims
}

// numberValue reports the value of a JSON number literal. Quoted numbers are
// not numbers.
func numberValue(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func intOrZero(raw json.RawMessage) int {
	f, ok := numberValue(raw)
	if !ok {
		return 0
	}
	return int(f)
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// scalarText renders a string, number or boolean as text. Null, objects and
// arrays become "".
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		return stringValue(raw)
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}
