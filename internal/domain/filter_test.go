package domain

import (
	"testing"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointAt(lat, lon float64) geo.Point {
	return geo.Point{Lat: lat, Lon: lon}
}

func record(id string, status int, subdistrict string, victims ...string) IncidentRecord {
	if victims == nil {
		victims = []string{}
	}
	return IncidentRecord{
		ID:          id,
		Status:      status,
		Location:    Location{Subdistrict: subdistrict},
		VictimTypes: victims,
		Coordinates: pointAt(7.0, 100.5),
	}
}

func ids(records []IncidentRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilter_EmptySetsMatchNothing(t *testing.T) {
	records := []IncidentRecord{
		record("a", StatusWaiting, "คอหงส์"),
		record("b", StatusInProgress, "คอหงส์", "เด็ก"),
	}

	tests := []struct {
		name string
		p    FilterPredicate
	}{
		{"no statuses", NewFilterPredicate(nil, []string{GeneralVictimType, "เด็ก"}, MatchAny, AllAreas)},
		{"no victims", NewFilterPredicate([]int{0, 3}, nil, MatchAny, AllAreas)},
		{"no victims all mode", NewFilterPredicate([]int{0, 3}, nil, MatchAll, AllAreas)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(records, tt.p)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestFilter_AnyMode(t *testing.T) {
	records := []IncidentRecord{
		record("general", StatusWaiting, "คอหงส์"),
		record("child", StatusInProgress, "คอหงส์", "เด็ก"),
		record("elder", StatusWaiting, "หาดใหญ่", "ผู้สูงอายุ", "เด็ก"),
		record("pet", StatusWaiting, "หาดใหญ่", "สัตว์เลี้ยง"),
		record("unknown", StatusUnknown, "หาดใหญ่"),
	}

	tests := []struct {
		name string
		p    FilterPredicate
		want []string
	}{
		{
			name: "general selects records without victims",
			p:    NewFilterPredicate([]int{0}, []string{GeneralVictimType}, MatchAny, AllAreas),
			want: []string{"general"},
		},
		{
			name: "intersection",
			p:    NewFilterPredicate([]int{0, 3}, []string{"เด็ก"}, MatchAny, AllAreas),
			want: []string{"child", "elder"},
		},
		{
			name: "status restricts",
			p:    NewFilterPredicate([]int{3}, []string{"เด็ก", GeneralVictimType}, MatchAny, AllAreas),
			want: []string{"child"},
		},
		{
			name: "area restricts",
			p:    NewFilterPredicate([]int{0, 3}, []string{"เด็ก", "สัตว์เลี้ยง", GeneralVictimType}, MatchAny, "หาดใหญ่"),
			want: []string{"elder", "pet"},
		},
		{
			name: "unknown area matches nothing",
			p:    NewFilterPredicate([]int{0, 3}, []string{"เด็ก"}, MatchAny, "สะเดา"),
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(records, tt.p)))
		})
	}
}

func TestFilter_AllMode(t *testing.T) {
	records := []IncidentRecord{
		record("none", StatusWaiting, ""),
		record("child", StatusWaiting, "", "เด็ก"),
		record("child-elder", StatusWaiting, "", "เด็ก", "ผู้สูงอายุ"),
		record("child-twice", StatusWaiting, "", "เด็ก", "เด็ก"),
		record("general-literal", StatusWaiting, "", GeneralVictimType),
		record("general-child", StatusWaiting, "", GeneralVictimType, "เด็ก"),
	}

	tests := []struct {
		name    string
		victims []string
		want    []string
	}{
		{"general alone selects zero victims only", []string{GeneralVictimType}, []string{"none"}},
		{"exact single", []string{"เด็ก"}, []string{"child", "child-twice"}},
		{"exact pair", []string{"เด็ก", "ผู้สูงอายุ"}, []string{"child-elder"}},
		{"general with others is exact-set", []string{GeneralVictimType, "เด็ก"}, []string{"general-child"}},
		{"superset selection matches nothing", []string{"เด็ก", "ผู้สูงอายุ", "คนพิการ"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFilterPredicate([]int{0}, tt.victims, MatchAll, AllAreas)
			assert.Equal(t, tt.want, ids(Filter(records, p)))
		})
	}
}

func TestFilter_ThreeItemScenario(t *testing.T) {
	n := NewNormalizer(ThailandBounds())
	env, err := ParseEnvelope([]byte(`{"fetched_at":"t1","data":{"data":[
		{"_id":"a","location":{"geometry":{"coordinates":[100.47,7.00]},"properties":{"status":0,"victims":[]}}},
		{"_id":"b","location":{"geometry":{"coordinates":[100.48,7.01]},"properties":{"status":3,"victims":["เด็ก"]}}},
		{"_id":"c","location":{"geometry":{"coordinates":[999,999]},"properties":{"status":0}}}
	]}}`))
	require.NoError(t, err)

	records, rejected := n.NormalizeItems(env.Items(), discardLogger())
	require.Len(t, records, 2)
	assert.Equal(t, 1, rejected)

	p := NewFilterPredicate([]int{0}, []string{GeneralVictimType}, MatchAny, AllAreas)
	assert.Equal(t, []string{"a"}, ids(Filter(records, p)))
}

func TestFilterPredicate_UpdatesAreCopies(t *testing.T) {
	base := DefaultFilterPredicate([]string{"เด็ก", GeneralVictimType})

	updated := base.WithStatus(StatusWaiting, false).
		WithVictim("เด็ก", false).
		WithMode(MatchAll).
		WithArea("คอหงส์")

	assert.True(t, base.HasStatus(StatusWaiting))
	assert.True(t, base.HasVictim("เด็ก"))
	assert.Equal(t, MatchAny, base.Mode())
	assert.Equal(t, AllAreas, base.Area())

	assert.False(t, updated.HasStatus(StatusWaiting))
	assert.True(t, updated.HasStatus(StatusInProgress))
	assert.False(t, updated.HasVictim("เด็ก"))
	assert.Equal(t, MatchAll, updated.Mode())
	assert.Equal(t, "คอหงส์", updated.Area())

	cleared := updated.WithVictims(nil).WithArea("")
	assert.Empty(t, cleared.Victims())
	assert.Equal(t, AllAreas, cleared.Area())
}

func TestParseVictimMode(t *testing.T) {
	tests := []struct {
		in      string
		want    VictimMode
		wantErr bool
	}{
		{"any", MatchAny, false},
		{"OR", MatchAny, false},
		{"all", MatchAll, false},
		{" and ", MatchAll, false},
		{"xor", MatchAny, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVictimMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) VictimMode {
	t.Helper()
	m, err := ParseVictimMode(s)
	require.NoError(t, err)
	return m
}
