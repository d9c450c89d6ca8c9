package notes

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

type fakeViewport struct {
	mu     sync.Mutex
	bounds geo.Bounds
	calls  int
}

func (v *fakeViewport) Bounds() geo.Bounds {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.bounds
}

func (v *fakeViewport) set(b geo.Bounds) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bounds = b
}

var (
	hatYai   = geo.NewBounds(6.9, 100.4, 7.1, 100.6)
	songkhla = geo.NewBounds(7.1, 100.5, 7.3, 100.7)
)

func noted(id string, lat, lon float64) domain.IncidentRecord {
	return domain.IncidentRecord{
		ID:          id,
		Coordinates: geo.Point{Lat: lat, Lon: lon},
		Note:        "ต้องการเรือ",
	}
}

func notedIn(prefix string, n int) []domain.IncidentRecord {
	out := make([]domain.IncidentRecord, n)
	for i := range out {
		out[i] = noted(fmt.Sprintf("%s-%d", prefix, i), 7.0, 100.5)
	}
	return out
}

func ids(records []domain.IncidentRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestRefresh_WindowsNotedRecords(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)

	blank := noted("blank", 7.0, 100.5)
	blank.Note = "   "
	page := p.SetRecords([]domain.IncidentRecord{
		noted("in", 7.0, 100.5),
		noted("outside", 7.25, 100.65),
		blank,
		noted("in-2", 6.95, 100.45),
	})

	assert.Equal(t, []string{"in", "in-2"}, ids(page.Items))
	assert.Equal(t, 2, page.Total)
	assert.False(t, page.HasMore())
	assert.Empty(t, page.Separators)
}

func TestRefresh_PaginationIdentity(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)
	records := notedIn("n", 300)

	p.SetRecords(records)
	_, ok := p.LoadMore()
	require.True(t, ok)
	require.Equal(t, 108, p.DisplayCount())

	// Viewport jitter that keeps the same members.
	vp.set(geo.NewBounds(6.95, 100.45, 7.05, 100.55))
	p.Refresh()
	assert.Equal(t, 108, p.DisplayCount(), "unchanged members keep the cursor")

	// Same records passed again as a new slice.
	p.SetRecords(append([]domain.IncidentRecord(nil), records...))
	assert.Equal(t, 108, p.DisplayCount())

	// One member gone.
	p.SetRecords(records[1:])
	assert.Equal(t, InitialDisplay, p.DisplayCount(), "changed members reset the cursor")
}

func TestRefresh_ReorderResetsCursor(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)
	records := notedIn("n", 20)

	p.SetRecords(records)
	_, ok := p.LoadMore()
	require.True(t, ok)
	require.Equal(t, 20, p.DisplayCount())

	swapped := append([]domain.IncidentRecord(nil), records...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	p.SetRecords(swapped)
	assert.Equal(t, InitialDisplay, p.DisplayCount())
}

func TestLoadMore_Pages(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)

	page := p.SetRecords(notedIn("n", 250))
	assert.Len(t, page.Items, 8)
	assert.Equal(t, 242, page.Remaining)
	assert.Equal(t, 100, page.NextLoad)

	page, ok := p.LoadMore()
	require.True(t, ok)
	assert.Len(t, page.Items, 108)
	assert.Equal(t, []Separator{{Index: 8, Batch: 2, From: 9, To: 108}}, page.Separators)

	page, ok = p.LoadMore()
	require.True(t, ok)
	assert.Len(t, page.Items, 208)
	assert.Equal(t, 42, page.NextLoad)

	page, ok = p.LoadMore()
	require.True(t, ok)
	assert.Len(t, page.Items, 250)
	assert.False(t, page.HasMore())
	assert.Equal(t, []Separator{
		{Index: 8, Batch: 2, From: 9, To: 108},
		{Index: 108, Batch: 3, From: 109, To: 208},
		{Index: 208, Batch: 4, From: 209, To: 250},
	}, page.Separators)

	_, ok = p.LoadMore()
	assert.False(t, ok, "nothing left to load")
	assert.Equal(t, 250, p.DisplayCount())
}

func TestLoadMore_EmptyList(t *testing.T) {
	p := New(&fakeViewport{bounds: hatYai}, nil)
	p.SetRecords(nil)

	_, ok := p.LoadMore()
	assert.False(t, ok)
	assert.Equal(t, InitialDisplay, p.DisplayCount())
}

func TestLoadMore_ConcurrentTriggerAdvancesOnce(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var blockNext bool
	var mu sync.Mutex

	sink := func(Page) {
		mu.Lock()
		block := blockNext
		blockNext = false
		mu.Unlock()
		if block {
			close(entered)
			<-release
		}
	}

	p := New(&fakeViewport{bounds: hatYai}, sink)
	p.SetRecords(notedIn("n", 500))

	mu.Lock()
	blockNext = true
	mu.Unlock()

	firstDone := make(chan bool)
	go func() {
		_, ok := p.LoadMore()
		firstDone <- ok
	}()
	<-entered

	_, ok := p.LoadMore()
	assert.False(t, ok, "second trigger while the first is in flight")

	close(release)
	assert.True(t, <-firstDone)
	assert.Equal(t, InitialDisplay+Increment, p.DisplayCount())
}

func TestSurfaceFreeze(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)
	records := []domain.IncidentRecord{
		noted("hatyai", 7.0, 100.5),
		noted("songkhla", 7.2, 100.65),
	}

	page := p.SetRecords(records)
	require.Equal(t, []string{"hatyai"}, ids(page.Items))

	p.HideSurface()
	vp.set(songkhla)
	page = p.Refresh()
	assert.True(t, page.Frozen)
	assert.Equal(t, []string{"hatyai"}, ids(page.Items), "frozen window ignores the live viewport")

	window, ok := p.ShowSurface()
	require.True(t, ok)
	assert.Equal(t, hatYai.String(), window.String())

	page = p.Refresh()
	assert.False(t, page.Frozen)
	assert.Equal(t, []string{"songkhla"}, ids(page.Items))
}

func TestSurfaceFreeze_BeforeFirstRefresh(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)

	p.HideSurface()
	vp.set(songkhla)
	page := p.SetRecords([]domain.IncidentRecord{noted("hatyai", 7.0, 100.5)})

	assert.Equal(t, []string{"hatyai"}, ids(page.Items))
}

func TestSurfaceFreeze_CapturesViewportAtHide(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)
	records := []domain.IncidentRecord{
		noted("hatyai", 7.0, 100.5),
		noted("songkhla", 7.2, 100.65),
	}
	p.SetRecords(records)

	// Pan without a refresh, then hide.
	vp.set(songkhla)
	p.HideSurface()
	vp.set(hatYai)

	page := p.Refresh()
	assert.True(t, page.Frozen)
	assert.Equal(t, []string{"songkhla"}, ids(page.Items))

	window, ok := p.ShowSurface()
	require.True(t, ok)
	assert.Equal(t, songkhla.String(), window.String())

	// A second hide with no refresh in between takes the new viewport.
	p.HideSurface()
	page = p.Refresh()
	assert.Equal(t, []string{"hatyai"}, ids(page.Items))
}

func TestPageWindow_IsRefreshWindow(t *testing.T) {
	vp := &fakeViewport{bounds: hatYai}
	p := New(vp, nil)
	p.SetRecords(notedIn("n", 20))

	vp.set(songkhla)
	p.HideSurface()

	assert.Equal(t, hatYai.String(), p.Current().Window.String(), "hiding alone does not re-derive")

	page, ok := p.LoadMore()
	require.True(t, ok)
	assert.Equal(t, hatYai.String(), page.Window.String())
	assert.Len(t, page.Items, 20)
}

func TestPanelHideKeepsCursor(t *testing.T) {
	var delivered []Page
	p := New(&fakeViewport{bounds: hatYai}, func(pg Page) { delivered = append(delivered, pg) })

	p.SetRecords(notedIn("n", 50))
	_, ok := p.LoadMore()
	require.True(t, ok)
	require.Len(t, delivered, 2)

	p.HidePanel()
	p.Refresh()
	assert.Len(t, delivered, 2, "hidden panel receives no pages")

	page := p.ShowPanel()
	assert.Len(t, delivered, 3)
	assert.Len(t, page.Items, 50)
	assert.Equal(t, 50, p.DisplayCount())
}
