// Package notes keeps the paginated list of noted records inside the map
// viewport.
//
// The list is re-derived whenever the filtered records or the viewport
// change. Pagination survives re-derivations that leave the member list
// unchanged, so small map movements do not collapse a long list back to
// its first page.
package notes

import (
	"sync"
	"sync/atomic"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Pagination sizes.
const (
	InitialDisplay = 8
	Increment      = 100
)

// Viewport reports the live visible region of the map.
type Viewport interface {
	Bounds() geo.Bounds
}

// Separator marks where a loaded batch begins in the displayed list.
type Separator struct {
	// Index is the zero-based position of the batch's first item.
	Index int
	Batch int
	// From and To are the batch's one-based item range.
	From int
	To   int
}

// Page is the displayed part of the note list.
type Page struct {
	Items      []domain.IncidentRecord
	Separators []Separator
	Total      int
	Remaining  int
	// NextLoad is how many items the next LoadMore adds.
	NextLoad int
	Window   geo.Bounds
	Frozen   bool
}

// HasMore reports whether LoadMore would add items.
func (p Page) HasMore() bool { return p.Remaining > 0 }

// Paginator derives note pages from filtered records and a viewport. It is
// safe for concurrent use. Pages are delivered to the sink outside the
// internal lock.
type Paginator struct {
	viewport Viewport
	sink     func(Page)

	loading atomic.Bool

	mu           sync.Mutex
	records      []domain.IncidentRecord
	visible      []domain.IncidentRecord
	displayCount int
	window       geo.Bounds
	snapshot     geo.Bounds
	haveSnapshot bool
	frozen       bool
	panelHidden  bool
}

// New creates a Paginator. sink may be nil.
func New(viewport Viewport, sink func(Page)) *Paginator {
	return &Paginator{
		viewport:     viewport,
		sink:         sink,
		displayCount: InitialDisplay,
		window:       geo.EmptyBounds(),
		snapshot:     geo.EmptyBounds(),
	}
}

// SetRecords replaces the filtered record set and refreshes.
func (p *Paginator) SetRecords(filtered []domain.IncidentRecord) Page {
	p.mu.Lock()
	p.records = filtered
	p.mu.Unlock()
	return p.Refresh()
}

// Refresh re-derives the note list against the current window.
func (p *Paginator) Refresh() Page {
	p.mu.Lock()
	window := p.windowLocked()
	next := notedWithin(p.records, window)
	if len(next) == 0 || !sameMembers(p.visible, next) {
		p.displayCount = InitialDisplay
	}
	p.visible = next
	p.window = window
	page := p.pageLocked()
	emit := !p.panelHidden
	p.mu.Unlock()

	if emit {
		p.deliver(page)
	}
	return page
}

// LoadMore extends the displayed list by one increment. It returns false
// without changing anything when nothing remains or another LoadMore is
// still delivering its page.
func (p *Paginator) LoadMore() (Page, bool) {
	if !p.loading.CompareAndSwap(false, true) {
		return Page{}, false
	}
	defer p.loading.Store(false)

	p.mu.Lock()
	if p.displayCount >= len(p.visible) {
		p.mu.Unlock()
		return Page{}, false
	}
	p.displayCount = min(p.displayCount+Increment, len(p.visible))
	page := p.pageLocked()
	p.mu.Unlock()

	p.deliver(page)
	return page, true
}

// DisplayCount returns the current cursor.
func (p *Paginator) DisplayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayCount
}

// Current returns the page as last derived, without re-deriving.
func (p *Paginator) Current() Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageLocked()
}

// HideSurface freezes the window at the viewport as it is now.
func (p *Paginator) HideSurface() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.frozen {
		p.snapshot = p.viewport.Bounds()
		p.haveSnapshot = true
	}
	p.frozen = true
}

// ShowSurface resumes live tracking. It returns the frozen window so the
// caller can restore the map to it before the next refresh.
func (p *Paginator) ShowSurface() (geo.Bounds, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = false
	return p.snapshot, p.haveSnapshot
}

// HidePanel stops page delivery. The cursor is kept.
func (p *Paginator) HidePanel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panelHidden = true
}

// ShowPanel resumes delivery and re-emits the current page.
func (p *Paginator) ShowPanel() Page {
	p.mu.Lock()
	p.panelHidden = false
	page := p.pageLocked()
	p.mu.Unlock()

	p.deliver(page)
	return page
}

func (p *Paginator) deliver(page Page) {
	if p.sink != nil {
		p.sink(page)
	}
}

func (p *Paginator) windowLocked() geo.Bounds {
	if p.frozen && p.haveSnapshot {
		return p.snapshot
	}
	p.snapshot = p.viewport.Bounds()
	p.haveSnapshot = true
	return p.snapshot
}

// pageLocked builds the page for the window of the last Refresh.
func (p *Paginator) pageLocked() Page {
	total := len(p.visible)
	shown := min(p.displayCount, total)
	remaining := total - shown
	return Page{
		Items:      p.visible[:shown:shown],
		Separators: separators(shown, total),
		Total:      total,
		Remaining:  remaining,
		NextLoad:   min(Increment, remaining),
		Window:     p.window,
		Frozen:     p.frozen,
	}
}

func notedWithin(records []domain.IncidentRecord, window geo.Bounds) []domain.IncidentRecord {
	var out []domain.IncidentRecord
	for _, r := range records {
		if r.HasNote() && window.Contains(r.Coordinates) {
			out = append(out, r)
		}
	}
	return out
}

func sameMembers(prev, next []domain.IncidentRecord) bool {
	if len(prev) != len(next) || len(prev) == 0 {
		return false
	}
	for i := range prev {
		if prev[i].ID != next[i].ID {
			return false
		}
	}
	return true
}

// separators returns the batch boundaries within the first shown items:
// the second batch starts at InitialDisplay, later ones every Increment.
func separators(shown, total int) []Separator {
	var out []Separator
	for i := InitialDisplay; i < shown; i += Increment {
		out = append(out, Separator{
			Index: i,
			Batch: (i-InitialDisplay)/Increment + 2,
			From:  i + 1,
			To:    min(i+Increment, total),
		})
	}
	return out
}
