package pipeline

import (
	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
)

// UpdateFilter applies fn to the predicate and schedules a debounced
// refilter. The returned predicate is the new one.
func (c *Controller) UpdateFilter(fn func(domain.FilterPredicate) domain.FilterPredicate) domain.FilterPredicate {
	c.mu.Lock()
	c.predicate = fn(c.predicate)
	c.predicateSet = true
	p := c.predicate
	c.mu.Unlock()

	c.filterDebounce.Trigger()
	return p
}

// ToggleStatus selects or deselects one status.
func (c *Controller) ToggleStatus(status int, selected bool) domain.FilterPredicate {
	return c.UpdateFilter(func(p domain.FilterPredicate) domain.FilterPredicate {
		return p.WithStatus(status, selected)
	})
}

// ToggleVictim selects or deselects one victim type.
func (c *Controller) ToggleVictim(victim string, selected bool) domain.FilterPredicate {
	return c.UpdateFilter(func(p domain.FilterPredicate) domain.FilterPredicate {
		return p.WithVictim(victim, selected)
	})
}

// SelectAllVictims selects every current victim option.
func (c *Controller) SelectAllVictims() domain.FilterPredicate {
	c.mu.Lock()
	options := c.victimOptions
	c.mu.Unlock()
	return c.UpdateFilter(func(p domain.FilterPredicate) domain.FilterPredicate {
		return p.WithVictims(options)
	})
}

// ClearVictims deselects every victim type, which filters out everything.
func (c *Controller) ClearVictims() domain.FilterPredicate {
	return c.UpdateFilter(func(p domain.FilterPredicate) domain.FilterPredicate {
		return p.WithVictims(nil)
	})
}

// SetVictimMode switches between any-of and exact-set matching.
func (c *Controller) SetVictimMode(mode domain.VictimMode) domain.FilterPredicate {
	return c.UpdateFilter(func(p domain.FilterPredicate) domain.FilterPredicate {
		return p.WithMode(mode)
	})
}

// SetArea restricts records to one subdistrict, or domain.AllAreas.
func (c *Controller) SetArea(area string) domain.FilterPredicate {
	return c.UpdateFilter(func(p domain.FilterPredicate) domain.FilterPredicate {
		return p.WithArea(area)
	})
}

// Predicate returns the current filter predicate.
func (c *Controller) Predicate() domain.FilterPredicate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predicate
}

// refilter re-runs the filter on the current records and republishes.
func (c *Controller) refilter() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.filtered = domain.Filter(c.records, c.predicate)
	filtered := c.filtered
	c.mu.Unlock()

	c.logger.Debug("filter applied", "filtered", len(filtered))
	c.publish(filtered)
}

// ViewportChanged schedules a debounced notes refresh. Wire it to the map
// surface's move events.
func (c *Controller) ViewportChanged() {
	c.viewportDebounce.Trigger()
}

func (c *Controller) refreshNotes() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.deps.Notes.Refresh()
}

// Focus centres the map on one record.
func (c *Controller) Focus(id string) bool {
	return c.deps.Renderer.Focus(id)
}

// ZoomToArea fits the map to the filtered records of one subdistrict.
func (c *Controller) ZoomToArea(subdistrict string) bool {
	return c.deps.Renderer.ZoomToArea(c.Filtered(), subdistrict)
}

// SetMapHidden freezes the notes window while the map is hidden. Showing
// the map re-centres it on the frozen window at the current zoom and
// resumes live tracking.
func (c *Controller) SetMapHidden(hidden bool) {
	c.mu.Lock()
	c.mapHidden = hidden
	c.mu.Unlock()

	if hidden {
		c.deps.Notes.HideSurface()
		return
	}
	window, ok := c.deps.Notes.ShowSurface()
	if ok && !window.IsEmpty() && c.deps.Surface != nil {
		c.deps.Surface.SetView(window.Center(), c.deps.Surface.Zoom())
	}
	c.refreshNotes()
}
