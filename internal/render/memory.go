package render

import (
	"math"
	"sync"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Headless viewport geometry.
const (
	viewportWidth  = 1024
	viewportHeight = 768
	tileSize       = 256
	maxZoom        = 19
)

// MemorySurface is a headless Surface. It keeps markers and the view in
// memory and derives the visible bounds from a fixed pixel viewport.
type MemorySurface struct {
	mu      sync.Mutex
	markers map[string]Marker
	order   []string
	batches int
	center  geo.Point
	zoom    int
	popup   string
	onMove  []func()
}

// NewMemorySurface returns a surface showing the initial view.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		markers: make(map[string]Marker),
		center:  InitialCenter,
		zoom:    InitialZoom,
	}
}

func (s *MemorySurface) AddMarkers(markers []Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markers {
		if _, ok := s.markers[m.ID]; !ok {
			s.order = append(s.order, m.ID)
		}
		s.markers[m.ID] = m
	}
	s.batches++
}

func (s *MemorySurface) ClearMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.markers)
	s.order = nil
	s.popup = ""
}

func (s *MemorySurface) FitBounds(b geo.Bounds, opts FitOptions) {
	if b.IsEmpty() {
		return
	}
	zoom := min(
		fitZoom(b.East()-b.West(), viewportWidth-2*opts.Padding),
		fitZoom(b.North()-b.South(), viewportHeight-2*opts.Padding),
	)
	if opts.MaxZoom > 0 {
		zoom = min(zoom, opts.MaxZoom)
	}
	s.SetView(b.Center(), zoom)
}

func fitZoom(spanDeg float64, px int) int {
	if px <= 0 {
		return 0
	}
	if spanDeg <= 0 {
		return maxZoom
	}
	z := int(math.Floor(math.Log2(360 * float64(px) / (tileSize * spanDeg))))
	return max(0, min(z, maxZoom))
}

func (s *MemorySurface) Bounds() geo.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	degPerPx := 360 / (tileSize * math.Exp2(float64(s.zoom)))
	halfLon := viewportWidth / 2 * degPerPx
	halfLat := viewportHeight / 2 * degPerPx
	return geo.NewBounds(
		math.Max(s.center.Lat-halfLat, -90),
		math.Max(s.center.Lon-halfLon, -180),
		math.Min(s.center.Lat+halfLat, 90),
		math.Min(s.center.Lon+halfLon, 180),
	)
}

func (s *MemorySurface) SetView(center geo.Point, zoom int) {
	s.mu.Lock()
	s.center = center
	s.zoom = max(0, min(zoom, maxZoom))
	handlers := append([]func(){}, s.onMove...)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (s *MemorySurface) Zoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

func (s *MemorySurface) Center() geo.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

func (s *MemorySurface) OpenPopup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[id]; ok {
		s.popup = id
	}
}

// OnMove registers fn to run after every view change.
func (s *MemorySurface) OnMove(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMove = append(s.onMove, fn)
}

// Markers returns the markers on the layer in insertion order.
func (s *MemorySurface) Markers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Marker, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.markers[id])
	}
	return out
}

// Batches returns how many AddMarkers calls the surface has received.
func (s *MemorySurface) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// OpenedPopup returns the id of the open popup, or "".
func (s *MemorySurface) OpenedPopup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popup
}
