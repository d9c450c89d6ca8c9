package render

import (
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Initial map view over Hat Yai.
var (
	InitialCenter = geo.Point{Lat: 6.9917, Lon: 100.4681}
	InitialZoom   = 13
)

// FitOptions tunes a FitBounds call.
type FitOptions struct {
	// Padding is the margin in pixels kept around the fitted bounds.
	Padding int
	// MaxZoom caps the resulting zoom; 0 means no cap.
	MaxZoom int
}

// Surface is the capability set the renderer needs from a map widget.
// Implementations must be safe for use from the render job goroutine and
// the controller concurrently.
type Surface interface {
	// AddMarkers adds one batch to the clustered marker layer.
	AddMarkers(markers []Marker)
	// ClearMarkers removes every marker from the layer.
	ClearMarkers()
	FitBounds(b geo.Bounds, opts FitOptions)
	// Bounds returns the currently visible region.
	Bounds() geo.Bounds
	SetView(center geo.Point, zoom int)
	Zoom() int
	// OpenPopup shows the popup bound to the marker with id.
	OpenPopup(id string)
}

// MoveNotifier is implemented by surfaces that report pan and zoom.
type MoveNotifier interface {
	OnMove(fn func())
}
