// Package geo provides the latitude/longitude value types shared by the
// normalizer, the marker renderer and the notes paginator. Rectangles are
// backed by s2.Rect so containment and expansion follow spherical rules.
package geo

import (
	"fmt"

	"github.com/golang/geo/s2"
)

// Point is a WGS84 position in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the point as "lat,lon".
func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.Lat, p.Lon)
}

func (p Point) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

// Bounds is an inclusive latitude/longitude rectangle.
// The zero value is a degenerate rectangle at (0,0); use EmptyBounds to start
// an accumulation.
type Bounds struct {
	rect s2.Rect
}

// NewBounds builds a rectangle from its south-west and north-east corners.
func NewBounds(south, west, north, east float64) Bounds {
	r := s2.RectFromLatLng(s2.LatLngFromDegrees(south, west))
	return Bounds{rect: r.AddPoint(s2.LatLngFromDegrees(north, east))}
}

// EmptyBounds returns a rectangle containing no points.
func EmptyBounds() Bounds {
	return Bounds{rect: s2.EmptyRect()}
}

// BoundsOf returns the smallest rectangle containing every point.
func BoundsOf(points []Point) Bounds {
	b := EmptyBounds()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// IsEmpty reports whether the rectangle contains no points.
func (b Bounds) IsEmpty() bool {
	return b.rect.IsEmpty()
}

// Contains reports whether p lies inside the rectangle, edges included.
// Points outside the valid latitude/longitude range are never contained.
func (b Bounds) Contains(p Point) bool {
	ll := p.latLng()
	if !ll.IsValid() {
		return false
	}
	return b.rect.ContainsLatLng(ll)
}

// Extend returns the rectangle grown to include p.
func (b Bounds) Extend(p Point) Bounds {
	return Bounds{rect: b.rect.AddPoint(p.latLng())}
}

// Union returns the smallest rectangle containing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{rect: b.rect.Union(other.rect)}
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Point {
	c := b.rect.Center()
	return Point{Lat: c.Lat.Degrees(), Lon: c.Lng.Degrees()}
}

// South returns the minimum latitude in degrees.
func (b Bounds) South() float64 { return b.rect.Lo().Lat.Degrees() }

// West returns the minimum longitude in degrees.
func (b Bounds) West() float64 { return b.rect.Lo().Lng.Degrees() }

// North returns the maximum latitude in degrees.
func (b Bounds) North() float64 { return b.rect.Hi().Lat.Degrees() }

// East returns the maximum longitude in degrees.
func (b Bounds) East() float64 { return b.rect.Hi().Lng.Degrees() }

// String formats the rectangle as "south,west,north,east".
func (b Bounds) String() string {
	if b.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("%g,%g,%g,%g", b.South(), b.West(), b.North(), b.East())
}
