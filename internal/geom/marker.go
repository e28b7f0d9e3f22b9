// Package geom provides the marker observation types and the pure
// geometric measurements derived from a single detected marker.
//
// Detector output uses normalized image coordinates in [0, 1] with a
// bottom-left origin and Y increasing upward. Functions that need pixel
// units take an explicit Size and say so in their contract; nothing in
// this package converts coordinate systems implicitly.
package geom

import "math"

// Corner indices in detector report order.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Point is a 2D coordinate. Whether it is normalized or pixel space is
// determined by the producing function's contract.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Dist returns the Euclidean distance to q in the same coordinate space.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Size is an image resolution in pixels, fixed for a session.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pixels converts a normalized point to pixel space. The Y axis keeps the
// bottom-left origin convention; only scaling is applied.
func (p Point) Pixels(s Size) Point {
	return Point{X: p.X * s.Width, Y: p.Y * s.Height}
}

// Marker is one marker observation in a single frame: four ordered corner
// points (top-left, top-right, bottom-right, bottom-left) in normalized
// image coordinates. Observations are value types, created fresh each
// frame and never mutated.
type Marker struct {
	Corners [4]Point `json:"corners"`
}

// IsFinite reports whether all four corners are finite. Markers failing
// this check are discarded at ingestion and never reach downstream
// components.
func (m Marker) IsFinite() bool {
	for _, c := range m.Corners {
		if !c.IsFinite() {
			return false
		}
	}
	return true
}

// Sanitize returns the subset of markers whose corners are all finite,
// preserving detector report order. A malformed detection is treated as
// "not detected this frame", never as an error.
func Sanitize(markers []Marker) []Marker {
	out := markers[:0:0]
	for _, m := range markers {
		if m.IsFinite() {
			out = append(out, m)
		}
	}
	return out
}
