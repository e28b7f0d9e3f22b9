// Package testutil provides the marker fixtures shared across test
// packages. All builders work in normalized image coordinates.
package testutil

import (
	"math"

	"github.com/stillframe/marker.align/internal/geom"
)

// SquareMarker builds an axis-aligned square marker centred at (cx, cy)
// with the given side length, all in normalized coordinates (bottom-left
// origin, Y up).
func SquareMarker(cx, cy, side float64) geom.Marker {
	h := side / 2
	return geom.Marker{Corners: [4]geom.Point{
		geom.TopLeft:     {X: cx - h, Y: cy + h},
		geom.TopRight:    {X: cx + h, Y: cy + h},
		geom.BottomRight: {X: cx + h, Y: cy - h},
		geom.BottomLeft:  {X: cx - h, Y: cy - h},
	}}
}

// RotatedMarker builds a square marker rotated by rollDeg about its
// centre, in normalized coordinates.
func RotatedMarker(cx, cy, side, rollDeg float64) geom.Marker {
	m := SquareMarker(cx, cy, side)
	rad := rollDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	for i, c := range m.Corners {
		dx, dy := c.X-cx, c.Y-cy
		m.Corners[i] = geom.Point{
			X: cx + dx*cos - dy*sin,
			Y: cy + dx*sin + dy*cos,
		}
	}
	return m
}

// TrapezoidMarker builds a marker whose top edge is scaled by topScale
// relative to the bottom edge, simulating a plane tilted away from the
// camera about the horizontal axis.
func TrapezoidMarker(cx, cy, side, topScale float64) geom.Marker {
	m := SquareMarker(cx, cy, side)
	th := side * topScale / 2
	m.Corners[geom.TopLeft].X = cx - th
	m.Corners[geom.TopRight].X = cx + th
	return m
}

// MarkerPair builds the canonical two-marker fixture: two squares of the
// given side whose centroids sit at (x1, y1) and (x2, y2).
func MarkerPair(x1, y1, x2, y2, side float64) []geom.Marker {
	return []geom.Marker{
		SquareMarker(x1, y1, side),
		SquareMarker(x2, y2, side),
	}
}
