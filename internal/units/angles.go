// Package units provides shared angle conversion and normalization helpers.
//
// All public helpers take and return degrees unless the name says otherwise.
package units

import "math"

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// NormalizeDeg180 maps an angle into the half-open range (-180, 180].
func NormalizeDeg180(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// NormalizeDeg90 maps an angle into the half-open range (-90, 90].
// Angles outside the range are folded by 180 degrees, which treats an
// angle and its opposite direction as the same line.
func NormalizeDeg90(deg float64) float64 {
	d := NormalizeDeg180(deg)
	if d > 90 {
		d -= 180
	} else if d <= -90 {
		d += 180
	}
	return d
}

// DiffDeg returns the minimal absolute difference between two angles,
// in [0, 180].
func DiffDeg(a, b float64) float64 {
	return math.Abs(NormalizeDeg180(a - b))
}

// LineDiffDeg returns the minimal absolute difference between two line
// angles, in [0, 90]. A line's direction is ambiguous by 180 degrees, so
// both b and b+180 are considered.
func LineDiffDeg(a, b float64) float64 {
	d := DiffDeg(a, b)
	if alt := DiffDeg(a, b+180); alt < d {
		d = alt
	}
	return d
}
