package geom

import (
	"math"

	"github.com/stillframe/marker.align/internal/units"
)

// minEdgePixels is the apparent size below which a marker is considered
// degenerate for the pinhole distance formula.
const minEdgePixels = 1e-6

// EdgeLengths returns the pixel length of each marker side for the given
// image resolution, in top, bottom, left, right order.
func EdgeLengths(m Marker, size Size) (top, bottom, left, right float64) {
	tl := m.Corners[TopLeft].Pixels(size)
	tr := m.Corners[TopRight].Pixels(size)
	br := m.Corners[BottomRight].Pixels(size)
	bl := m.Corners[BottomLeft].Pixels(size)

	top = tl.Dist(tr)
	bottom = bl.Dist(br)
	left = tl.Dist(bl)
	right = tr.Dist(br)
	return top, bottom, left, right
}

// Centroid returns the arithmetic mean of the four corners in normalized
// coordinates.
func Centroid(m Marker) Point {
	var sx, sy float64
	for _, c := range m.Corners {
		sx += c.X
		sy += c.Y
	}
	return Point{X: sx / 4, Y: sy / 4}
}

// InPlaneRoll returns the marker's in-plane rotation relative to the
// horizontal axis, in degrees normalized to (-90, 90]. It averages the
// angle of the top edge and the angle of the bottom edge: averaging two
// opposite edges cancels small perspective skew better than either edge
// alone. Normalization folds near-horizontal markers detected upside
// down onto the same roll.
func InPlaneRoll(m Marker) float64 {
	topAngle := edgeAngleDeg(m.Corners[TopLeft], m.Corners[TopRight])
	bottomAngle := edgeAngleDeg(m.Corners[BottomLeft], m.Corners[BottomRight])

	// Fold each edge onto (-90, 90] before averaging so a 180-degree
	// ambiguous edge pair does not average to a perpendicular.
	topAngle = units.NormalizeDeg90(topAngle)
	bottomAngle = units.NormalizeDeg90(bottomAngle)

	return units.NormalizeDeg90((topAngle + bottomAngle) / 2)
}

// edgeAngleDeg returns the angle of the a->b segment relative to
// horizontal, in degrees within (-180, 180].
func edgeAngleDeg(a, b Point) float64 {
	return units.Degrees(math.Atan2(b.Y-a.Y, b.X-a.X))
}

// DistanceEstimateCm estimates the camera-to-marker distance in
// centimetres with the pinhole approximation
//
//	distance = realSizeCm * focalLengthPx / apparentSizePx
//
// where the apparent size is the mean of the four edge lengths in pixels.
// This is an uncalibrated approximation: exact values differ by lens, but
// the estimate is strictly decreasing in apparent size. A degenerate
// marker (apparent size ~0) yields 0, meaning "unknown", never Inf/NaN.
func DistanceEstimateCm(m Marker, size Size, markerSizeCm, focalLengthPx float64) float64 {
	top, bottom, left, right := EdgeLengths(m, size)
	apparent := (top + bottom + left + right) / 4
	if apparent < minEdgePixels {
		return 0
	}
	return markerSizeCm * focalLengthPx / apparent
}

// Tilt is a closed-form estimate of how far the marker plane is tilted
// away from the camera, derived from opposite-edge length ratios. It is
// monotonic, not calibrated: a flatter marker always yields smaller
// angles.
type Tilt struct {
	// TiltXDeg is the tilt about the horizontal axis (top vs bottom
	// edge ratio), degrees.
	TiltXDeg float64 `json:"tilt_x_deg"`
	// TiltYDeg is the tilt about the vertical axis (left vs right edge
	// ratio), degrees.
	TiltYDeg float64 `json:"tilt_y_deg"`
	// IsFlat is true when both tilt magnitudes are under the supplied
	// threshold.
	IsFlat bool `json:"is_flat"`
}

// TiltEstimate converts the top/bottom and left/right edge length ratios
// into tilt angles via atan((ratio-1)*gain). Ratios are clamped to
// [0.5, 2.0] first so noisy detections cannot produce runaway angles. A
// marker with a degenerate opposite edge reports zero tilt on that axis
// ("unknown"), which keeps invalid floats out of downstream averages.
func TiltEstimate(m Marker, size Size, gain, flatMaxDeg float64) Tilt {
	top, bottom, left, right := EdgeLengths(m, size)

	t := Tilt{
		TiltXDeg: ratioAngleDeg(top, bottom, gain),
		TiltYDeg: ratioAngleDeg(left, right, gain),
	}
	t.IsFlat = math.Abs(t.TiltXDeg) < flatMaxDeg && math.Abs(t.TiltYDeg) < flatMaxDeg
	return t
}

func ratioAngleDeg(a, b, gain float64) float64 {
	if a < minEdgePixels || b < minEdgePixels {
		return 0
	}
	ratio := a / b
	if ratio < 0.5 {
		ratio = 0.5
	} else if ratio > 2.0 {
		ratio = 2.0
	}
	return units.Degrees(math.Atan((ratio - 1) * gain))
}
