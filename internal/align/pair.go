// Package align computes per-frame alignment feedback from marker
// detections: pair measurements, temporally smoothed detection, and the
// discrete feedback state consumed by presentation.
package align

import (
	"math"

	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/units"
)

// DistanceClass classifies the inter-marker pixel distance against the
// configured target range.
type DistanceClass string

const (
	DistanceUnknown  DistanceClass = "unknown"   // fewer than two markers
	DistanceTooFar   DistanceClass = "too_far"   // camera too far from the sheet
	DistanceTooClose DistanceClass = "too_close" // camera too close to the sheet
	DistanceOptimal  DistanceClass = "optimal"
)

// TemplateVariant selects one of the two mirrored marker-pair layouts.
// The operator picks it once per session; it is immutable afterwards.
type TemplateVariant string

const (
	LeftHand  TemplateVariant = "left_hand"
	RightHand TemplateVariant = "right_hand"
)

// Valid reports whether v is one of the two known variants.
func (v TemplateVariant) Valid() bool {
	return v == LeftHand || v == RightHand
}

// ExpectedDiagonalDeg returns the expected angle of the line connecting
// the two marker centroids for this variant, degrees from horizontal.
func (v TemplateVariant) ExpectedDiagonalDeg() float64 {
	if v == RightHand {
		return 45
	}
	return -45
}

// PairMeasurement is derived from the first two detected markers of one
// frame. When Found is false the remaining fields are zero values and
// downstream treats the frame as "searching".
type PairMeasurement struct {
	Found            bool          `json:"found"`
	PixelDistance    float64       `json:"pixel_distance"`
	AngleDegrees     float64       `json:"angle_degrees"` // (-180, 180] from horizontal
	DistanceClass    DistanceClass `json:"distance_class"`
	OrientationValid bool          `json:"orientation_valid"`
	// Midpoint is the normalized midpoint between the two marker
	// centroids, used for centering guidance.
	Midpoint geom.Point `json:"midpoint"`
}

// AnalyzePair measures the first two markers in detector report order
// against the active template variant. Markers must already be sanitized.
// size is the session's pixel resolution; the distance thresholds in cfg
// are calibrated in pixel units at that resolution.
//
// The distance mapping is deliberate and must not be inverted: a smaller
// pixel distance between the markers means the camera is farther from
// the sheet, not closer.
func AnalyzePair(markers []geom.Marker, size geom.Size, variant TemplateVariant, cfg *config.TuningConfig) PairMeasurement {
	if len(markers) < 2 {
		return PairMeasurement{DistanceClass: DistanceUnknown}
	}

	a := geom.Centroid(markers[0])
	b := geom.Centroid(markers[1])
	apx := a.Pixels(size)
	bpx := b.Pixels(size)

	m := PairMeasurement{
		Found:         true,
		PixelDistance: apx.Dist(bpx),
		AngleDegrees:  units.NormalizeDeg180(units.Degrees(math.Atan2(bpx.Y-apx.Y, bpx.X-apx.X))),
		Midpoint:      geom.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2},
	}

	target := cfg.GetTargetPairDistancePx()
	tol := cfg.GetPairDistanceTolerance()
	switch {
	case m.PixelDistance < target*(1-tol):
		m.DistanceClass = DistanceTooFar
	case m.PixelDistance > target*(1+tol):
		m.DistanceClass = DistanceTooClose
	default:
		m.DistanceClass = DistanceOptimal
	}

	// A line's angle is only defined mod 180, so the expected diagonal
	// and its opposite direction are both acceptable.
	deviation := units.LineDiffDeg(m.AngleDegrees, variant.ExpectedDiagonalDeg())
	m.OrientationValid = deviation <= cfg.GetOrientationToleranceDeg()

	return m
}
