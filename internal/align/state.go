package align

import (
	"time"

	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
)

// Hint identifies the single highest-priority adjustment the operator
// should make. Only one hint is surfaced per frame so the operator is
// never shown several complaints at once.
type Hint string

const (
	HintSearching         Hint = "searching"
	HintMoveCloser        Hint = "move_closer"
	HintMoveFarther       Hint = "move_farther"
	HintAdjustOrientation Hint = "adjust_orientation"
	HintAdjustDeviceAngle Hint = "adjust_device_angle"
	HintReady             Hint = "ready"
)

// Message returns the operator-facing text for the hint.
func (h Hint) Message() string {
	switch h {
	case HintSearching:
		return "Position both markers in frame"
	case HintMoveCloser:
		return "Move the camera closer"
	case HintMoveFarther:
		return "Move the camera farther away"
	case HintAdjustOrientation:
		return "Straighten the sheet in frame"
	case HintAdjustDeviceAngle:
		return "Angle the device toward the sheet"
	case HintReady:
		return "Ready to record"
	}
	return string(h)
}

// TiltInput is the device pitch sample from the external orientation
// sensor. Valid is false until the first sample arrives; the reducer
// fails open in that case so an absent sensor never blocks the operator.
type TiltInput struct {
	PitchDeg float64
	Valid    bool
}

// AlignmentState is the per-frame feedback snapshot consumed by
// presentation. It is an immutable value: recomputed wholesale every
// frame and replaced atomically, never partially mutated.
type AlignmentState struct {
	At time.Time `json:"at"`

	MarkersDetected  bool          `json:"markers_detected"` // smoothed
	MarkersMatch     bool          `json:"markers_match"`    // geometric markers carry no payload to check
	DistanceClass    DistanceClass `json:"distance_class"`
	DistanceCm       float64       `json:"distance_cm"`
	PixelDistance    float64       `json:"pixel_distance"`
	OrientationValid bool          `json:"orientation_valid"`
	RollDeg          float64       `json:"roll_deg"`
	MarkerTilt       geom.Tilt     `json:"marker_tilt"`
	ViewingAngleGood bool          `json:"viewing_angle_good"`
	Centroid         geom.Point    `json:"centroid"` // normalized pair midpoint

	Hint          Hint   `json:"hint"`
	Message       string `json:"message"`
	ReadyToRecord bool   `json:"ready_to_record"`
}

// ReduceInput bundles the per-frame inputs to the reducer.
type ReduceInput struct {
	Pair       PairMeasurement
	Smoothed   SmoothedDetection
	DeviceTilt TiltInput
	MarkerTilt geom.Tilt
	Now        time.Time
}

// Reduce combines the pair analysis, smoothed detection and device tilt
// into a new AlignmentState. It is a pure function of its inputs: all
// hysteresis lives in the smoother, so feeding the same inputs always
// yields the same state.
//
// ReadyToRecord gates a visual cue only. Recording is permitted in a
// non-ready state on purpose; quality problems are caught after the fact
// by the movement monitor.
func Reduce(in ReduceInput, cfg *config.TuningConfig) AlignmentState {
	st := AlignmentState{
		At:               in.Now,
		MarkersDetected:  in.Smoothed.Detected,
		MarkersMatch:     in.Smoothed.Detected,
		DistanceClass:    in.Pair.DistanceClass,
		DistanceCm:       in.Smoothed.DistanceCm,
		PixelDistance:    in.Pair.PixelDistance,
		OrientationValid: in.Pair.OrientationValid,
		RollDeg:          in.Smoothed.RollDeg,
		MarkerTilt:       in.MarkerTilt,
		ViewingAngleGood: viewingAngleGood(in.DeviceTilt, cfg),
		Centroid:         in.Pair.Midpoint,
	}

	st.Hint = selectHint(st)
	st.Message = st.Hint.Message()
	st.ReadyToRecord = st.MarkersDetected &&
		st.DistanceClass == DistanceOptimal &&
		st.OrientationValid &&
		st.ViewingAngleGood

	return st
}

// selectHint applies the fixed priority order: searching beats distance
// beats orientation beats device angle.
func selectHint(st AlignmentState) Hint {
	switch {
	case !st.MarkersDetected:
		return HintSearching
	case st.DistanceClass == DistanceTooFar:
		return HintMoveCloser
	case st.DistanceClass == DistanceTooClose:
		return HintMoveFarther
	case !st.OrientationValid:
		return HintAdjustOrientation
	case !st.ViewingAngleGood:
		return HintAdjustDeviceAngle
	}
	return HintReady
}

func viewingAngleGood(tilt TiltInput, cfg *config.TuningConfig) bool {
	if !tilt.Valid {
		// No sensor signal: fail open rather than block indefinitely
		// on an optional input.
		return true
	}
	return tilt.PitchDeg >= cfg.GetPitchMinDeg() && tilt.PitchDeg <= cfg.GetPitchMaxDeg()
}
