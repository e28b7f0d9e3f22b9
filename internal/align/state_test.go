package align_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/stillframe/marker.align/internal/align"
	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
)

// readyInput returns inputs that satisfy every gate.
func readyInput(now time.Time) align.ReduceInput {
	return align.ReduceInput{
		Pair: align.PairMeasurement{
			Found:            true,
			PixelDistance:    500,
			AngleDegrees:     45,
			DistanceClass:    align.DistanceOptimal,
			OrientationValid: true,
			Midpoint:         geom.Point{X: 0.5, Y: 0.5},
		},
		Smoothed:   align.SmoothedDetection{Detected: true, DistanceCm: 30, RollDeg: 1.5},
		DeviceTilt: align.TiltInput{PitchDeg: 45, Valid: true},
		MarkerTilt: geom.Tilt{IsFlat: true},
		Now:        now,
	}
}

func TestReduceReady(t *testing.T) {
	t.Parallel()
	cfg := config.EmptyTuningConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	st := align.Reduce(readyInput(now), cfg)

	want := align.AlignmentState{
		At:               now,
		MarkersDetected:  true,
		MarkersMatch:     true,
		DistanceClass:    align.DistanceOptimal,
		DistanceCm:       30,
		PixelDistance:    500,
		OrientationValid: true,
		RollDeg:          1.5,
		MarkerTilt:       geom.Tilt{IsFlat: true},
		ViewingAngleGood: true,
		Centroid:         geom.Point{X: 0.5, Y: 0.5},
		Hint:             align.HintReady,
		Message:          align.HintReady.Message(),
		ReadyToRecord:    true,
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
	}
}

func TestReducePriorityOrder(t *testing.T) {
	t.Parallel()
	cfg := config.EmptyTuningConfig()
	now := time.Now()

	cases := []struct {
		name     string
		mutate   func(in *align.ReduceInput)
		wantHint align.Hint
	}{
		{
			name: "searching beats every other complaint",
			mutate: func(in *align.ReduceInput) {
				in.Smoothed.Detected = false
				in.Pair.DistanceClass = align.DistanceTooFar
				in.Pair.OrientationValid = false
				in.DeviceTilt = align.TiltInput{PitchDeg: 0, Valid: true}
			},
			wantHint: align.HintSearching,
		},
		{
			name: "distance beats orientation and device angle",
			mutate: func(in *align.ReduceInput) {
				in.Pair.DistanceClass = align.DistanceTooFar
				in.Pair.OrientationValid = false
				in.DeviceTilt = align.TiltInput{PitchDeg: 0, Valid: true}
			},
			wantHint: align.HintMoveCloser,
		},
		{
			name: "too close surfaces move farther",
			mutate: func(in *align.ReduceInput) {
				in.Pair.DistanceClass = align.DistanceTooClose
			},
			wantHint: align.HintMoveFarther,
		},
		{
			name: "orientation beats device angle",
			mutate: func(in *align.ReduceInput) {
				in.Pair.OrientationValid = false
				in.DeviceTilt = align.TiltInput{PitchDeg: 0, Valid: true}
			},
			wantHint: align.HintAdjustOrientation,
		},
		{
			name: "device angle is the last gate",
			mutate: func(in *align.ReduceInput) {
				in.DeviceTilt = align.TiltInput{PitchDeg: 10, Valid: true}
			},
			wantHint: align.HintAdjustDeviceAngle,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := readyInput(now)
			tc.mutate(&in)

			st := align.Reduce(in, cfg)
			assert.Equal(t, tc.wantHint, st.Hint)
			assert.Equal(t, tc.wantHint.Message(), st.Message)
			assert.False(t, st.ReadyToRecord)
		})
	}
}

func TestReduceViewingAngle(t *testing.T) {
	t.Parallel()
	cfg := config.EmptyTuningConfig() // good band 40..50

	t.Run("fails open without a sensor", func(t *testing.T) {
		t.Parallel()
		in := readyInput(time.Now())
		in.DeviceTilt = align.TiltInput{}

		st := align.Reduce(in, cfg)
		assert.True(t, st.ViewingAngleGood)
		assert.True(t, st.ReadyToRecord)
	})

	t.Run("band edges are inclusive", func(t *testing.T) {
		t.Parallel()
		for _, pitch := range []float64{40, 50} {
			in := readyInput(time.Now())
			in.DeviceTilt = align.TiltInput{PitchDeg: pitch, Valid: true}
			assert.True(t, align.Reduce(in, cfg).ViewingAngleGood, "pitch %v", pitch)
		}
		for _, pitch := range []float64{39.9, 50.1} {
			in := readyInput(time.Now())
			in.DeviceTilt = align.TiltInput{PitchDeg: pitch, Valid: true}
			assert.False(t, align.Reduce(in, cfg).ViewingAngleGood, "pitch %v", pitch)
		}
	})
}

func TestReduceIsPure(t *testing.T) {
	t.Parallel()
	cfg := config.EmptyTuningConfig()
	in := readyInput(time.Now())

	first := align.Reduce(in, cfg)
	second := align.Reduce(in, cfg)
	assert.Equal(t, first, second)
}
