package align_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillframe/marker.align/internal/align"
	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/testutil"
	"github.com/stillframe/marker.align/internal/timeutil"
)

const frameInterval = 33 * time.Millisecond // ~30fps

func newSmoother(t *testing.T) (*align.Smoother, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return align.NewSmoother(config.EmptyTuningConfig(), clock), clock
}

func TestSmootherConstantDetection(t *testing.T) {
	t.Parallel()
	s, clock := newSmoother(t)
	pair := testutil.MarkerPair(0.3, 0.5, 0.7, 0.5, 0.05)

	var out align.SmoothedDetection
	// Feed well past the 500ms window.
	for i := 0; i < 30; i++ {
		out = s.Observe(true, pair, 32.5, 4.0)
		clock.Advance(frameInterval)
	}

	assert.True(t, out.Detected)
	assert.False(t, out.Backfilled)
	assert.Equal(t, pair, out.Markers)
	assert.Equal(t, 32.5, out.DistanceCm)
	assert.Equal(t, 4.0, out.RollDeg)
	// Window holds roughly 500ms / 33ms frames, not the full stream.
	assert.LessOrEqual(t, out.Frames, 17)
}

func TestSmootherSingleMissDoesNotFlip(t *testing.T) {
	t.Parallel()
	s, clock := newSmoother(t)
	pair := testutil.MarkerPair(0.3, 0.5, 0.7, 0.5, 0.05)

	for i := 0; i < 10; i++ {
		s.Observe(true, pair, 30, 2)
		clock.Advance(frameInterval)
	}

	// One missed frame inside an otherwise-detecting window.
	out := s.Observe(false, nil, 0, 0)

	assert.True(t, out.Detected, "a single miss must not flip the smoothed state")
	assert.True(t, out.Backfilled)
	require.Len(t, out.Markers, 2, "last known geometry is reused")
	assert.Equal(t, 30.0, out.DistanceCm)
	assert.Equal(t, 2.0, out.RollDeg)
}

func TestSmootherSustainedAbsenceFlips(t *testing.T) {
	t.Parallel()
	s, clock := newSmoother(t)
	pair := testutil.MarkerPair(0.3, 0.5, 0.7, 0.5, 0.05)

	for i := 0; i < 10; i++ {
		s.Observe(true, pair, 30, 2)
		clock.Advance(frameInterval)
	}

	var out align.SmoothedDetection
	// Miss for longer than the window: old detections age out and the
	// vote goes under threshold.
	for i := 0; i < 20; i++ {
		out = s.Observe(false, nil, 0, 0)
		clock.Advance(frameInterval)
	}

	assert.False(t, out.Detected)
	assert.Empty(t, out.Markers)
}

func TestSmootherSingleMarkerStreamStaysUndetected(t *testing.T) {
	t.Parallel()
	s, clock := newSmoother(t)

	// The session reports detected=false when fewer than two markers
	// are present; a steady single-marker stream never detects.
	var out align.SmoothedDetection
	for i := 0; i < 30; i++ {
		out = s.Observe(false, []geom.Marker{testutil.SquareMarker(0.5, 0.5, 0.1)}, 0, 0)
		clock.Advance(frameInterval)
	}
	assert.False(t, out.Detected)
}

func TestSmootherReset(t *testing.T) {
	t.Parallel()
	s, clock := newSmoother(t)
	pair := testutil.MarkerPair(0.3, 0.5, 0.7, 0.5, 0.05)

	for i := 0; i < 10; i++ {
		s.Observe(true, pair, 30, 2)
		clock.Advance(frameInterval)
	}
	s.Reset()

	// After reset a miss is a fresh 0/1 vote, not backfilled history.
	out := s.Observe(false, nil, 0, 0)
	assert.False(t, out.Detected)
	assert.Equal(t, 1, out.Frames)
}

func TestSmootherWindowPruning(t *testing.T) {
	t.Parallel()
	s, clock := newSmoother(t)
	pair := testutil.MarkerPair(0.3, 0.5, 0.7, 0.5, 0.05)

	s.Observe(true, pair, 30, 2)
	// Jump far past the window; the stale record must age out.
	clock.Advance(5 * time.Second)
	out := s.Observe(false, nil, 0, 0)

	assert.Equal(t, 1, out.Frames)
	assert.False(t, out.Detected)
}
