// Package session owns all per-session mutable state: the smoothing
// history, the recording-time movement monitor, and the latest alignment
// snapshot. Nothing in the pipeline is ambient, so tests and the API can
// run many sessions independently and concurrently.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stillframe/marker.align/internal/align"
	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/monitoring"
	"github.com/stillframe/marker.align/internal/motion"
	"github.com/stillframe/marker.align/internal/timeutil"
)

var (
	// ErrRecording is returned when an operation requires recording to
	// be stopped.
	ErrRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned when an operation requires an active
	// recording.
	ErrNotRecording = errors.New("no recording in progress")
)

// FrameResult is the per-frame output handed to the caller: the current
// alignment snapshot plus, during recording, the movement warning.
type FrameResult struct {
	State     align.AlignmentState `json:"state"`
	Recording bool                 `json:"recording"`
	Warning   motion.Warning       `json:"warning,omitempty"`
}

// Session processes frames for one operator session. Frame processing is
// serialised under a single mutex and the alignment snapshot is replaced
// atomically, so a concurrent reader always observes a complete state.
type Session struct {
	id        string
	variant   align.TemplateVariant
	size      geom.Size
	cfg       *config.TuningConfig
	clock     timeutil.Clock
	startedAt time.Time

	mu       sync.RWMutex
	smoother *align.Smoother
	monitor  *motion.Monitor
	tilt     align.TiltInput
	snapshot align.AlignmentState

	recording        bool
	recordingStarted time.Time
	lastVerdict      *motion.Verdict
	lastTrace        []motion.DeltaPoint
}

// New creates a session for the given template variant and image
// resolution. The variant and resolution are immutable for the session's
// duration.
func New(variant align.TemplateVariant, size geom.Size, cfg *config.TuningConfig, clock timeutil.Clock) (*Session, error) {
	if !variant.Valid() {
		return nil, fmt.Errorf("unknown template variant %q", variant)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %gx%g", size.Width, size.Height)
	}

	now := clock.Now()
	s := &Session{
		id:        uuid.NewString(),
		variant:   variant,
		size:      size,
		cfg:       cfg,
		clock:     clock,
		startedAt: now,
		smoother:  align.NewSmoother(cfg, clock),
	}
	s.snapshot = align.Reduce(align.ReduceInput{Now: now}, cfg)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Variant returns the template variant chosen at session start.
func (s *Session) Variant() align.TemplateVariant { return s.variant }

// ImageSize returns the session's pixel resolution.
func (s *Session) ImageSize() geom.Size { return s.size }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// SetTilt records the latest device pitch sample from the orientation
// sensor. Sampled at a low rate independent of the frame rate.
func (s *Session) SetTilt(pitchDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tilt = align.TiltInput{PitchDeg: pitchDeg, Valid: true}
}

// Frame processes one frame of detector output. Before recording it runs
// the alignment pipeline and replaces the snapshot; during recording the
// detections feed the movement monitor instead and the snapshot is left
// as it was when recording began.
func (s *Session) Frame(markers []geom.Marker) FrameResult {
	markers = geom.Sanitize(markers)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		w := s.monitor.Frame(markers)
		if w != motion.WarningNone {
			monitoring.Debugf("session %s: movement warning %q", s.id, w)
		}
		return FrameResult{State: s.snapshot, Recording: true, Warning: w}
	}

	s.snapshot = s.reduce(markers)
	return FrameResult{State: s.snapshot}
}

// reduce runs the per-frame alignment pipeline. Caller holds the lock.
func (s *Session) reduce(markers []geom.Marker) align.AlignmentState {
	pair := align.AnalyzePair(markers, s.size, s.variant, s.cfg)

	var distanceCm, rollDeg float64
	var tilt geom.Tilt
	if pair.Found {
		distanceCm = geom.DistanceEstimateCm(markers[0], s.size, s.cfg.GetMarkerSizeCm(), s.cfg.GetFocalLengthPx())
		rollDeg = geom.InPlaneRoll(markers[0])
		tilt = geom.TiltEstimate(markers[0], s.size, s.cfg.GetTiltGain(), s.cfg.GetFlatMaxDeg())
	}

	smoothed := s.smoother.Observe(pair.Found, markers, distanceCm, rollDeg)

	// On a one-frame miss the smoother reuses the last detecting
	// frame's corners; re-run the pair analysis on that geometry so the
	// presented measurements match what is shown.
	if smoothed.Detected && smoothed.Backfilled {
		pair = align.AnalyzePair(smoothed.Markers, s.size, s.variant, s.cfg)
		tilt = geom.TiltEstimate(smoothed.Markers[0], s.size, s.cfg.GetTiltGain(), s.cfg.GetFlatMaxDeg())
	}

	return align.Reduce(align.ReduceInput{
		Pair:       pair,
		Smoothed:   smoothed,
		DeviceTilt: s.tilt,
		MarkerTilt: tilt,
		Now:        s.clock.Now(),
	}, s.cfg)
}

// Snapshot returns the latest alignment state.
func (s *Session) Snapshot() align.AlignmentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// StartRecording switches the session's frame path to the movement
// monitor. It deliberately does not require ReadyToRecord: recording in
// a non-ideal state is allowed and judged afterwards by the verdict.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		return ErrRecording
	}
	s.monitor = motion.NewMonitor(s.cfg, s.clock, s.size)
	s.recording = true
	s.recordingStarted = s.clock.Now()
	s.lastVerdict = nil
	s.lastTrace = nil
	monitoring.Logf("session %s: recording started", s.id)
	return nil
}

// StopRecording ends the recording, computes the quality verdict, and
// resets the pre-recording smoothing history so recording-time gaps do
// not bleed into the next alignment phase.
func (s *Session) StopRecording() (motion.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return motion.Verdict{}, ErrNotRecording
	}

	v := s.monitor.Finish()
	s.lastVerdict = &v
	s.lastTrace = s.monitor.Deltas()
	s.monitor = nil
	s.recording = false
	s.smoother.Reset()

	monitoring.Logf("session %s: recording stopped after %d frames (lost %.0f%%, excessive=%v)",
		s.id, v.TotalFrames, v.LostRatio*100, v.HadExcessiveMovement)
	return v, nil
}

// Recording reports whether a recording is in progress.
func (s *Session) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// Elapsed returns the duration of the active recording, or zero.
func (s *Session) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.recording {
		return 0
	}
	return s.clock.Since(s.recordingStarted)
}

// Warning returns the current movement warning, if recording.
func (s *Session) Warning() motion.Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.recording {
		return motion.WarningNone
	}
	return s.monitor.Warning()
}

// Verdict returns the verdict of the most recently finished recording.
func (s *Session) Verdict() (motion.Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastVerdict == nil {
		return motion.Verdict{}, false
	}
	return *s.lastVerdict, true
}

// MovementTrace returns the movement magnitudes of the active or most
// recently finished recording.
func (s *Session) MovementTrace() []motion.DeltaPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.recording {
		return s.monitor.Deltas()
	}
	out := make([]motion.DeltaPoint, len(s.lastTrace))
	copy(out, s.lastTrace)
	return out
}
