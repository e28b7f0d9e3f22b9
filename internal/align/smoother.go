package align

import (
	"time"

	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/timeutil"
)

// frameRecord is one node of the rolling detection window.
type frameRecord struct {
	at         time.Time
	detected   bool
	markers    []geom.Marker
	distanceCm float64
	rollDeg    float64
}

// SmoothedDetection is the majority-vote outcome over the trailing
// window plus the geometry to present for the current frame. When the
// current frame missed but the window still votes detected, the geometry
// is backfilled from the most recent detecting frame so the UI does not
// blank out on a one-frame miss.
type SmoothedDetection struct {
	Detected       bool
	Markers        []geom.Marker
	DistanceCm     float64
	RollDeg        float64
	Frames         int
	DetectedFrames int
	// Backfilled is true when the geometry came from an earlier frame.
	Backfilled bool
}

// Smoother maintains the rolling per-frame detection history for one
// session. It is not safe for concurrent use; the owning session
// serialises frame processing.
type Smoother struct {
	clock     timeutil.Clock
	window    time.Duration
	threshold float64
	history   []frameRecord
}

// NewSmoother builds a smoother with the configured window and
// majority-vote threshold.
func NewSmoother(cfg *config.TuningConfig, clock timeutil.Clock) *Smoother {
	return &Smoother{
		clock:     clock,
		window:    cfg.GetSmoothingWindow(),
		threshold: cfg.GetDetectionThreshold(),
	}
}

// Observe folds one frame's outcome into the window and returns the
// smoothed state. detected means the frame produced a usable marker
// pair; markers, distanceCm and rollDeg are that frame's geometry and
// are ignored when detected is false.
func (s *Smoother) Observe(detected bool, markers []geom.Marker, distanceCm, rollDeg float64) SmoothedDetection {
	now := s.clock.Now()

	rec := frameRecord{at: now, detected: detected, distanceCm: distanceCm, rollDeg: rollDeg}
	if detected {
		rec.markers = append([]geom.Marker(nil), markers...)
	}
	s.history = append(s.history, rec)
	s.prune(now)

	out := SmoothedDetection{Frames: len(s.history)}
	for _, r := range s.history {
		if r.detected {
			out.DetectedFrames++
		}
	}
	out.Detected = float64(out.DetectedFrames)/float64(out.Frames) >= s.threshold

	if !out.Detected {
		return out
	}

	if detected {
		out.Markers = rec.markers
		out.DistanceCm = distanceCm
		out.RollDeg = rollDeg
		return out
	}

	// Current frame missed: reuse the most recent frame that detected.
	for i := len(s.history) - 1; i >= 0; i-- {
		if r := s.history[i]; r.detected {
			out.Markers = r.markers
			out.DistanceCm = r.distanceCm
			out.RollDeg = r.rollDeg
			out.Backfilled = true
			break
		}
	}
	return out
}

// prune drops records older than the window.
func (s *Smoother) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for ; i < len(s.history); i++ {
		if !s.history[i].at.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		s.history = append(s.history[:0], s.history[i:]...)
	}
}

// Reset clears the window. Called at session start and after recording
// stops so recording-time gaps do not bleed into pre-recording state.
func (s *Smoother) Reset() {
	s.history = s.history[:0]
}
