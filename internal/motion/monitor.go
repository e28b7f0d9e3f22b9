// Package motion tracks marker centroid drift during an active recording
// and produces the post-recording quality verdict. It owns its own sample
// history, entirely separate from the pre-recording smoothing state.
package motion

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/timeutil"
)

// Warning is the transient operator warning raised during recording.
type Warning string

const (
	WarningNone            Warning = ""
	WarningDrifting        Warning = "drifting"
	WarningTooMuchMovement Warning = "too_much_movement"
	WarningMarkerLost      Warning = "marker_lost"
)

// severity orders warnings so a more severe condition replaces a less
// severe one immediately, while de-escalation waits out the minimum
// display duration.
func severity(w Warning) int {
	switch w {
	case WarningDrifting:
		return 1
	case WarningTooMuchMovement:
		return 2
	case WarningMarkerLost:
		return 3
	}
	return 0
}

// Sample is one recording-time centroid observation in pixel space.
type Sample struct {
	At       time.Time  `json:"at"`
	Centroid geom.Point `json:"centroid"`
}

// DeltaPoint is one inter-frame movement magnitude, kept for the whole
// recording to drive the final verdict and the session report.
type DeltaPoint struct {
	At        time.Time `json:"at"`
	Magnitude float64   `json:"magnitude_px"`
}

// Verdict is the aggregate quality result computed when recording stops.
type Verdict struct {
	TotalFrames          int     `json:"total_frames"`
	LostFrames           int     `json:"lost_frames"`
	LostRatio            float64 `json:"lost_ratio"`
	AvgMovementPx        float64 `json:"avg_movement_px"`
	MovementStdDevPx     float64 `json:"movement_stddev_px"`
	PeakMovementPx       float64 `json:"peak_movement_px"`
	HadExcessiveMovement bool    `json:"had_excessive_movement"`
}

// Monitor accumulates movement statistics for one recording. It is not
// safe for concurrent use; the owning session serialises frames.
type Monitor struct {
	cfg   *config.TuningConfig
	clock timeutil.Clock
	size  geom.Size

	totalFrames     int
	lostFrames      int
	consecutiveLost int

	samples []Sample     // pruned to the trailing movement window
	deltas  []DeltaPoint // whole recording

	warning      Warning
	warningSince time.Time
}

// NewMonitor builds a monitor for a recording at the given resolution.
func NewMonitor(cfg *config.TuningConfig, clock timeutil.Clock, size geom.Size) *Monitor {
	return &Monitor{cfg: cfg, clock: clock, size: size}
}

// Frame folds one recording frame into the statistics and returns the
// warning to display, if any. markers must already be sanitized; an
// empty slice counts as a lost frame.
func (m *Monitor) Frame(markers []geom.Marker) Warning {
	now := m.clock.Now()
	m.totalFrames++

	if len(markers) == 0 {
		m.lostFrames++
		m.consecutiveLost++
		if m.consecutiveLost > m.cfg.GetMarkerLostFrames() {
			m.raise(WarningMarkerLost, now)
		}
		return m.warning
	}

	m.consecutiveLost = 0
	centroid := combinedCentroidPx(markers, m.size)

	if ref, ok := m.recentMeanCentroid(); ok {
		delta := centroid.Dist(ref)
		m.deltas = append(m.deltas, DeltaPoint{At: now, Magnitude: delta})

		switch {
		case delta > m.cfg.GetMovementExcessivePx():
			m.raise(WarningTooMuchMovement, now)
		case delta > m.cfg.GetMovementDriftPx():
			m.raise(WarningDrifting, now)
		default:
			m.maybeClear(now)
		}
	}

	m.samples = append(m.samples, Sample{At: now, Centroid: centroid})
	m.prune(now)

	return m.warning
}

// Warning returns the currently displayed warning.
func (m *Monitor) Warning() Warning {
	return m.warning
}

// Deltas returns a copy of the whole-recording movement magnitudes.
func (m *Monitor) Deltas() []DeltaPoint {
	out := make([]DeltaPoint, len(m.deltas))
	copy(out, m.deltas)
	return out
}

// Finish computes the final quality verdict from the aggregate
// statistics. The monitor is spent afterwards.
func (m *Monitor) Finish() Verdict {
	v := Verdict{
		TotalFrames: m.totalFrames,
		LostFrames:  m.lostFrames,
	}
	if m.totalFrames > 0 {
		v.LostRatio = float64(m.lostFrames) / float64(m.totalFrames)
	}

	if len(m.deltas) > 0 {
		mags := make([]float64, len(m.deltas))
		for i, d := range m.deltas {
			mags[i] = d.Magnitude
			if d.Magnitude > v.PeakMovementPx {
				v.PeakMovementPx = d.Magnitude
			}
		}
		v.AvgMovementPx = stat.Mean(mags, nil)
		if len(mags) > 1 {
			v.MovementStdDevPx = stat.StdDev(mags, nil)
		}
	}

	v.HadExcessiveMovement = v.LostRatio > m.cfg.GetLostRatioMax() ||
		v.AvgMovementPx > m.cfg.GetAvgMovementMax()
	return v
}

// raise escalates immediately but never de-escalates before the minimum
// display duration, so warnings do not flicker.
func (m *Monitor) raise(w Warning, now time.Time) {
	if w == m.warning {
		return
	}
	if severity(w) < severity(m.warning) &&
		now.Sub(m.warningSince) < m.cfg.GetWarningMinDisplay() {
		return
	}
	m.warning = w
	m.warningSince = now
}

// maybeClear drops the warning once it has been displayed long enough.
func (m *Monitor) maybeClear(now time.Time) {
	if m.warning == WarningNone {
		return
	}
	if now.Sub(m.warningSince) >= m.cfg.GetWarningMinDisplay() {
		m.warning = WarningNone
	}
}

// recentMeanCentroid averages the trailing few samples as the drift
// reference. Returns false when no samples exist yet.
func (m *Monitor) recentMeanCentroid() (geom.Point, bool) {
	if len(m.samples) == 0 {
		return geom.Point{}, false
	}
	n := m.cfg.GetMovementAvgSamples()
	if n > len(m.samples) {
		n = len(m.samples)
	}
	var sx, sy float64
	for _, s := range m.samples[len(m.samples)-n:] {
		sx += s.Centroid.X
		sy += s.Centroid.Y
	}
	return geom.Point{X: sx / float64(n), Y: sy / float64(n)}, true
}

// prune drops samples older than the trailing movement window.
func (m *Monitor) prune(now time.Time) {
	cutoff := now.Add(-m.cfg.GetMovementWindow())
	i := 0
	for ; i < len(m.samples); i++ {
		if !m.samples[i].At.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		m.samples = append(m.samples[:0], m.samples[i:]...)
	}
}

// combinedCentroidPx is the mean of all detected markers' corners in
// pixel space.
func combinedCentroidPx(markers []geom.Marker, size geom.Size) geom.Point {
	var sx, sy float64
	var n float64
	for _, mk := range markers {
		for _, c := range mk.Corners {
			p := c.Pixels(size)
			sx += p.X
			sy += p.Y
			n++
		}
	}
	return geom.Point{X: sx / n, Y: sy / n}
}
