package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for alignment tuning
// parameters. Every threshold the pipeline uses lives here so components
// receive their numbers by injection instead of hard-coding them. Fields
// are pointers so a partial JSON file only overrides what it names; the
// Get* accessors supply the documented defaults for everything else.
type TuningConfig struct {
	// Pair analyzer params. Pixel thresholds are calibrated at the
	// session's configured image resolution.
	TargetPairDistancePx    *float64 `json:"target_pair_distance_px,omitempty"`
	PairDistanceTolerance   *float64 `json:"pair_distance_tolerance,omitempty"` // fraction, e.g. 0.25
	OrientationToleranceDeg *float64 `json:"orientation_tolerance_deg,omitempty"`

	// Smoother params
	SmoothingWindow    *string  `json:"smoothing_window,omitempty"` // duration string like "500ms"
	DetectionThreshold *float64 `json:"detection_threshold,omitempty"`

	// Device viewing angle band (pitch, degrees)
	PitchMinDeg *float64 `json:"pitch_min_deg,omitempty"`
	PitchMaxDeg *float64 `json:"pitch_max_deg,omitempty"`

	// Pinhole / tilt approximation constants
	MarkerSizeCm  *float64 `json:"marker_size_cm,omitempty"`
	FocalLengthPx *float64 `json:"focal_length_px,omitempty"`
	TiltGain      *float64 `json:"tilt_gain,omitempty"`
	FlatMaxDeg    *float64 `json:"flat_max_deg,omitempty"`

	// Movement monitor params (recording time)
	MovementDriftPx     *float64 `json:"movement_drift_px,omitempty"`
	MovementExcessivePx *float64 `json:"movement_excessive_px,omitempty"`
	MarkerLostFrames    *int     `json:"marker_lost_frames,omitempty"`
	WarningMinDisplay   *string  `json:"warning_min_display,omitempty"` // duration string like "800ms"
	MovementWindow      *string  `json:"movement_window,omitempty"`     // duration string like "2s"
	MovementAvgSamples  *int     `json:"movement_avg_samples,omitempty"`

	// Post-recording verdict params
	LostRatioMax   *float64 `json:"lost_ratio_max,omitempty"`
	AvgMovementMax *float64 `json:"avg_movement_max,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DetectionThreshold != nil {
		if *c.DetectionThreshold < 0 || *c.DetectionThreshold > 1 {
			return fmt.Errorf("detection_threshold must be between 0 and 1, got %f", *c.DetectionThreshold)
		}
	}

	if c.PairDistanceTolerance != nil {
		if *c.PairDistanceTolerance < 0 || *c.PairDistanceTolerance >= 1 {
			return fmt.Errorf("pair_distance_tolerance must be in [0, 1), got %f", *c.PairDistanceTolerance)
		}
	}

	if c.TargetPairDistancePx != nil && *c.TargetPairDistancePx <= 0 {
		return fmt.Errorf("target_pair_distance_px must be positive, got %f", *c.TargetPairDistancePx)
	}

	if c.PitchMinDeg != nil && c.PitchMaxDeg != nil && *c.PitchMinDeg >= *c.PitchMaxDeg {
		return fmt.Errorf("pitch_min_deg %f must be below pitch_max_deg %f", *c.PitchMinDeg, *c.PitchMaxDeg)
	}

	if c.LostRatioMax != nil {
		if *c.LostRatioMax < 0 || *c.LostRatioMax > 1 {
			return fmt.Errorf("lost_ratio_max must be between 0 and 1, got %f", *c.LostRatioMax)
		}
	}

	if c.MarkerLostFrames != nil && *c.MarkerLostFrames < 1 {
		return fmt.Errorf("marker_lost_frames must be at least 1, got %d", *c.MarkerLostFrames)
	}

	if c.MovementAvgSamples != nil && *c.MovementAvgSamples < 1 {
		return fmt.Errorf("movement_avg_samples must be at least 1, got %d", *c.MovementAvgSamples)
	}

	// Validate duration strings can be parsed if set
	for name, v := range map[string]*string{
		"smoothing_window":    c.SmoothingWindow,
		"warning_min_display": c.WarningMinDisplay,
		"movement_window":     c.MovementWindow,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

// GetTargetPairDistancePx returns the target inter-marker pixel distance
// at optimal range, or the default.
func (c *TuningConfig) GetTargetPairDistancePx() float64 {
	if c.TargetPairDistancePx == nil {
		return 500
	}
	return *c.TargetPairDistancePx
}

// GetPairDistanceTolerance returns the distance tolerance fraction or the default.
func (c *TuningConfig) GetPairDistanceTolerance() float64 {
	if c.PairDistanceTolerance == nil {
		return 0.25
	}
	return *c.PairDistanceTolerance
}

// GetOrientationToleranceDeg returns the diagonal angle tolerance or the
// default. The default is deliberately lenient to tolerate side-on viewing.
func (c *TuningConfig) GetOrientationToleranceDeg() float64 {
	if c.OrientationToleranceDeg == nil {
		return 40
	}
	return *c.OrientationToleranceDeg
}

// GetSmoothingWindow parses and returns the SmoothingWindow as a time.Duration.
func (c *TuningConfig) GetSmoothingWindow() time.Duration {
	if c.SmoothingWindow == nil || *c.SmoothingWindow == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.SmoothingWindow)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetDetectionThreshold returns the majority-vote fraction or the default.
func (c *TuningConfig) GetDetectionThreshold() float64 {
	if c.DetectionThreshold == nil {
		return 0.5
	}
	return *c.DetectionThreshold
}

// GetPitchMinDeg returns the lower bound of the good viewing-angle band.
func (c *TuningConfig) GetPitchMinDeg() float64 {
	if c.PitchMinDeg == nil {
		return 40
	}
	return *c.PitchMinDeg
}

// GetPitchMaxDeg returns the upper bound of the good viewing-angle band.
func (c *TuningConfig) GetPitchMaxDeg() float64 {
	if c.PitchMaxDeg == nil {
		return 50
	}
	return *c.PitchMaxDeg
}

// GetMarkerSizeCm returns the printed marker side length or the default.
func (c *TuningConfig) GetMarkerSizeCm() float64 {
	if c.MarkerSizeCm == nil {
		return 4.0
	}
	return *c.MarkerSizeCm
}

// GetFocalLengthPx returns the assumed focal length in pixels or the
// default. This is an empirical constant, not a calibrated value.
func (c *TuningConfig) GetFocalLengthPx() float64 {
	if c.FocalLengthPx == nil {
		return 1500
	}
	return *c.FocalLengthPx
}

// GetTiltGain returns the edge-ratio-to-angle gain or the default.
func (c *TuningConfig) GetTiltGain() float64 {
	if c.TiltGain == nil {
		return 3.0
	}
	return *c.TiltGain
}

// GetFlatMaxDeg returns the tilt magnitude under which a marker counts as
// flat, or the default.
func (c *TuningConfig) GetFlatMaxDeg() float64 {
	if c.FlatMaxDeg == nil {
		return 30
	}
	return *c.FlatMaxDeg
}

// GetMovementDriftPx returns the drifting-warning threshold or the default.
func (c *TuningConfig) GetMovementDriftPx() float64 {
	if c.MovementDriftPx == nil {
		return 12
	}
	return *c.MovementDriftPx
}

// GetMovementExcessivePx returns the too-much-movement threshold or the default.
func (c *TuningConfig) GetMovementExcessivePx() float64 {
	if c.MovementExcessivePx == nil {
		return 30
	}
	return *c.MovementExcessivePx
}

// GetMarkerLostFrames returns the consecutive-loss count that raises the
// marker-lost warning, or the default.
func (c *TuningConfig) GetMarkerLostFrames() int {
	if c.MarkerLostFrames == nil {
		return 5
	}
	return *c.MarkerLostFrames
}

// GetWarningMinDisplay parses and returns the minimum warning display
// duration as a time.Duration.
func (c *TuningConfig) GetWarningMinDisplay() time.Duration {
	if c.WarningMinDisplay == nil || *c.WarningMinDisplay == "" {
		return 800 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.WarningMinDisplay)
	if err != nil {
		return 800 * time.Millisecond // default on parse error
	}
	return d
}

// GetMovementWindow parses and returns the trailing movement sample
// window as a time.Duration.
func (c *TuningConfig) GetMovementWindow() time.Duration {
	if c.MovementWindow == nil || *c.MovementWindow == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.MovementWindow)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetMovementAvgSamples returns how many trailing samples the drift delta
// is measured against, or the default.
func (c *TuningConfig) GetMovementAvgSamples() int {
	if c.MovementAvgSamples == nil {
		return 3
	}
	return *c.MovementAvgSamples
}

// GetLostRatioMax returns the lost-frame ratio above which a recording is
// flagged, or the default.
func (c *TuningConfig) GetLostRatioMax() float64 {
	if c.LostRatioMax == nil {
		return 0.15
	}
	return *c.LostRatioMax
}

// GetAvgMovementMax returns the whole-recording mean movement magnitude
// above which a recording is flagged, or the default.
func (c *TuningConfig) GetAvgMovementMax() float64 {
	if c.AvgMovementMax == nil {
		return 18
	}
	return *c.AvgMovementMax
}
