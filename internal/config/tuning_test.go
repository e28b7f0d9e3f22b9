package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()

	assert.Equal(t, 500.0, cfg.GetTargetPairDistancePx())
	assert.Equal(t, 0.25, cfg.GetPairDistanceTolerance())
	assert.Equal(t, 40.0, cfg.GetOrientationToleranceDeg())
	assert.Equal(t, 500*time.Millisecond, cfg.GetSmoothingWindow())
	assert.Equal(t, 0.5, cfg.GetDetectionThreshold())
	assert.Equal(t, 40.0, cfg.GetPitchMinDeg())
	assert.Equal(t, 50.0, cfg.GetPitchMaxDeg())
	assert.Equal(t, 4.0, cfg.GetMarkerSizeCm())
	assert.Equal(t, 1500.0, cfg.GetFocalLengthPx())
	assert.Equal(t, 5, cfg.GetMarkerLostFrames())
	assert.Equal(t, 800*time.Millisecond, cfg.GetWarningMinDisplay())
	assert.Equal(t, 2*time.Second, cfg.GetMovementWindow())
	assert.Equal(t, 3, cfg.GetMovementAvgSamples())
	assert.Equal(t, 0.15, cfg.GetLostRatioMax())
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"target_pair_distance_px": 620, "smoothing_window": "750ms"}`)

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 620.0, cfg.GetTargetPairDistancePx())
		assert.Equal(t, 750*time.Millisecond, cfg.GetSmoothingWindow())
		// Untouched fields fall back to defaults.
		assert.Equal(t, 0.25, cfg.GetPairDistanceTolerance())
		assert.Equal(t, 0.5, cfg.GetDetectionThreshold())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"target_pair_distance_px": `)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "parse")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *TuningConfig)
		wantErr string
	}{
		{
			name:    "threshold above one",
			mutate:  func(c *TuningConfig) { c.DetectionThreshold = ptrFloat64(1.5) },
			wantErr: "detection_threshold",
		},
		{
			name:    "tolerance of one",
			mutate:  func(c *TuningConfig) { c.PairDistanceTolerance = ptrFloat64(1.0) },
			wantErr: "pair_distance_tolerance",
		},
		{
			name:    "negative target distance",
			mutate:  func(c *TuningConfig) { c.TargetPairDistancePx = ptrFloat64(-10) },
			wantErr: "target_pair_distance_px",
		},
		{
			name: "inverted pitch band",
			mutate: func(c *TuningConfig) {
				c.PitchMinDeg = ptrFloat64(60)
				c.PitchMaxDeg = ptrFloat64(50)
			},
			wantErr: "pitch_min_deg",
		},
		{
			name:    "lost ratio above one",
			mutate:  func(c *TuningConfig) { c.LostRatioMax = ptrFloat64(2) },
			wantErr: "lost_ratio_max",
		},
		{
			name:    "zero lost frames",
			mutate:  func(c *TuningConfig) { c.MarkerLostFrames = ptrInt(0) },
			wantErr: "marker_lost_frames",
		},
		{
			name:    "bad smoothing window",
			mutate:  func(c *TuningConfig) { c.SmoothingWindow = ptrString("half a second") },
			wantErr: "smoothing_window",
		},
		{
			name:    "bad movement window",
			mutate:  func(c *TuningConfig) { c.MovementWindow = ptrString("2 sec") },
			wantErr: "movement_window",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := EmptyTuningConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	t.Run("empty config is valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, EmptyTuningConfig().Validate())
	})
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	// The canonical defaults file must agree with the accessor defaults.
	assert.Equal(t, 500.0, cfg.GetTargetPairDistancePx())
	assert.Equal(t, 0.5, cfg.GetDetectionThreshold())
	assert.Equal(t, 2*time.Second, cfg.GetMovementWindow())
}
