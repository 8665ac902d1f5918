package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicomroi/internal/models"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dicomroi.yaml")

	cfg := DefaultConfig()
	cfg.Analysis.ROIs = []models.ROI{{CenterX: 10, CenterY: 20, Radius: 5}}
	cfg.Analysis.SliceLocationFilter = "12.5"
	cfg.Display.Window = models.WindowLevel{Width: 400, Center: 40}
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DICOMROI_SLICE_FILTER", "S0")
	t.Setenv("DICOMROI_EXPORT_FIELDS", "FileName, ROI_Mean,,KVP")
	t.Setenv("DICOMROI_WORKERS", "3")
	t.Setenv("DICOMROI_VERBOSE", "false")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "S0", cfg.Analysis.SliceLocationFilter)
	assert.Equal(t, []string{"FileName", "ROI_Mean", "KVP"}, cfg.Output.ExportFields)
	assert.Equal(t, 3, cfg.Analysis.Workers)
	assert.False(t, cfg.Output.Verbose)
}

func TestValidateClampsValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.ROIs = []models.ROI{{CenterX: 1, CenterY: 1, Radius: -3}, {Radius: 4}}
	cfg.Display.Window.Width = 0.25
	cfg.Analysis.Workers = 0

	errs := cfg.Validate()
	require.Len(t, errs, 3)

	var cfgErr *ConfigError
	assert.True(t, errors.As(errs[0], &cfgErr))
	assert.Equal(t, int32(0), cfg.Analysis.ROIs[0].Radius)
	assert.Equal(t, int32(4), cfg.Analysis.ROIs[1].Radius)
	assert.Equal(t, 1.0, cfg.Display.Window.Width)
	assert.Equal(t, 1, cfg.Analysis.Workers)
}

func TestParseROI(t *testing.T) {
	roi, err := ParseROI("10, 20,5", 25)
	require.NoError(t, err)
	assert.Equal(t, models.ROI{CenterX: 10, CenterY: 20, Radius: 5}, roi)

	roi, err = ParseROI("-3,4", 25)
	require.NoError(t, err)
	assert.Equal(t, models.ROI{CenterX: -3, CenterY: 4, Radius: 25}, roi)

	_, err = ParseROI("1", 25)
	assert.Error(t, err)
	_, err = ParseROI("a,b", 25)
	assert.Error(t, err)
}
