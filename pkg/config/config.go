// Package config provides configuration loading and management for dicomroi.
// It handles loading configuration from YAML files, overlaying DICOMROI_*
// environment variables and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dicomroi/internal/models"
	"dicomroi/pkg/export"
)

// DefaultFields is the default metadata selection merged into records
var DefaultFields = []string{
	"PatientName", "PatientID", "StudyDate", "Modality", "Manufacturer",
	"ExposureIndex", "TargetExposureIndex", "DeviationIndex",
	"ExposureTime", "Exposure", "XRayTubeCurrent", "KVP",
	"Rows", "Columns", "SliceLocation",
}

// DefaultExportFields is the column selection used when none is configured
var DefaultExportFields = export.DefaultColumns

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// ROIs are the circular regions evaluated on every image
		ROIs []models.ROI `yaml:"rois"`

		// DefaultRadius is used for ROIs given on the command line without a radius
		DefaultRadius int32 `yaml:"defaultRadius"`

		// SliceLocationFilter restricts the batch to matching images when set
		SliceLocationFilter string `yaml:"sliceLocationFilter"`

		// Fields are the metadata fields merged into each record
		Fields []string `yaml:"fields"`

		// Workers > 1 computes images in parallel; output order is unchanged
		Workers int `yaml:"workers"`

		// SkipYieldEvery controls how often a run of filtered images yields
		SkipYieldEvery int `yaml:"skipYieldEvery"`
	} `yaml:"analysis"`

	// Display parameters, used for previews only
	Display struct {
		// Zoom is the preview zoom in percent (25-400)
		Zoom int `yaml:"zoom"`

		// Rotation is the preview rotation in degrees
		Rotation int `yaml:"rotation"`

		// Window overrides the metadata or computed window when Width > 0
		Window models.WindowLevel `yaml:"window"`
	} `yaml:"display"`

	// Output parameters
	Output struct {
		// CSVPath is the export destination; empty selects a dated file name
		CSVPath string `yaml:"csvPath"`

		// ExportFields are the CSV columns in order
		ExportFields []string `yaml:"exportFields"`

		// PreviewDir receives one preview image per analyzed file when set
		PreviewDir string `yaml:"previewDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.DefaultRadius = 25
	cfg.Analysis.Fields = append([]string(nil), DefaultFields...)
	cfg.Analysis.Workers = 1
	cfg.Analysis.SkipYieldEvery = 64

	cfg.Display.Zoom = 100

	cfg.Output.ExportFields = append([]string(nil), DefaultExportFields...)

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// LoadEnv reads a .env file when present. A missing file is not an error.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// ApplyEnv overlays DICOMROI_* environment variables on cfg
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DICOMROI_SLICE_FILTER"); v != "" {
		c.Analysis.SliceLocationFilter = v
	}
	if v := os.Getenv("DICOMROI_FIELDS"); v != "" {
		c.Analysis.Fields = splitList(v)
	}
	if v := os.Getenv("DICOMROI_EXPORT_FIELDS"); v != "" {
		c.Output.ExportFields = splitList(v)
	}
	if v := os.Getenv("DICOMROI_CSV"); v != "" {
		c.Output.CSVPath = v
	}
	if v := os.Getenv("DICOMROI_PREVIEW_DIR"); v != "" {
		c.Output.PreviewDir = v
	}
	if n, err := strconv.Atoi(os.Getenv("DICOMROI_WORKERS")); err == nil {
		c.Analysis.Workers = n
	}
	if b, err := strconv.ParseBool(os.Getenv("DICOMROI_VERBOSE")); err == nil {
		c.Output.Verbose = b
	}
}

// ConfigError describes a configuration value that was corrected in place
type ConfigError struct {
	Field string
	Value float64
	Fixed float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v, using %v", e.Field, e.Value, e.Fixed)
}

// Validate clamps out-of-range values and returns one ConfigError per
// correction. The returned errors are informational; cfg is always usable.
func (c *Config) Validate() []error {
	var errs []error

	for i := range c.Analysis.ROIs {
		if r := c.Analysis.ROIs[i].Radius; r < 0 {
			c.Analysis.ROIs[i].Radius = 0
			errs = append(errs, &ConfigError{Field: fmt.Sprintf("radius of ROI %d", i+1), Value: float64(r)})
		}
	}
	if c.Analysis.DefaultRadius < 0 {
		errs = append(errs, &ConfigError{Field: "default radius", Value: float64(c.Analysis.DefaultRadius)})
		c.Analysis.DefaultRadius = 0
	}
	if w := c.Display.Window.Width; w != 0 && w < models.MinWindowWidth {
		c.Display.Window.Width = models.MinWindowWidth
		errs = append(errs, &ConfigError{Field: "window width", Value: w, Fixed: models.MinWindowWidth})
	}
	if c.Analysis.Workers < 1 {
		errs = append(errs, &ConfigError{Field: "workers", Value: float64(c.Analysis.Workers), Fixed: 1})
		c.Analysis.Workers = 1
	}
	if c.Analysis.SkipYieldEvery < 1 {
		errs = append(errs, &ConfigError{Field: "skipYieldEvery", Value: float64(c.Analysis.SkipYieldEvery), Fixed: 1})
		c.Analysis.SkipYieldEvery = 1
	}

	return errs
}

// ParseROI parses "x,y" or "x,y,r". A missing radius uses defaultRadius.
func ParseROI(s string, defaultRadius int32) (models.ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return models.ROI{}, fmt.Errorf("invalid ROI %q: expected x,y[,r]", s)
	}

	values := make([]int32, 3)
	values[2] = defaultRadius
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return models.ROI{}, fmt.Errorf("invalid ROI %q: %w", s, err)
		}
		values[i] = int32(n)
	}

	return models.ROI{CenterX: values[0], CenterY: values[1], Radius: values[2]}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
