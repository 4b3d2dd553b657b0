// Package config provides configuration loading and management for sliceflatmap.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Region describes one sub-region of a composite flatmap
type Region struct {
	// Name identifies the region in logs and errors
	Name string `yaml:"name"`

	// InputDir holds the region's label slices
	InputDir string `yaml:"inputDir"`

	// VoxelSize and Origin define the voxel-to-world transform (slice, row, col order)
	VoxelSize [3]float64 `yaml:"voxelSize"`
	Origin    [3]float64 `yaml:"origin"`

	// RowOffset is the hand-tuned vertical position on the composite canvas
	RowOffset int `yaml:"rowOffset"`

	// SliceShift moves the region horizontally by whole slices
	SliceShift int `yaml:"sliceShift"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many slices are processed concurrently
		NumCores int `yaml:"numCores"`

		// Connectivity of objects on a slice, 4 or 8
		Connectivity int `yaml:"connectivity"`

		// OffsetSign is the contour offset convention, +1 or -1. The composite row
		// offsets below are tuned for one convention.
		OffsetSign int `yaml:"offsetSign"`

		// Verbose logs skipped slices and unmapped points
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// Landmark label IDs
	Landmarks struct {
		// Incision marks the cut point on each contour
		Incision uint32 `yaml:"incision"`

		// Origin marks offset zero on each contour
		Origin uint32 `yaml:"origin"`

		// Suppress lists labels blanked out of every rendered channel
		Suppress []uint32 `yaml:"suppress"`
	} `yaml:"landmarks"`

	// Volume parameters for single-region runs
	Volume struct {
		VoxelSize [3]float64 `yaml:"voxelSize"`
		Origin    [3]float64 `yaml:"origin"`
	} `yaml:"volume"`

	// Intensity volume parameters
	Intensity struct {
		// InputDir holds the intensity slices; empty disables the intensity channel
		InputDir string `yaml:"inputDir"`

		VoxelSize [3]float64 `yaml:"voxelSize"`
		Origin    [3]float64 `yaml:"origin"`

		// RequireMatchingExtents rejects intensity volumes shaped unlike the labels
		RequireMatchingExtents bool `yaml:"requireMatchingExtents"`
	} `yaml:"intensity"`

	// Composite parameters
	Composite struct {
		// Padding rows below the primary region
		Padding int `yaml:"padding"`

		// Regions lists the primary region first, then its satellites
		Regions []Region `yaml:"regions"`
	} `yaml:"composite"`

	// Output parameters
	Output struct {
		// Dir receives rendered rasters
		Dir string `yaml:"dir"`

		// Channels lists the channel rules to rasterize
		Channels []string `yaml:"channels"`

		// LogLevel is a zerolog level name
		LogLevel string `yaml:"logLevel"`

		// Console selects human-readable log output instead of JSON
		Console bool `yaml:"console"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Connectivity = 8
	cfg.Processing.OffsetSign = 1
	cfg.Processing.Verbose = false

	// Set default landmark labels
	cfg.Landmarks.Incision = 1
	cfg.Landmarks.Origin = 2
	cfg.Landmarks.Suppress = []uint32{}

	// Voxel space unless told otherwise
	cfg.Volume.VoxelSize = [3]float64{1, 1, 1}
	cfg.Intensity.VoxelSize = [3]float64{1, 1, 1}
	cfg.Intensity.RequireMatchingExtents = false

	cfg.Composite.Padding = 10

	// Set default output parameters
	cfg.Output.Dir = "flatmaps"
	cfg.Output.Channels = []string{"label", "border"}
	cfg.Output.LogLevel = "info"
	cfg.Output.Console = true

	return cfg
}

// Validate checks values that would otherwise fail deep inside the pipeline
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("numCores must be positive, got %d", c.Processing.NumCores)
	}
	if c.Processing.Connectivity != 4 && c.Processing.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", c.Processing.Connectivity)
	}
	if c.Processing.OffsetSign != 1 && c.Processing.OffsetSign != -1 {
		return fmt.Errorf("offsetSign must be 1 or -1, got %d", c.Processing.OffsetSign)
	}
	if c.Landmarks.Incision == 0 || c.Landmarks.Origin == 0 {
		return fmt.Errorf("landmark labels must be non-zero")
	}
	for _, s := range []struct {
		name string
		size [3]float64
	}{{"volume", c.Volume.VoxelSize}, {"intensity", c.Intensity.VoxelSize}} {
		for a, v := range s.size {
			if v == 0 {
				return fmt.Errorf("%s voxel size along axis %d is zero", s.name, a)
			}
		}
	}
	if n := len(c.Composite.Regions); n == 1 {
		return fmt.Errorf("composite needs a primary region and at least one satellite, got %d region", n)
	}
	for _, r := range c.Composite.Regions {
		if r.Name == "" || r.InputDir == "" {
			return fmt.Errorf("composite regions need a name and an inputDir")
		}
		for a, v := range r.VoxelSize {
			if v == 0 {
				return fmt.Errorf("region %s voxel size along axis %d is zero", r.Name, a)
			}
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
