package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Processing.Connectivity)
	assert.Equal(t, 1, cfg.Processing.OffsetSign)
	assert.Equal(t, [3]float64{1, 1, 1}, cfg.Volume.VoxelSize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Landmarks, cfg.Landmarks)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Landmarks.Incision = 7
	cfg.Landmarks.Suppress = []uint32{3, 4}
	cfg.Composite.Regions = []Region{
		{Name: "body", InputDir: "a", VoxelSize: [3]float64{1, 1, 1}},
		{Name: "bulb", InputDir: "b", VoxelSize: [3]float64{1, 1, 1}, RowOffset: 40, SliceShift: -3},
	}
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), loaded.Landmarks.Incision)
	assert.Equal(t, []uint32{3, 4}, loaded.Landmarks.Suppress)
	require.Len(t, loaded.Composite.Regions, 2)
	assert.Equal(t, 40, loaded.Composite.Regions[1].RowOffset)
	assert.Equal(t, -3, loaded.Composite.Regions[1].SliceShift)
	assert.NoError(t, loaded.Validate())
}

func TestLoadPartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "processing:\n  offsetSign: -1\nlandmarks:\n  incision: 5\n  origin: 6\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Processing.OffsetSign)
	assert.Equal(t, uint32(5), cfg.Landmarks.Incision)
	// untouched fields keep their defaults
	assert.Equal(t, 8, cfg.Processing.Connectivity)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing: [unclosed"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"connectivity", func(c *Config) { c.Processing.Connectivity = 6 }},
		{"sign", func(c *Config) { c.Processing.OffsetSign = 0 }},
		{"cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"landmark", func(c *Config) { c.Landmarks.Origin = 0 }},
		{"voxel size", func(c *Config) { c.Volume.VoxelSize[1] = 0 }},
		{"lonely region", func(c *Config) {
			c.Composite.Regions = []Region{{Name: "a", InputDir: "a", VoxelSize: [3]float64{1, 1, 1}}}
		}},
		{"unnamed region", func(c *Config) {
			c.Composite.Regions = []Region{
				{Name: "a", InputDir: "a", VoxelSize: [3]float64{1, 1, 1}},
				{InputDir: "b", VoxelSize: [3]float64{1, 1, 1}},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
