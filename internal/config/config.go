package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/rgbmatrix-golang/internal/types"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
)

// Config represents the application configuration
type Config struct {
	// Backend is "sim", "cdev" or "periph".
	Backend  string              `yaml:"backend" json:"backend"`
	Chip     string              `yaml:"chip" json:"chip"`
	LogLevel string              `yaml:"log_level" json:"log_level"`
	LockMem  bool                `yaml:"lock_memory" json:"lock_memory"`
	Matrix   types.MatrixConfig  `yaml:"matrix" json:"matrix"`
	Server   types.ServerConfig  `yaml:"server" json:"server"`
	Pattern  types.PatternConfig `yaml:"pattern" json:"pattern"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads the configuration from a file. YAML is used for .yaml
// and .yml files, JSON otherwise. Fields missing from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(b, config)
	} else {
		err = json.Unmarshal(b, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return config, nil
}

// Save writes c to path in the format implied by its extension.
func Save(path string, c *Config) error {
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(c)
	} else {
		b, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// DefaultConfig returns the default configuration: a 64x32 panel on an
// Adafruit RGB Matrix Bonnet.
func DefaultConfig() *Config {
	rgb, addr, clk, lat, oe := rgbmatrix.BonnetPins(4)
	return &Config{
		Backend:  "sim",
		Chip:     "gpiochip0",
		LogLevel: "info",
		Matrix: types.MatrixConfig{
			Width:          64,
			BitDepth:       4,
			RGBPins:        ints(rgb),
			AddrPins:       ints(addr),
			Clock:          int(clk),
			Latch:          int(lat),
			OE:             int(oe),
			DoubleBuffer:   true,
			BaseExposureUs: int(rgbmatrix.DefaultBaseExposure.Microseconds()),
		},
		Server: types.ServerConfig{
			Listen:         ":8080",
			PushIntervalMs: 500,
		},
		Pattern: types.PatternConfig{
			Name:      "test",
			RefreshMs: 100,
		},
	}
}

func ints[T ~int](in []T) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
