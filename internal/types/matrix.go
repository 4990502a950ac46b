package types

import (
	"context"
	"time"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
)

// Matrix is the display surface the daemon renders into.
type Matrix interface {
	Width() int
	Height() int
	// Convert writes a full RGB565 frame with the given row stride.
	Convert(src []uint16, width int) error
	// Show makes the last converted frame visible.
	Show(ctx context.Context) error
	SetPaused(paused bool) error
	Paused() (bool, error)
	FrameCount() uint32
	Faults() uint32
	State() rgbmatrix.State
}

var _ Matrix = (*rgbmatrix.Matrix)(nil)

// MatrixConfig represents the configuration for the LED matrix
type MatrixConfig struct {
	Width        int   `yaml:"width" json:"width"`
	BitDepth     int   `yaml:"bit_depth" json:"bit_depth"`
	RGBPins      []int `yaml:"rgb_pins" json:"rgb_pins"`
	AddrPins     []int `yaml:"addr_pins" json:"addr_pins"`
	Clock        int   `yaml:"clock" json:"clock"`
	Latch        int   `yaml:"latch" json:"latch"`
	OE           int   `yaml:"oe" json:"oe"`
	Height       int   `yaml:"height,omitempty" json:"height,omitempty"`
	DoubleBuffer bool  `yaml:"double_buffer" json:"double_buffer"`
	// BaseExposureUs is the plane-0 display time in microseconds.
	BaseExposureUs int `yaml:"base_exposure_us" json:"base_exposure_us"`
}

// ToCore maps the file representation onto the driver configuration.
func (c MatrixConfig) ToCore() rgbmatrix.Config {
	return rgbmatrix.Config{
		BitWidth:     c.Width,
		BitDepth:     c.BitDepth,
		RGBPins:      pins(c.RGBPins),
		AddrPins:     pins(c.AddrPins),
		Clock:        gpio.Pin(c.Clock),
		Latch:        gpio.Pin(c.Latch),
		OE:           gpio.Pin(c.OE),
		Height:       c.Height,
		DoubleBuffer: c.DoubleBuffer,
		BaseExposure: time.Duration(c.BaseExposureUs) * time.Microsecond,
	}
}

func pins(in []int) []gpio.Pin {
	out := make([]gpio.Pin, len(in))
	for i, p := range in {
		out[i] = gpio.Pin(p)
	}
	return out
}

// ServerConfig represents the configuration for the status server
type ServerConfig struct {
	Listen string `yaml:"listen" json:"listen"`
	// PushIntervalMs is how often telemetry is pushed to websocket clients.
	PushIntervalMs int `yaml:"push_interval_ms" json:"push_interval_ms"`
}

// PatternConfig selects what the renderer shows.
type PatternConfig struct {
	// Name is one of "test", "checker", "bars", "svg" or "image".
	Name string `yaml:"name" json:"name"`
	// Path is the SVG or image file for the "svg" and "image" patterns.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// RefreshMs is the frame push interval.
	RefreshMs int `yaml:"refresh_ms" json:"refresh_ms"`
}

// Status is the telemetry snapshot published by the server.
type Status struct {
	State      string    `json:"state"`
	Paused     bool      `json:"paused"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Frames     uint32    `json:"frames"`
	FrameRate  float64   `json:"frame_rate"`
	Faults     uint32    `json:"faults"`
	Pushed     uint64    `json:"pushed"`
	LastUpdate time.Time `json:"last_update"`
}
