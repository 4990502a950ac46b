package rgbmatrix

import (
	"fmt"
	"time"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
)

const (
	// LinesPerChain is the number of data lines one chain uses:
	// R1 G1 B1 for the upper half and R2 G2 B2 for the lower half.
	LinesPerChain = 6
	// MaxChains keeps every data line inside one 32-bit port word.
	MaxChains = 5
	// MaxBitDepth is the deepest plane count RGB565 input can feed.
	MaxBitDepth = 6
	// MaxAddrLines is the A..E address bus of a HUB75 connector.
	MaxAddrLines = 5

	// DefaultBaseExposure is the output-enable time of bit plane 0.
	DefaultBaseExposure = 50 * time.Microsecond
)

// Config describes one panel chain set and the pins driving it.
type Config struct {
	// BitWidth is the number of columns shifted out per row on each chain.
	BitWidth int
	// BitDepth is the number of bit planes per color channel (1..6).
	BitDepth int
	// RGBPins lists the data lines, six per chain in R1 G1 B1 R2 G2 B2 order.
	RGBPins  []gpio.Pin
	AddrPins []gpio.Pin
	Clock    gpio.Pin
	Latch    gpio.Pin
	OE       gpio.Pin
	// Height optionally declares the panel height in pixels. When set it
	// must agree with the address line count.
	Height       int
	DoubleBuffer bool
	// BaseExposure is the plane-0 display time; plane p is shown for
	// BaseExposure << p. Zero selects DefaultBaseExposure.
	BaseExposure time.Duration
}

// Chains returns the number of parallel chains.
func (c *Config) Chains() int { return len(c.RGBPins) / LinesPerChain }

// Rows returns the number of address rows, each lighting two pixel rows.
func (c *Config) Rows() int { return 1 << len(c.AddrPins) }

// Width returns the display width in pixels.
func (c *Config) Width() int { return c.BitWidth * c.Chains() }

// DisplayHeight returns the display height in pixels.
func (c *Config) DisplayHeight() int { return 2 * c.Rows() }

func (c *Config) withDefaults() Config {
	out := *c
	out.RGBPins = append([]gpio.Pin(nil), c.RGBPins...)
	out.AddrPins = append([]gpio.Pin(nil), c.AddrPins...)
	if out.BaseExposure == 0 {
		out.BaseExposure = DefaultBaseExposure
	}
	return out
}

// validate checks the geometry only; pins are checked against a controller
// by validatePins.
func (c *Config) validate() error {
	switch {
	case c.BitWidth <= 0:
		return fmt.Errorf("%w: bit width must be positive, got %d", ErrInvalidArgument, c.BitWidth)
	case c.BitDepth < 1 || c.BitDepth > MaxBitDepth:
		return fmt.Errorf("%w: bit depth must be 1..%d, got %d", ErrInvalidArgument, MaxBitDepth, c.BitDepth)
	case len(c.RGBPins) == 0 || len(c.RGBPins)%LinesPerChain != 0:
		return fmt.Errorf("%w: rgb pin count must be a non-zero multiple of %d, got %d", ErrInvalidArgument, LinesPerChain, len(c.RGBPins))
	case c.Chains() > MaxChains:
		return fmt.Errorf("%w: at most %d chains supported, got %d", ErrInvalidArgument, MaxChains, c.Chains())
	case len(c.AddrPins) < 1 || len(c.AddrPins) > MaxAddrLines:
		return fmt.Errorf("%w: address line count must be 1..%d, got %d", ErrInvalidArgument, MaxAddrLines, len(c.AddrPins))
	case c.Height != 0 && c.Height != c.DisplayHeight():
		return fmt.Errorf("%w: height %d does not match %d address lines (want %d)", ErrInvalidArgument, c.Height, len(c.AddrPins), c.DisplayHeight())
	case c.BaseExposure < 0:
		return fmt.Errorf("%w: negative base exposure %v", ErrInvalidArgument, c.BaseExposure)
	}
	return nil
}

// BonnetPins returns the Adafruit RGB Matrix Bonnet wiring for a single
// chain with addrLines address lines.
func BonnetPins(addrLines int) (rgb, addr []gpio.Pin, clock, latch, oe gpio.Pin) {
	rgb = []gpio.Pin{5, 13, 6, 12, 16, 23}
	all := []gpio.Pin{22, 26, 27, 20, 24}
	if addrLines > len(all) {
		addrLines = len(all)
	}
	if addrLines < 0 {
		addrLines = 0
	}
	addr = append([]gpio.Pin(nil), all[:addrLines]...)
	return rgb, addr, 17, 21, 4
}
