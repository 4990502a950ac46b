// Package pattern produces RGB565 frames for the matrix: built-in test
// patterns plus frames rendered from SVG and raster images.
package pattern

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/fkcurrie/rgbmatrix-golang/internal/types"
)

// Common RGB565 colors.
const (
	Black  uint16 = 0x0000
	Red    uint16 = 0xf800
	Green  uint16 = 0x07e0
	Blue   uint16 = 0x001f
	Yellow uint16 = 0xffe0
	White  uint16 = 0xffff
)

// Source yields the n-th frame of a possibly animated pattern. Frames are
// row-major with a stride equal to the width the source was built for.
type Source interface {
	Frame(n int) []uint16
}

// SourceFunc adapts a function to Source.
type SourceFunc func(n int) []uint16

func (f SourceFunc) Frame(n int) []uint16 { return f(n) }

// Static always returns the same frame.
func Static(frame []uint16) Source {
	return SourceFunc(func(int) []uint16 { return frame })
}

// RGB565 packs 8-bit channels.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// FromColor packs any color, ignoring alpha.
func FromColor(c color.Color) uint16 {
	r, g, b, _ := c.RGBA()
	return RGB565(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Fill returns a w*h frame of one color.
func Fill(w, h int, c uint16) []uint16 {
	px := make([]uint16, w*h)
	for i := range px {
		px[i] = c
	}
	return px
}

// TestFrame is the power-on pattern: a blue/red checkerboard with
// blue, green, red and gray ramps across the top four rows. The ramps are laid out
// for a 64-pixel-wide panel and are clipped on narrower ones.
func TestFrame(w, h int) []uint16 {
	px := make([]uint16, w*h)
	for i := range px {
		if (i%2)^((i/w)%2) != 0 {
			px[i] = 0xf000
		} else {
			px[i] = 0x000f
		}
	}
	ramp := func(row int, fn func(i int) uint16) {
		if row >= h {
			return
		}
		for i := 0; i < 32 && i < w; i++ {
			px[row*w+i] = fn(i)
		}
	}
	ramp(0, func(i int) uint16 { return uint16(i >> 1) })
	ramp(1, func(i int) uint16 { return uint16(i << 5) })
	ramp(2, func(i int) uint16 { return uint16(i>>1) << 11 })
	ramp(3, func(i int) uint16 { return uint16(i>>1)<<11 | uint16(i<<5) | uint16(i>>1) })
	return px
}

// Checkerboard draws cell-sized squares of on and black, shifted by one
// cell every 8 frames.
func Checkerboard(w, h, cell int, on uint16) Source {
	if cell < 1 {
		cell = 1
	}
	return SourceFunc(func(n int) []uint16 {
		px := make([]uint16, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if (y/cell+x/cell+n/8)%2 == 0 {
					px[y*w+x] = on
				}
			}
		}
		return px
	})
}

// Bars draws eight vertical color bars.
func Bars(w, h int) []uint16 {
	colors := []uint16{White, Yellow, 0x07ff, Green, 0xf81f, Red, Blue, Black}
	px := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px[y*w+x] = colors[x*len(colors)/w]
		}
	}
	return px
}

// Cycle shows solid red, green and blue followed by a checkerboard, one
// step per frame.
func Cycle(w, h int) Source {
	checker := Checkerboard(w, h, 4, Yellow)
	return SourceFunc(func(n int) []uint16 {
		switch n % 4 {
		case 0:
			return Fill(w, h, Red)
		case 1:
			return Fill(w, h, Green)
		case 2:
			return Fill(w, h, Blue)
		}
		return checker.Frame(n)
	})
}

// New builds the source named by cfg for a w x h display.
func New(cfg types.PatternConfig, w, h int) (Source, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "test":
		return Static(TestFrame(w, h)), nil
	case "checker":
		return Checkerboard(w, h, 4, Yellow), nil
	case "bars":
		return Static(Bars(w, h)), nil
	case "cycle":
		return Cycle(w, h), nil
	case "svg", "image":
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var frame []uint16
		if strings.EqualFold(cfg.Name, "svg") {
			frame, err = FromSVG(f, w, h)
		} else {
			frame, err = DecodeImage(f, w, h)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", cfg.Path, err)
		}
		return Static(frame), nil
	}
	return nil, fmt.Errorf("unknown pattern %q", cfg.Name)
}
