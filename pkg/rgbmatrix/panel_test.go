package rgbmatrix

import (
	"fmt"
	"math/bits"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/mmap"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/timer"
)

// shownRow is one latched row as it was when OE went low.
type shownRow struct {
	row  int
	cols []uint32
}

// panel emulates a chain of HUB75 shift registers from pin changes.
type panel struct {
	cfg     Config
	level   map[gpio.Pin]bool
	data    map[gpio.Pin]int
	addr    map[gpio.Pin]int
	shift   []uint32
	clocks  int
	latched []uint32
	row     int
	shown   []shownRow
	errs    []string
}

func newPanel(cfg Config) *panel {
	p := &panel{
		cfg:   cfg,
		level: make(map[gpio.Pin]bool),
		data:  make(map[gpio.Pin]int),
		addr:  make(map[gpio.Pin]int),
		shift: make([]uint32, cfg.BitWidth),
	}
	for i, pin := range cfg.RGBPins {
		p.data[pin] = i
	}
	for i, pin := range cfg.AddrPins {
		p.addr[pin] = i
	}
	return p
}

func (p *panel) lit() bool {
	return !p.level[p.cfg.OE]
}

func (p *panel) onChange(pin gpio.Pin, high bool) {
	prev := p.level[pin]
	p.level[pin] = high
	rising := high && !prev

	switch {
	case pin == p.cfg.Clock && rising:
		if p.lit() {
			p.errs = append(p.errs, "clock while lit")
		}
		var w uint32
		for dp, i := range p.data {
			if p.level[dp] {
				w |= 1 << i
			}
		}
		if col := p.cfg.BitWidth - 1 - p.clocks; col >= 0 {
			p.shift[col] = w
		}
		p.clocks++
	case pin == p.cfg.Latch && rising:
		if p.lit() {
			p.errs = append(p.errs, "latch while lit")
		}
		if p.clocks != p.cfg.BitWidth {
			p.errs = append(p.errs, fmt.Sprintf("latched after %d clocks", p.clocks))
		}
		p.latched = append([]uint32(nil), p.shift...)
		p.row = 0
		for ap, i := range p.addr {
			if p.level[ap] {
				p.row |= 1 << i
			}
		}
		p.clocks = 0
	case pin == p.cfg.OE && !high && prev:
		p.shown = append(p.shown, shownRow{row: p.row, cols: p.latched})
	default:
		if _, ok := p.addr[pin]; ok && p.lit() && high != prev {
			p.errs = append(p.errs, "address changed while lit")
		}
	}
}

// rig wires a matrix to simulated pins, timer and memory.
type rig struct {
	t     *testing.T
	sim   *gpio.Sim
	tm    *timer.Sim
	pool  *timer.Pool
	mem   *mmap.Heap
	panel *panel
	m     *Matrix
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	r := &rig{
		t:   t,
		sim: gpio.NewSim(32),
		tm:  timer.NewSim(0),
		mem: mmap.NewHeap(0),
	}
	r.pool = timer.NewPool(r.tm)
	r.panel = newPanel(cfg.withDefaults())
	r.sim.OnChange(r.panel.onChange)

	m, err := New(cfg, r.hardware())
	require.NoError(t, err)
	r.m = m
	t.Cleanup(func() { _ = m.Free() })
	return r
}

func (r *rig) hardware() Hardware {
	return Hardware{Pins: r.sim, Timers: r.pool, Memory: r.mem}
}

// ticksPerFrame is rows times planes.
func (r *rig) ticksPerFrame() int {
	return r.m.cfg.Rows() * r.m.cfg.BitDepth
}

// frame fires one full frame and decodes what the panel displayed into
// expanded channel values per pixel, indexed [y][x][channel].
func (r *rig) frame() [][][3]uint16 {
	r.t.Helper()
	cfg := r.m.cfg
	out := make([][][3]uint16, cfg.DisplayHeight())
	for y := range out {
		out[y] = make([][3]uint16, cfg.Width())
	}

	for i := 0; i < r.ticksPerFrame(); i++ {
		start := len(r.panel.shown)
		require.True(r.t, r.tm.Fire(), "timer did not fire")
		require.Len(r.t, r.panel.shown, start+1)
		s := r.panel.shown[start]

		period := r.tm.Period()
		require.Zero(r.t, period%cfg.BaseExposure)
		ratio := uint(period / cfg.BaseExposure)
		require.Equal(r.t, 1, bits.OnesCount(ratio), "period %v is not a power of two of the base", period)
		plane := bits.TrailingZeros(ratio)

		for col, w := range s.cols {
			for chain := 0; chain < cfg.Chains(); chain++ {
				for half := 0; half < 2; half++ {
					y := half*cfg.Rows() + s.row
					x := chain*cfg.BitWidth + col
					for ch := 0; ch < 3; ch++ {
						if w>>(chain*LinesPerChain+half*3+ch)&1 == 1 {
							out[y][x][ch] |= 1 << plane
						}
					}
				}
			}
		}
	}
	require.Empty(r.t, r.panel.errs)
	return out
}

// expected decodes src the way the panel should show it.
func expected(cfg Config, src []uint16) [][][3]uint16 {
	out := make([][][3]uint16, cfg.DisplayHeight())
	for y := range out {
		out[y] = make([][3]uint16, cfg.Width())
		for x := range out[y] {
			r, g, b := channels(src[y*cfg.Width()+x], cfg.BitDepth)
			out[y][x] = [3]uint16{r, g, b}
		}
	}
	return out
}

// testConfig builds a single-chain config on Bonnet pins.
func testConfig(width, addrLines, depth int) Config {
	rgb, addr, clk, lat, oe := BonnetPins(addrLines)
	return Config{
		BitWidth:     width,
		BitDepth:     depth,
		RGBPins:      rgb,
		AddrPins:     addr,
		Clock:        clk,
		Latch:        lat,
		OE:           oe,
		BaseExposure: 10 * time.Microsecond,
	}
}

// twoChainConfig puts two chains on lines 0..11 and control on 12..16.
func twoChainConfig(width, depth int) Config {
	rgb := make([]gpio.Pin, 12)
	for i := range rgb {
		rgb[i] = gpio.Pin(i)
	}
	return Config{
		BitWidth:     width,
		BitDepth:     depth,
		RGBPins:      rgb,
		AddrPins:     []gpio.Pin{12, 13, 14},
		Clock:        15,
		Latch:        16,
		OE:           17,
		BaseExposure: 10 * time.Microsecond,
	}
}

func fill(n int, v uint16) []uint16 {
	px := make([]uint16, n)
	for i := range px {
		px[i] = v
	}
	return px
}

// pattern gives each pixel a distinct-ish color.
func pattern(w, h int) []uint16 {
	px := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint16((x * 31) / max(1, w-1))
			g := uint16((y * 63) / max(1, h-1))
			b := uint16((x + y) & 0x1f)
			px[y*w+x] = r<<11 | g<<5 | b
		}
	}
	return px
}
