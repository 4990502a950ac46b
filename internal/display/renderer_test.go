package display

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/rgbmatrix-golang/internal/pattern"
	"github.com/fkcurrie/rgbmatrix-golang/internal/types"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/timer"
)

// newMatrix builds a 16x8 double-buffered matrix on a host timer so Show
// completes on its own.
func newMatrix(t *testing.T) *rgbmatrix.Matrix {
	t.Helper()
	rgb, addr, clk, lat, oe := rgbmatrix.BonnetPins(2)
	pool := timer.NewHostPool(1)
	t.Cleanup(func() { _ = pool.Close() })

	m, err := rgbmatrix.New(rgbmatrix.Config{
		BitWidth: 16, BitDepth: 2,
		RGBPins: rgb, AddrPins: addr,
		Clock: clk, Latch: lat, OE: oe,
		DoubleBuffer: true,
		BaseExposure: 20 * time.Microsecond,
	}, rgbmatrix.Hardware{Pins: gpio.NewSim(32), Timers: pool})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Free() })
	require.NoError(t, m.Begin())
	return m
}

func TestRenderAdvancesFrames(t *testing.T) {
	m := newMatrix(t)
	r := NewRenderer(types.PatternConfig{RefreshMs: 1000}, zerolog.Nop())
	r.SetMatrix(m)

	var seen []int
	r.SetSource(pattern.SourceFunc(func(n int) []uint16 {
		seen = append(seen, n)
		return pattern.Fill(16, 8, pattern.Red)
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.render(ctx))
	}
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, uint64(3), r.Pushed())
}

func TestRenderSkipsWhenPaused(t *testing.T) {
	m := newMatrix(t)
	r := NewRenderer(types.PatternConfig{}, zerolog.Nop())
	r.SetMatrix(m)
	r.SetSource(pattern.Static(pattern.Fill(16, 8, pattern.Blue)))

	require.NoError(t, m.SetPaused(true))
	require.NoError(t, r.render(context.Background()))
	assert.Zero(t, r.Pushed())
}

func TestRenderFreedMatrix(t *testing.T) {
	m := newMatrix(t)
	r := NewRenderer(types.PatternConfig{}, zerolog.Nop())
	r.SetMatrix(m)
	r.SetSource(pattern.Static(pattern.Fill(16, 8, pattern.Blue)))

	require.NoError(t, m.Free())
	assert.ErrorIs(t, r.render(context.Background()), rgbmatrix.ErrDeinitialized)
	assert.Zero(t, r.Pushed())
}

func TestRenderWithoutMatrix(t *testing.T) {
	r := NewRenderer(types.PatternConfig{}, zerolog.Nop())
	assert.NoError(t, r.render(context.Background()))
	assert.Error(t, r.Push(make([]uint16, 4)))
}

func TestPush(t *testing.T) {
	m := newMatrix(t)
	r := NewRenderer(types.PatternConfig{RefreshMs: 1000}, zerolog.Nop())
	r.SetMatrix(m)

	assert.Error(t, r.Push(make([]uint16, 5)))
	require.NoError(t, r.Push(pattern.Fill(16, 8, pattern.Green)))
	require.NoError(t, r.render(context.Background()))
	assert.Equal(t, uint64(1), r.Pushed())
}

func TestStartStopsOnCancel(t *testing.T) {
	m := newMatrix(t)
	r := NewRenderer(types.PatternConfig{RefreshMs: 5}, zerolog.Nop())
	r.SetMatrix(m)
	r.SetSource(pattern.Cycle(16, 8))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool { return r.Pushed() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
