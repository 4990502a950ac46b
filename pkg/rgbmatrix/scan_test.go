package rgbmatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
)

func TestCursorNext(t *testing.T) {
	tests := []struct {
		in      Cursor
		want    Cursor
		wrapped bool
	}{
		{in: Cursor{0, 0}, want: Cursor{0, 1}},
		{in: Cursor{0, 3}, want: Cursor{1, 0}},
		{in: Cursor{6, 2}, want: Cursor{6, 3}},
		{in: Cursor{7, 3}, want: Cursor{0, 0}, wrapped: true},
	}
	for _, tt := range tests {
		got, wrapped := tt.in.Next(4, 8)
		assert.Equal(t, tt.want, got, "%+v", tt.in)
		assert.Equal(t, tt.wrapped, wrapped, "%+v", tt.in)
	}

	got, wrapped := Cursor{}.Next(1, 1)
	assert.Equal(t, Cursor{}, got)
	assert.True(t, wrapped)
}

func TestCursorPacking(t *testing.T) {
	for _, c := range []Cursor{{0, 0}, {31, 5}, {16, 1}} {
		assert.Equal(t, c, unpackCursor(c.pack()))
	}
}

// TestTickOrder checks the line protocol of a single tick.
func TestTickOrder(t *testing.T) {
	cfg := testConfig(4, 2, 2)
	r := newRig(t, cfg)
	require.NoError(t, r.m.Convert(fill(4*8, 0xffff), 4))
	require.NoError(t, r.m.Begin())

	// skip to row 1 so the address lines have to change
	r.tm.Run(2)
	r.sim.Record(true)
	require.True(t, r.tm.Fire())
	ev := r.sim.Events()
	require.NotEmpty(t, ev)

	assert.Equal(t, gpio.Event{Pin: cfg.OE, High: true}, ev[0], "output must be blanked first")
	assert.Equal(t, gpio.Event{Pin: cfg.AddrPins[0], High: true}, ev[1])
	n := len(ev)
	assert.Equal(t, []gpio.Event{
		{Pin: cfg.Latch, High: true},
		{Pin: cfg.Latch, High: false},
		{Pin: cfg.OE, High: false},
	}, ev[n-3:])

	clocks := 0
	for _, e := range ev {
		if e.Pin == cfg.Clock && e.High {
			clocks++
		}
	}
	assert.Equal(t, cfg.BitWidth, clocks)
}

// TestUnchangedLinesNotRewritten checks that data and address lines are
// only written when their level changes.
func TestUnchangedLinesNotRewritten(t *testing.T) {
	cfg := testConfig(8, 2, 2)
	r := newRig(t, cfg)
	require.NoError(t, r.m.Convert(fill(8*8, 0xffff), 8))
	require.NoError(t, r.m.Begin())
	require.True(t, r.tm.Fire())

	r.sim.Record(true)
	require.True(t, r.tm.Fire()) // same row, next plane
	for _, e := range r.sim.Events() {
		assert.Contains(t, []gpio.Pin{cfg.OE, cfg.Clock, cfg.Latch}, e.Pin)
	}
}
