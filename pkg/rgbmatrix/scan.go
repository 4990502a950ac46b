package rgbmatrix

import (
	"time"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
)

// Cursor is the scan position: the address row being shown and the bit
// plane of that row.
type Cursor struct {
	Row   int
	Plane int
}

// Next advances plane first, then row. wrapped reports that the cursor
// went past the last plane of the last row, i.e. a frame completed.
func (c Cursor) Next(depth, rows int) (next Cursor, wrapped bool) {
	c.Plane++
	if c.Plane < depth {
		return c, false
	}
	c.Plane = 0
	c.Row++
	if c.Row < rows {
		return c, false
	}
	return Cursor{}, true
}

func (c Cursor) pack() uint32 {
	return uint32(c.Row)<<8 | uint32(c.Plane)
}

func unpackCursor(v uint32) Cursor {
	return Cursor{Row: int(v >> 8), Plane: int(v & 0xff)}
}

// scanner drives the panel lines. Its fields are only touched from the
// timer handler, or from the main context while the timer is masked.
type scanner struct {
	pins     *pinSet
	base     time.Duration
	lastAddr int
	lastData uint32
	dataOK   bool
	faults   uint32
}

func newScanner(ps *pinSet, base time.Duration) *scanner {
	return &scanner{pins: ps, base: base, lastAddr: -1}
}

func (s *scanner) set(l gpio.Line, high bool) {
	if err := l.Set(high); err != nil {
		s.faults++
	}
}

// reset forgets the cached line state so the next emit rewrites every line.
func (s *scanner) reset() {
	s.lastAddr = -1
	s.dataOK = false
}

// idle blanks the display and parks latch and clock low.
func (s *scanner) idle() {
	s.set(s.pins.oe, true)
	s.set(s.pins.latch, false)
	s.set(s.pins.clock, false)
}

// emit shows plane c.Plane of row c.Row from buf and returns how long it
// should stay on.
func (s *scanner) emit(buf *planeBuffer, c Cursor) time.Duration {
	ps := s.pins
	s.set(ps.oe, true)

	if c.Row != s.lastAddr {
		for i, l := range ps.addr {
			bit := c.Row>>i&1 == 1
			if s.lastAddr < 0 || (s.lastAddr>>i&1 == 1) != bit {
				s.set(l, bit)
			}
		}
		s.lastAddr = c.Row
	}

	// the first column shifted in ends up farthest from the connector
	words := buf.row(c.Plane, c.Row)
	for x := len(words) - 1; x >= 0; x-- {
		w := words[x]
		diff := w ^ s.lastData
		if !s.dataOK {
			diff = ^uint32(0)
		}
		for i, l := range ps.data {
			if diff>>i&1 != 0 {
				s.set(l, w>>i&1 == 1)
			}
		}
		s.lastData, s.dataOK = w, true
		s.set(ps.clock, true)
		s.set(ps.clock, false)
	}

	s.set(ps.latch, true)
	s.set(ps.latch, false)
	s.set(ps.oe, false)
	return s.base << c.Plane
}

// takeFaults returns and clears the line error count.
func (s *scanner) takeFaults() uint32 {
	n := s.faults
	s.faults = 0
	return n
}
