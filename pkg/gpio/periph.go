package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Periph is a Controller over the periph.io pin registry. Pins are looked up
// by their "GPIO<n>" name, so the host drivers must have been loaded with
// host.Init before any claim.
type Periph struct {
	mu      sync.Mutex
	claimed map[Pin]pgpio.PinIO
}

var _ Controller = (*Periph)(nil)

// NewPeriph returns an empty Periph controller.
func NewPeriph() *Periph {
	return &Periph{claimed: make(map[Pin]pgpio.PinIO)}
}

func lookup(p Pin) pgpio.PinIO {
	if p < 0 {
		return nil
	}
	return gpioreg.ByName(fmt.Sprintf("GPIO%d", int(p)))
}

// Claim implements Controller.
func (c *Periph) Claim(p Pin) (Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pin := lookup(p)
	if pin == nil {
		return nil, pinError(p, ErrUnknownPin)
	}
	if _, ok := c.claimed[p]; ok {
		return nil, pinError(p, ErrPinInUse)
	}
	if err := pin.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("failed to drive %s: %w", p, err)
	}
	c.claimed[p] = pin
	return &periphLine{pin: pin, num: p}, nil
}

// Release implements Controller.
func (c *Periph) Release(p Pin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pin, ok := c.claimed[p]
	if !ok {
		return nil
	}
	delete(c.claimed, p)
	if err := pin.In(pgpio.PullNoChange, pgpio.NoEdge); err != nil {
		return fmt.Errorf("failed to reset %s: %w", p, err)
	}
	return nil
}

// Available implements Controller. periph has no cross-process ownership,
// so only claims made through c are seen.
func (c *Periph) Available(p Pin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lookup(p) == nil {
		return pinError(p, ErrUnknownPin)
	}
	if _, ok := c.claimed[p]; ok {
		return pinError(p, ErrPinInUse)
	}
	return nil
}

// Port implements Controller using 32-line banks.
func (c *Periph) Port(p Pin) (int, bool) {
	if p < 0 {
		return 0, false
	}
	return int(p) / 32, true
}

type periphLine struct {
	pin pgpio.PinIO
	num Pin
}

func (l *periphLine) Pin() Pin { return l.num }

func (l *periphLine) Set(high bool) error {
	return l.pin.Out(pgpio.Level(high))
}
