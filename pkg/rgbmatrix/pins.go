package rgbmatrix

import (
	"errors"
	"fmt"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
)

// role names a pin's job, used in error messages.
type role struct {
	name string
	pin  gpio.Pin
}

func (c *Config) roles() []role {
	roles := make([]role, 0, 3+len(c.AddrPins)+len(c.RGBPins))
	roles = append(roles,
		role{"clock", c.Clock},
		role{"latch", c.Latch},
		role{"oe", c.OE},
	)
	for i, p := range c.AddrPins {
		roles = append(roles, role{fmt.Sprintf("addr[%d]", i), p})
	}
	for i, p := range c.RGBPins {
		roles = append(roles, role{fmt.Sprintf("rgb[%d]", i), p})
	}
	return roles
}

// validatePins checks every pin before any is claimed: assigned, unique,
// free in ctrl, and with all data lines on the clock's port.
func validatePins(ctrl gpio.Controller, c *Config) error {
	seen := make(map[gpio.Pin]string)
	for _, r := range c.roles() {
		if r.pin == gpio.NoPin || r.pin < 0 {
			return fmt.Errorf("%w: %s is not assigned", ErrInvalidPins, r.name)
		}
		if other, ok := seen[r.pin]; ok {
			return fmt.Errorf("%w: %s shared by %s and %s", ErrInvalidPins, r.pin, other, r.name)
		}
		seen[r.pin] = r.name
		if err := ctrl.Available(r.pin); err != nil {
			return pinErr(r.name, err)
		}
	}

	clockPort, ok := ctrl.Port(c.Clock)
	if !ok {
		return nil
	}
	for i, p := range c.RGBPins {
		port, ok := ctrl.Port(p)
		if ok && port != clockPort {
			return fmt.Errorf("%w: rgb[%d] %s is on port %d, clock is on port %d", ErrInvalidPins, i, p, port, clockPort)
		}
	}
	return nil
}

func pinErr(name string, err error) error {
	if errors.Is(err, gpio.ErrPinInUse) || errors.Is(err, gpio.ErrUnknownPin) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPins, name, err)
	}
	return internalError("claim "+name, err)
}

// pinSet holds the claimed lines of one matrix.
type pinSet struct {
	ctrl    gpio.Controller
	claimed []gpio.Pin
	data    []gpio.Line
	addr    []gpio.Line
	clock   gpio.Line
	latch   gpio.Line
	oe      gpio.Line
}

// claimPins claims every pin of c. On failure the pins claimed so far are
// released again.
func claimPins(ctrl gpio.Controller, c *Config) (*pinSet, error) {
	ps := &pinSet{ctrl: ctrl}
	claim := func(name string, p gpio.Pin) (gpio.Line, error) {
		l, err := ctrl.Claim(p)
		if err != nil {
			return nil, pinErr(name, err)
		}
		ps.claimed = append(ps.claimed, p)
		return l, nil
	}

	var err error
	fail := func(e error) (*pinSet, error) {
		return nil, errors.Join(e, ps.release())
	}
	if ps.clock, err = claim("clock", c.Clock); err != nil {
		return fail(err)
	}
	if ps.latch, err = claim("latch", c.Latch); err != nil {
		return fail(err)
	}
	if ps.oe, err = claim("oe", c.OE); err != nil {
		return fail(err)
	}
	for i, p := range c.AddrPins {
		l, err := claim(fmt.Sprintf("addr[%d]", i), p)
		if err != nil {
			return fail(err)
		}
		ps.addr = append(ps.addr, l)
	}
	for i, p := range c.RGBPins {
		l, err := claim(fmt.Sprintf("rgb[%d]", i), p)
		if err != nil {
			return fail(err)
		}
		ps.data = append(ps.data, l)
	}
	return ps, nil
}

// release resets every claimed pin in reverse claim order.
func (ps *pinSet) release() error {
	var errs []error
	for i := len(ps.claimed) - 1; i >= 0; i-- {
		if err := ps.ctrl.Release(ps.claimed[i]); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", ps.claimed[i], err))
		}
	}
	ps.claimed = nil
	ps.data, ps.addr = nil, nil
	ps.clock, ps.latch, ps.oe = nil, nil, nil
	return errors.Join(errs...)
}
