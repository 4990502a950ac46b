// Package gpio tracks ownership of GPIO lines and hands out writable line
// handles to the code that claimed them.
//
// A Controller is the single authority over which pins are in use. Drivers
// check Available for every pin they need before claiming any of them, so a
// failed validation never leaves a partial claim behind.
package gpio

import (
	"errors"
	"fmt"
)

// Pin is a controller-relative GPIO line number.
type Pin int

// NoPin marks an unassigned pin slot.
const NoPin Pin = -1

var (
	// ErrPinInUse is returned when a pin is already claimed, either by this
	// process or by another consumer of the same controller.
	ErrPinInUse = errors.New("gpio: pin in use")
	// ErrUnknownPin is returned for pins the controller does not expose.
	ErrUnknownPin = errors.New("gpio: unknown pin")
	// ErrNotClaimed is returned when writing to a line that was released.
	ErrNotClaimed = errors.New("gpio: pin not claimed")
)

// Line is a claimed output line.
type Line interface {
	Pin() Pin
	// Set drives the line high or low.
	Set(high bool) error
}

// Controller is a pin ownership service.
type Controller interface {
	// Claim takes exclusive ownership of p and configures it as an output
	// driven low.
	Claim(p Pin) (Line, error)
	// Release returns p to a neutral input state. Releasing a pin that is
	// not claimed is a no-op.
	Release(p Pin) error
	// Available reports whether p exists and could be claimed right now.
	Available(p Pin) error
	// Port reports which parallel output port p belongs to. ok is false when
	// the controller has no notion of ports.
	Port(p Pin) (port int, ok bool)
}

func (p Pin) String() string {
	if p == NoPin {
		return "NoPin"
	}
	return fmt.Sprintf("GPIO%d", int(p))
}

func pinError(p Pin, err error) error {
	return fmt.Errorf("%w: %s", err, p)
}
