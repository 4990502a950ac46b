//go:build !linux

package gpio

import "errors"

var errNoCdev = errors.New("gpio: character device backend requires linux")

// Cdev is unavailable on this platform.
type Cdev struct{}

// NewCdev always fails on non-Linux systems.
func NewCdev(chip, consumer string) (*Cdev, error) {
	return nil, errNoCdev
}

func (c *Cdev) Claim(p Pin) (Line, error) { return nil, errNoCdev }
func (c *Cdev) Release(p Pin) error       { return nil }
func (c *Cdev) Available(p Pin) error     { return errNoCdev }
func (c *Cdev) Port(p Pin) (int, bool)    { return 0, false }
func (c *Cdev) Close() error              { return nil }
