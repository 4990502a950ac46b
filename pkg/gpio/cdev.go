//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// Cdev is a Controller backed by the Linux GPIO character device.
type Cdev struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[Pin]*gpiocdev.Line
}

var _ Controller = (*Cdev)(nil)

// NewCdev opens chip (e.g. "gpiochip0") and tags every line it requests with
// consumer.
func NewCdev(chip, consumer string) (*Cdev, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", chip, err)
	}
	return &Cdev{
		chip:  c,
		lines: make(map[Pin]*gpiocdev.Line),
	}, nil
}

func (c *Cdev) valid(p Pin) bool {
	return p >= 0 && int(p) < c.chip.Lines()
}

// Claim implements Controller.
func (c *Cdev) Claim(p Pin) (Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid(p) {
		return nil, pinError(p, ErrUnknownPin)
	}
	if _, ok := c.lines[p]; ok {
		return nil, pinError(p, ErrPinInUse)
	}
	l, err := c.chip.RequestLine(int(p), gpiocdev.AsOutput(0))
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil, pinError(p, ErrPinInUse)
		}
		return nil, fmt.Errorf("failed to request %s: %w", p, err)
	}
	c.lines[p] = l
	return &cdevLine{line: l, pin: p}, nil
}

// Release implements Controller. The line is switched to input before it
// is handed back to the kernel.
func (c *Cdev) Release(p Pin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lines[p]
	if !ok {
		return nil
	}
	delete(c.lines, p)
	rerr := l.Reconfigure(gpiocdev.AsInput)
	if err := l.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", p, err)
	}
	if rerr != nil {
		return fmt.Errorf("failed to reset %s: %w", p, rerr)
	}
	return nil
}

// Available implements Controller.
func (c *Cdev) Available(p Pin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid(p) {
		return pinError(p, ErrUnknownPin)
	}
	if _, ok := c.lines[p]; ok {
		return pinError(p, ErrPinInUse)
	}
	info, err := c.chip.LineInfo(int(p))
	if err != nil {
		return fmt.Errorf("failed to read info for %s: %w", p, err)
	}
	if info.Used {
		return pinError(p, ErrPinInUse)
	}
	return nil
}

// Port implements Controller. A character device chip is a single port.
func (c *Cdev) Port(p Pin) (int, bool) {
	return 0, c.valid(p)
}

// Close releases every claimed line and closes the chip.
func (c *Cdev) Close() error {
	c.mu.Lock()
	pins := make([]Pin, 0, len(c.lines))
	for p := range c.lines {
		pins = append(pins, p)
	}
	c.mu.Unlock()

	var errs []error
	for _, p := range pins {
		errs = append(errs, c.Release(p))
	}
	errs = append(errs, c.chip.Close())
	return errors.Join(errs...)
}

type cdevLine struct {
	line *gpiocdev.Line
	pin  Pin
}

func (l *cdevLine) Pin() Pin { return l.pin }

func (l *cdevLine) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	return l.line.SetValue(v)
}
