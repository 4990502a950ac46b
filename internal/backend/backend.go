// Package backend assembles the pin, timer and memory resources a matrix
// runs on, selected by name.
package backend

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/host/v3"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/mmap"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/timer"
)

// Options selects and tunes a backend.
type Options struct {
	// Name is "sim", "cdev" or "periph".
	Name string
	// Chip is the gpiochip device for the cdev backend.
	Chip     string
	Consumer string
	// Timers is the size of the timer pool.
	Timers  int
	LockMem bool
	// SimLines is the bank size of the sim backend.
	SimLines int
}

// Backend is an opened set of matrix resources.
type Backend struct {
	Name    string
	Pins    gpio.Controller
	Timers  *timer.Pool
	Memory  mmap.Allocator
	closers []func() error
}

// Open builds the backend named in opts.
func Open(opts Options, log zerolog.Logger) (*Backend, error) {
	if opts.Timers <= 0 {
		opts.Timers = 1
	}
	b := &Backend{
		Name:   opts.Name,
		Timers: timer.NewHostPool(opts.Timers),
		Memory: mmap.NewAnon(opts.LockMem),
	}
	b.closers = append(b.closers, b.Timers.Close)

	switch opts.Name {
	case "", "sim":
		lines := opts.SimLines
		if lines <= 0 {
			lines = 32
		}
		b.Name = "sim"
		b.Pins = gpio.NewSim(lines)
	case "cdev":
		consumer := opts.Consumer
		if consumer == "" {
			consumer = "rgbmatrix"
		}
		c, err := gpio.NewCdev(opts.Chip, consumer)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Pins = c
		b.closers = append(b.closers, c.Close)
	case "periph":
		state, err := host.Init()
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}
		for _, f := range state.Failed {
			log.Debug().Str("driver", f.D.String()).Err(f.Err).Msg("periph driver failed")
		}
		b.Pins = gpio.NewPeriph()
	default:
		b.Close()
		return nil, fmt.Errorf("unknown backend %q", opts.Name)
	}
	log.Debug().Str("backend", b.Name).Int("timers", opts.Timers).Msg("backend opened")
	return b, nil
}

// Hardware returns the resources in the form rgbmatrix.New takes.
func (b *Backend) Hardware(log *zerolog.Logger) rgbmatrix.Hardware {
	return rgbmatrix.Hardware{
		Pins:   b.Pins,
		Timers: b.Timers,
		Memory: b.Memory,
		Logger: log,
	}
}

// Close releases the backend. Matrices built on it must be freed first.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
