// Package timer provides periodic interrupt-style timers for scan loops.
//
// A Timer runs a single handler. The handler reschedules itself by calling
// Schedule with the delay until its next invocation. Disable masks the
// timer and does not return until a handler that is already running has
// finished, which gives callers a critical section against the handler.
package timer

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrNoTimer is returned by Allocate when every timer is in use.
var ErrNoTimer = errors.New("timer: no timer available")

// Handler is invoked from the timer's own context each time it fires.
type Handler func()

// Timer is a one-shot, self-rescheduling timer.
type Timer interface {
	ID() int
	// SetHandler installs h. A nil handler turns firings into no-ops.
	SetHandler(h Handler)
	// Schedule sets the delay before the next firing. It is safe to call
	// from inside the handler.
	Schedule(d time.Duration)
	Enable()
	// Disable masks the timer and waits for an in-flight handler. It must
	// not be called from inside the handler.
	Disable()
	Enabled() bool
}

// Allocator hands out timers from a scarce pool.
type Allocator interface {
	Allocate() (Timer, error)
	Free(t Timer)
}

// Pool is an Allocator over a fixed set of timers.
type Pool struct {
	mu     sync.Mutex
	timers []Timer
	used   []bool
}

var _ Allocator = (*Pool)(nil)

// NewPool builds a pool from timers.
func NewPool(timers ...Timer) *Pool {
	return &Pool{
		timers: timers,
		used:   make([]bool, len(timers)),
	}
}

// NewHostPool returns a pool of n host timers.
func NewHostPool(n int) *Pool {
	timers := make([]Timer, n)
	for i := range timers {
		timers[i] = NewHost(i)
	}
	return NewPool(timers...)
}

// NewSimPool returns a pool of n simulated timers.
func NewSimPool(n int) *Pool {
	timers := make([]Timer, n)
	for i := range timers {
		timers[i] = NewSim(i)
	}
	return NewPool(timers...)
}

// Allocate returns the first free timer.
func (p *Pool) Allocate() (Timer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, used := range p.used {
		if !used {
			p.used[i] = true
			return p.timers[i], nil
		}
	}
	return nil, ErrNoTimer
}

// Free masks t, drops its handler and returns it to the pool. Freeing a
// timer twice, or one that did not come from p, is a no-op.
func (p *Pool) Free(t Timer) {
	if t == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pt := range p.timers {
		if pt == t && p.used[i] {
			t.Disable()
			t.SetHandler(nil)
			p.used[i] = false
			return
		}
	}
}

// InUse reports how many timers are allocated.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, used := range p.used {
		if used {
			n++
		}
	}
	return n
}

// Timer returns the i-th timer of the pool, allocated or not.
func (p *Pool) Timer(i int) Timer {
	return p.timers[i]
}

// Close stops every timer that owns background resources.
func (p *Pool) Close() error {
	var errs []error
	for _, t := range p.timers {
		if c, ok := t.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
