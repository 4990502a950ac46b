package gpio

import (
	"sort"
	"sync"
)

const simPortWidth = 32

// Event is a single level change recorded by a Sim.
type Event struct {
	Pin  Pin
	High bool
}

// Sim is an in-memory pin bank. It behaves like a gpiochip with a fixed
// number of lines, some of which may be hogged by another consumer.
type Sim struct {
	mu       sync.Mutex
	lines    int
	claimed  map[Pin]bool
	hogged   map[Pin]bool
	levels   map[Pin]bool
	failures map[Pin]error
	record   bool
	events   []Event
	onChange func(Pin, bool)
}

var _ Controller = (*Sim)(nil)

// NewSim returns a bank with lines 0..lines-1.
func NewSim(lines int) *Sim {
	return &Sim{
		lines:    lines,
		claimed:  make(map[Pin]bool),
		hogged:   make(map[Pin]bool),
		levels:   make(map[Pin]bool),
		failures: make(map[Pin]error),
	}
}

func (s *Sim) valid(p Pin) bool {
	return p >= 0 && int(p) < s.lines
}

// Claim implements Controller.
func (s *Sim) Claim(p Pin) (Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid(p) {
		return nil, pinError(p, ErrUnknownPin)
	}
	if s.claimed[p] || s.hogged[p] {
		return nil, pinError(p, ErrPinInUse)
	}
	s.claimed[p] = true
	s.levels[p] = false
	return &simLine{sim: s, pin: p}, nil
}

// Release implements Controller.
func (s *Sim) Release(p Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.claimed[p] {
		return nil
	}
	delete(s.claimed, p)
	s.levels[p] = false
	return nil
}

// Available implements Controller.
func (s *Sim) Available(p Pin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid(p) {
		return pinError(p, ErrUnknownPin)
	}
	if s.claimed[p] || s.hogged[p] {
		return pinError(p, ErrPinInUse)
	}
	return nil
}

// Port implements Controller. Lines are grouped into 32-bit ports.
func (s *Sim) Port(p Pin) (int, bool) {
	if !s.valid(p) {
		return 0, false
	}
	return int(p) / simPortWidth, true
}

// Hog marks p as held by another consumer.
func (s *Sim) Hog(p Pin) {
	s.mu.Lock()
	s.hogged[p] = true
	s.mu.Unlock()
}

// Unhog undoes Hog.
func (s *Sim) Unhog(p Pin) {
	s.mu.Lock()
	delete(s.hogged, p)
	s.mu.Unlock()
}

// FailWrites makes every Set on p return err. A nil err clears the fault.
func (s *Sim) FailWrites(p Pin, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, p)
		return
	}
	s.failures[p] = err
}

// Level returns the last level driven on p.
func (s *Sim) Level(p Pin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[p]
}

// Claimed reports whether p is currently claimed through this bank.
func (s *Sim) Claimed(p Pin) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed[p]
}

// Claims returns the claimed pins in ascending order.
func (s *Sim) Claims() []Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	pins := make([]Pin, 0, len(s.claimed))
	for p := range s.claimed {
		pins = append(pins, p)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}

// Record turns event recording on or off. Turning it on clears the trace.
func (s *Sim) Record(on bool) {
	s.mu.Lock()
	s.record = on
	s.events = nil
	s.mu.Unlock()
}

// Events returns a copy of the recorded trace.
func (s *Sim) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// OnChange installs a callback invoked after every successful Set. It runs
// on the writer's goroutine without the bank lock held.
func (s *Sim) OnChange(fn func(p Pin, high bool)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

type simLine struct {
	sim *Sim
	pin Pin
}

func (l *simLine) Pin() Pin { return l.pin }

func (l *simLine) Set(high bool) error {
	s := l.sim
	s.mu.Lock()
	if !s.claimed[l.pin] {
		s.mu.Unlock()
		return pinError(l.pin, ErrNotClaimed)
	}
	if err := s.failures[l.pin]; err != nil {
		s.mu.Unlock()
		return err
	}
	s.levels[l.pin] = high
	if s.record {
		s.events = append(s.events, Event{Pin: l.pin, High: high})
	}
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(l.pin, high)
	}
	return nil
}
