package timer

import (
	"sync"
	"time"
)

// Sim is a Timer that only fires when told to. Elapsed accumulates the
// scheduled periods of every firing, giving tests a virtual clock.
type Sim struct {
	mu      sync.Mutex
	id      int
	handler Handler
	period  time.Duration
	enabled bool
	elapsed time.Duration
	fired   uint64
}

var _ Timer = (*Sim)(nil)

// NewSim returns a disabled simulated timer.
func NewSim(id int) *Sim {
	return &Sim{id: id}
}

func (s *Sim) ID() int { return s.id }

func (s *Sim) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Schedule is called from the handler while Fire holds the lock, so the
// period is kept outside of it.
func (s *Sim) Schedule(d time.Duration) {
	s.period = d
}

func (s *Sim) Enable() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
}

func (s *Sim) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

func (s *Sim) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Fire runs the handler once if the timer is enabled and reports whether
// it ran.
func (s *Sim) Fire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.handler == nil {
		return false
	}
	s.elapsed += s.period
	s.handler()
	s.fired++
	return true
}

// Run fires up to n times and returns how many firings happened.
func (s *Sim) Run(n int) int {
	done := 0
	for i := 0; i < n; i++ {
		if !s.Fire() {
			break
		}
		done++
	}
	return done
}

// Period returns the delay most recently scheduled.
func (s *Sim) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Elapsed returns the virtual time consumed by all firings so far.
func (s *Sim) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Fired returns how many times the handler ran.
func (s *Sim) Fired() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}
