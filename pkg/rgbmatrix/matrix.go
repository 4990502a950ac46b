// Package rgbmatrix drives HUB75-style RGB LED matrix panels with binary
// coded modulation.
//
// A Matrix owns a timer, a set of GPIO lines and one or two bit-plane
// buffers. Every timer firing blanks the output, selects an address row,
// shifts one bit plane of that row into the panels, latches it and turns
// the output back on for a time proportional to the plane's weight. After
// the last plane of the last row the frame counter advances and, with
// double buffering, a committed buffer becomes the displayed one.
//
// Pixels are written in RGB565 with Convert or WriteRow.
package rgbmatrix

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/gpio"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/mmap"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/timer"
)

// State is the lifecycle state of a Matrix.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StatePaused
	StateFailed
	StateDeinitialized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	case StateDeinitialized:
		return "deinitialized"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Hardware bundles the resources a Matrix acquires.
type Hardware struct {
	Pins   gpio.Controller
	Timers timer.Allocator
	// Memory backs the bit-plane buffers. Nil selects an unlimited heap.
	Memory mmap.Allocator
	Logger *zerolog.Logger
}

// Matrix is a running or runnable panel driver.
type Matrix struct {
	mu  sync.Mutex // serializes main-context operations
	cfg Config
	hw  Hardware
	log zerolog.Logger

	state  atomic.Int32
	timer  timer.Timer
	pins   *pinSet
	scan   *scanner
	bufs   []*planeBuffer
	active atomic.Uint32

	pending atomic.Bool
	swapMu  sync.Mutex
	swapped chan struct{} // closed and replaced on every swap

	cursor atomic.Uint32
	frames atomic.Uint32
	faults atomic.Uint32
}

// New validates cfg, acquires a timer, the pins and buffer memory, and
// parks the panel lines in their idle levels. On any error everything
// acquired so far is released and no Matrix is returned.
func New(cfg Config, hw Hardware) (*Matrix, error) {
	m := &Matrix{
		cfg:     cfg.withDefaults(),
		hw:      hw,
		log:     zerolog.Nop(),
		swapped: make(chan struct{}),
	}
	if hw.Logger != nil {
		m.log = hw.Logger.With().Str("component", "rgbmatrix").Logger()
	}
	if m.hw.Memory == nil {
		m.hw.Memory = mmap.NewHeap(0)
	}

	if err := m.init(); err != nil {
		m.state.Store(int32(StateFailed))
		if rerr := m.release(); rerr != nil {
			m.log.Warn().Err(rerr).Msg("cleanup after failed init")
		}
		m.log.Debug().Err(err).Msg("init failed")
		return nil, err
	}
	m.state.Store(int32(StateReady))
	m.log.Info().
		Int("width", m.cfg.Width()).
		Int("height", m.cfg.DisplayHeight()).
		Int("depth", m.cfg.BitDepth).
		Bool("double_buffer", m.cfg.DoubleBuffer).
		Msg("matrix ready")
	return m, nil
}

func (m *Matrix) init() error {
	if m.hw.Pins == nil || m.hw.Timers == nil {
		return fmt.Errorf("%w: pin controller and timer allocator are required", ErrInvalidArgument)
	}
	if err := m.cfg.validate(); err != nil {
		return err
	}
	if err := validatePins(m.hw.Pins, &m.cfg); err != nil {
		return err
	}

	t, err := m.hw.Timers.Allocate()
	if err != nil {
		if errors.Is(err, timer.ErrNoTimer) {
			return fmt.Errorf("%w: %w", ErrNoTimer, err)
		}
		return internalError("timer", err)
	}
	m.timer = t
	t.Disable()

	ps, err := claimPins(m.hw.Pins, &m.cfg)
	if err != nil {
		return err
	}
	m.pins = ps
	m.scan = newScanner(ps, m.cfg.BaseExposure)

	n := 1
	if m.cfg.DoubleBuffer {
		n = 2
	}
	for i := 0; i < n; i++ {
		buf, err := newPlaneBuffer(m.hw.Memory, &m.cfg)
		if err != nil {
			return err
		}
		m.bufs = append(m.bufs, buf)
	}

	m.scan.idle()
	if n := m.scan.takeFaults(); n > 0 {
		return internalError("idle", fmt.Errorf("%d line writes failed", n))
	}
	return nil
}

// release masks and frees the timer, blanks and frees the pins and frees
// buffer memory. It is safe on a partially built Matrix.
func (m *Matrix) release() error {
	var errs []error
	if m.timer != nil {
		m.timer.Disable()
		m.timer.SetHandler(nil)
		m.hw.Timers.Free(m.timer)
		m.timer = nil
	}
	if m.pins != nil {
		if m.pins.oe != nil {
			if err := m.pins.oe.Set(true); err != nil {
				errs = append(errs, fmt.Errorf("blank: %w", err))
			}
		}
		errs = append(errs, m.pins.release())
		m.pins = nil
	}
	for _, b := range m.bufs {
		errs = append(errs, m.hw.Memory.Free(b.region))
	}
	m.bufs = nil
	return errors.Join(errs...)
}

// Begin starts scanning. Only a Ready matrix can begin.
func (m *Matrix) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch s := m.State(); s {
	case StateReady:
	case StateDeinitialized:
		return ErrDeinitialized
	default:
		return fmt.Errorf("%w: cannot begin while %s", ErrState, s)
	}

	t := m.timer
	t.Disable()
	m.cursor.Store(0)
	m.scan.reset()
	m.scan.idle()
	t.SetHandler(func() { m.tick(t) })
	t.Schedule(m.cfg.BaseExposure)
	m.state.Store(int32(StateRunning))
	t.Enable()
	m.log.Debug().Int("timer", t.ID()).Msg("scan started")
	return nil
}

// tick is the timer handler.
func (m *Matrix) tick(t timer.Timer) {
	c := unpackCursor(m.cursor.Load())
	buf := m.bufs[m.active.Load()]
	t.Schedule(m.scan.emit(buf, c))
	if n := m.scan.takeFaults(); n > 0 {
		m.faults.Add(n)
	}

	next, wrapped := c.Next(m.cfg.BitDepth, m.cfg.Rows())
	m.cursor.Store(next.pack())
	if wrapped {
		m.endOfFrame()
	}
}

// Stop masks the timer. The panel keeps showing whatever was latched last,
// and the cursor and buffers stay as they are. It does nothing unless the
// matrix is running.
func (m *Matrix) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() != StateRunning {
		return
	}
	m.timer.Disable()
	m.state.Store(int32(StatePaused))
	m.log.Debug().Msg("scan paused")
}

// Resume continues a paused scan from where it stopped.
func (m *Matrix) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() != StatePaused {
		return
	}
	m.state.Store(int32(StateRunning))
	m.timer.Enable()
	m.log.Debug().Msg("scan resumed")
}

// SetPaused pauses or resumes the scan.
func (m *Matrix) SetPaused(paused bool) error {
	if m.State() == StateDeinitialized {
		return ErrDeinitialized
	}
	if paused {
		m.Stop()
	} else {
		m.Resume()
	}
	return nil
}

// Paused reports whether the scan is paused.
func (m *Matrix) Paused() (bool, error) {
	s := m.State()
	if s == StateDeinitialized {
		return false, ErrDeinitialized
	}
	return s == StatePaused, nil
}

// Free stops the scan and releases the timer, pins and buffers. It can be
// called from any state and more than once.
func (m *Matrix) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() == StateDeinitialized {
		return nil
	}
	err := m.release()
	m.state.Store(int32(StateDeinitialized))
	if m.pending.Swap(false) {
		m.notifySwap()
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("matrix released with errors")
	} else {
		m.log.Info().Uint32("frames", m.frames.Load()).Msg("matrix released")
	}
	return err
}

// Close is Free.
func (m *Matrix) Close() error {
	return m.Free()
}

// State returns the lifecycle state.
func (m *Matrix) State() State {
	return State(m.state.Load())
}

// FrameCount returns the number of frames completed, modulo 2^32.
func (m *Matrix) FrameCount() uint32 {
	return m.frames.Load()
}

// Cursor returns the next row and plane to be shown.
func (m *Matrix) Cursor() Cursor {
	return unpackCursor(m.cursor.Load())
}

// Faults returns how many line writes have failed during scanning.
func (m *Matrix) Faults() uint32 {
	return m.faults.Load()
}

func (m *Matrix) Width() int  { return m.cfg.Width() }
func (m *Matrix) Height() int { return m.cfg.DisplayHeight() }

// Config returns the effective configuration.
func (m *Matrix) Config() Config {
	return m.cfg.withDefaults()
}
