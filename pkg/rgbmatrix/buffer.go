package rgbmatrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/fkcurrie/rgbmatrix-golang/pkg/mmap"
)

// planeBuffer stores one full frame as bit planes. Each word holds the
// data-line bits for one column of one address row in one plane:
// bit chain*6 + half*3 + channel, channel order R G B.
type planeBuffer struct {
	region *mmap.Region
	words  []uint32
	rows   int
	cols   int
}

func planeBufferSize(c *Config) int {
	return c.BitDepth * c.Rows() * c.BitWidth * 4
}

func newPlaneBuffer(mem mmap.Allocator, c *Config) (*planeBuffer, error) {
	r, err := mem.Alloc(planeBufferSize(c))
	if err != nil {
		if errors.Is(err, mmap.ErrNoMemory) {
			return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
		}
		return nil, internalError("alloc", err)
	}
	r.Zero()
	return &planeBuffer{
		region: r,
		words:  r.Words(),
		rows:   c.Rows(),
		cols:   c.BitWidth,
	}, nil
}

// row returns the words of address row r in plane p.
func (b *planeBuffer) row(p, r int) []uint32 {
	off := (p*b.rows + r) * b.cols
	return b.words[off : off+b.cols]
}

// writable returns the buffer conversions should target. For a double
// buffer that is the inactive one, which must not have a commit queued.
func (m *Matrix) writable() (*planeBuffer, error) {
	if len(m.bufs) == 1 {
		return m.bufs[0], nil
	}
	if m.pending.Load() {
		return nil, ErrSwapPending
	}
	return m.bufs[m.active.Load()^1], nil
}

// Commit marks the inactive buffer as complete. The swap happens at the
// next frame boundary. A matrix that is not scanning and sits at the start
// of a frame swaps immediately. Commit is a no-op for single-buffered
// matrices.
func (m *Matrix) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case StateDeinitialized:
		return ErrDeinitialized
	case StateReady, StateRunning, StatePaused:
	default:
		return ErrState
	}
	if len(m.bufs) == 1 || m.pending.Load() {
		return nil
	}
	if m.State() == StateRunning || m.Cursor() != (Cursor{}) {
		m.pending.Store(true)
		return nil
	}
	m.active.Store(m.active.Load() ^ 1)
	m.notifySwap()
	return nil
}

// WaitSwap blocks until a committed buffer is being displayed. Any number
// of callers may wait at once.
func (m *Matrix) WaitSwap(ctx context.Context) error {
	for {
		ch := m.swapSignal()
		if !m.pending.Load() {
			break
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.State() == StateDeinitialized {
		return ErrDeinitialized
	}
	return nil
}

// Show commits the inactive buffer and waits for it to be displayed.
func (m *Matrix) Show(ctx context.Context) error {
	if err := m.Commit(); err != nil {
		return err
	}
	return m.WaitSwap(ctx)
}

// endOfFrame runs in the timer handler after the last plane of the last
// row has been shown.
func (m *Matrix) endOfFrame() {
	if m.pending.Load() {
		m.active.Store(m.active.Load() ^ 1)
		m.pending.Store(false)
		m.notifySwap()
	}
	m.frames.Add(1)
}

func (m *Matrix) swapSignal() <-chan struct{} {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()
	return m.swapped
}

// notifySwap wakes every WaitSwap caller.
func (m *Matrix) notifySwap() {
	m.swapMu.Lock()
	close(m.swapped)
	m.swapped = make(chan struct{})
	m.swapMu.Unlock()
}
