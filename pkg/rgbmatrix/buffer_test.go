package rgbmatrix

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubleConfig() Config {
	cfg := testConfig(16, 2, 3)
	cfg.DoubleBuffer = true
	return cfg
}

func TestCommitBeforeBegin(t *testing.T) {
	r := newRig(t, doubleConfig())
	a := pattern(16, 8)

	require.NoError(t, r.m.Convert(a, 16))
	require.NoError(t, r.m.Show(context.Background()))
	assert.Equal(t, uint32(1), r.m.active.Load())

	require.NoError(t, r.m.Begin())
	assert.Equal(t, expected(r.m.cfg, a), r.frame())
}

// TestSwapAtFrameBoundary commits mid-frame and checks that the rest of
// the frame still shows the old buffer and the next frame the new one.
func TestSwapAtFrameBoundary(t *testing.T) {
	r := newRig(t, doubleConfig())
	a, b := fill(16*8, 0xf800), pattern(16, 8)

	require.NoError(t, r.m.Convert(a, 16))
	require.NoError(t, r.m.Commit())
	require.NoError(t, r.m.Begin())
	assert.Equal(t, expected(r.m.cfg, a), r.frame())

	require.NoError(t, r.m.Convert(b, 16))
	r.tm.Run(3)
	require.NoError(t, r.m.Commit())
	assert.ErrorIs(t, r.m.Convert(a, 16), ErrSwapPending)
	assert.ErrorIs(t, r.m.WriteRow(0, a[:16]), ErrSwapPending)

	// finish the torn-into frame; it must still be a
	start := len(r.panel.shown)
	r.tm.Run(r.ticksPerFrame() - 3)
	for _, s := range r.panel.shown[start:] {
		for _, w := range s.cols {
			assert.Equal(t, uint32(0b001001), w, "frame mixed buffers")
		}
	}
	assert.Equal(t, uint32(2), r.m.FrameCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.m.WaitSwap(ctx))
	assert.Equal(t, expected(r.m.cfg, b), r.frame())

	// the old front buffer is writable again
	assert.NoError(t, r.m.Convert(a, 16))
}

func TestWaitSwapBlocksUntilBoundary(t *testing.T) {
	r := newRig(t, doubleConfig())
	require.NoError(t, r.m.Begin())
	require.NoError(t, r.m.Convert(pattern(16, 8), 16))
	require.NoError(t, r.m.Commit())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.m.WaitSwap(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- r.m.WaitSwap(context.Background()) }()
	r.tm.Run(r.ticksPerFrame())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitSwap did not return after the frame boundary")
	}
}

func TestFreeWakesWaiter(t *testing.T) {
	r := newRig(t, doubleConfig())
	require.NoError(t, r.m.Begin())
	require.NoError(t, r.m.Commit())

	done := make(chan error, 1)
	go func() { done <- r.m.WaitSwap(context.Background()) }()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.m.Free())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDeinitialized)
	case <-time.After(time.Second):
		t.Fatal("WaitSwap blocked past Free")
	}
}

func TestSingleBufferShow(t *testing.T) {
	r := newRig(t, testConfig(16, 2, 3))
	require.NoError(t, r.m.Begin())
	require.NoError(t, r.m.Convert(fill(16*8, 0x07e0), 16))
	require.NoError(t, r.m.Show(context.Background()))
	assert.Equal(t, expected(r.m.cfg, fill(16*8, 0x07e0)), r.frame())
}

// TestCommitAcrossPause pauses mid-row with a commit queued either before
// or after the pause and checks the rest of that frame still comes from the
// old buffer.
func TestCommitAcrossPause(t *testing.T) {
	for _, commitFirst := range []bool{false, true} {
		t.Run(fmt.Sprintf("commit first %v", commitFirst), func(t *testing.T) {
			r := newRig(t, doubleConfig())
			a, b := fill(16*8, 0xf800), fill(16*8, 0x001f)

			require.NoError(t, r.m.Convert(a, 16))
			require.NoError(t, r.m.Show(context.Background()))
			require.NoError(t, r.m.Begin())
			front := r.m.active.Load()
			r.tm.Run(2)
			require.Equal(t, Cursor{Row: 0, Plane: 2}, r.m.Cursor())

			require.NoError(t, r.m.Convert(b, 16))
			if commitFirst {
				require.NoError(t, r.m.Commit())
				r.m.Stop()
			} else {
				r.m.Stop()
				require.NoError(t, r.m.Commit())
			}
			assert.True(t, r.m.pending.Load())
			assert.Equal(t, front, r.m.active.Load())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			assert.ErrorIs(t, r.m.WaitSwap(ctx), context.DeadlineExceeded)

			r.m.Resume()
			start := len(r.panel.shown)
			r.tm.Run(r.ticksPerFrame() - 2)
			for _, s := range r.panel.shown[start:] {
				for _, w := range s.cols {
					assert.Equal(t, uint32(0b001001), w, "row %d mixed buffers", s.row)
				}
			}
			assert.Equal(t, uint32(1), r.m.FrameCount())
			assert.NoError(t, r.m.WaitSwap(context.Background()))
			assert.Equal(t, expected(r.m.cfg, b), r.frame())
		})
	}
}

func TestCommitPausedAtFrameStart(t *testing.T) {
	r := newRig(t, doubleConfig())
	require.NoError(t, r.m.Begin())
	r.tm.Run(r.ticksPerFrame())
	r.m.Stop()
	require.Equal(t, Cursor{}, r.m.Cursor())

	b := pattern(16, 8)
	require.NoError(t, r.m.Convert(b, 16))
	require.NoError(t, r.m.Show(context.Background()))
	assert.False(t, r.m.pending.Load())

	r.m.Resume()
	assert.Equal(t, expected(r.m.cfg, b), r.frame())
}

func TestWaitSwapWakesAllWaiters(t *testing.T) {
	r := newRig(t, doubleConfig())
	require.NoError(t, r.m.Begin())
	require.NoError(t, r.m.Convert(pattern(16, 8), 16))
	require.NoError(t, r.m.Commit())

	const waiters = 3
	done := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			done <- r.m.WaitSwap(ctx)
		}()
	}
	time.Sleep(5 * time.Millisecond)
	r.tm.Run(r.ticksPerFrame())

	for i := 0; i < waiters; i++ {
		assert.NoError(t, <-done)
	}
}
