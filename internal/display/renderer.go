package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fkcurrie/rgbmatrix-golang/internal/pattern"
	"github.com/fkcurrie/rgbmatrix-golang/internal/types"
	"github.com/fkcurrie/rgbmatrix-golang/pkg/rgbmatrix"
)

// Renderer pushes frames from a pattern source into the matrix
type Renderer struct {
	interval time.Duration
	log      zerolog.Logger

	mu     sync.RWMutex
	matrix types.Matrix
	source pattern.Source
	gen    int
	frame  int

	pushed atomic.Uint64
}

// NewRenderer creates a new renderer instance
func NewRenderer(cfg types.PatternConfig, log zerolog.Logger) *Renderer {
	interval := time.Duration(cfg.RefreshMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Renderer{
		interval: interval,
		log:      log.With().Str("component", "renderer").Logger(),
	}
}

// SetMatrix sets the matrix to render to
func (r *Renderer) SetMatrix(matrix types.Matrix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matrix = matrix
}

// SetSource replaces the pattern and restarts its animation.
func (r *Renderer) SetSource(src pattern.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = src
	r.gen++
	r.frame = 0
}

// Push shows a single frame until the next SetSource or Push. The frame
// must match the matrix dimensions.
func (r *Renderer) Push(frame []uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matrix == nil {
		return errors.New("renderer: no matrix")
	}
	if want := r.matrix.Width() * r.matrix.Height(); len(frame) != want {
		return fmt.Errorf("renderer: frame has %d pixels, want %d", len(frame), want)
	}
	r.source = pattern.Static(frame)
	r.gen++
	r.frame = 0
	return nil
}

// Pushed returns how many frames reached the display.
func (r *Renderer) Pushed() uint64 {
	return r.pushed.Load()
}

// Start renders on every tick until ctx is done
func (r *Renderer) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.render(ctx); err != nil {
				r.log.Warn().Err(err).Msg("failed to render")
			}
		}
	}
}

// render converts the next frame and waits for it to be shown
func (r *Renderer) render(ctx context.Context) error {
	r.mu.Lock()
	m, src := r.matrix, r.source
	gen, n := r.gen, r.frame
	r.mu.Unlock()

	if m == nil || src == nil {
		return nil
	}
	if paused, err := m.Paused(); err != nil || paused {
		return err
	}
	frame := src.Frame(n)
	if err := m.Convert(frame, m.Width()); err != nil {
		if errors.Is(err, rgbmatrix.ErrSwapPending) {
			r.log.Debug().Msg("previous frame still pending")
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, max(r.interval, time.Second))
	defer cancel()
	if err := m.Show(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if r.gen == gen {
		r.frame++
	}
	r.mu.Unlock()
	r.pushed.Add(1)
	return nil
}
