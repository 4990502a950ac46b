package rgbmatrix

import "fmt"

// expand scales a bits-wide channel value to depth bits. Deeper targets
// repeat the high bits in the low bits so full scale stays full scale.
func expand(v uint16, bits, depth int) uint16 {
	if depth <= bits {
		return v >> (bits - depth)
	}
	return v<<(depth-bits) | v>>(2*bits-depth)
}

// channels splits an RGB565 pixel and expands each channel to depth bits.
func channels(px uint16, depth int) (r, g, b uint16) {
	r = expand(px>>11&0x1f, 5, depth)
	g = expand(px>>5&0x3f, 6, depth)
	b = expand(px&0x1f, 5, depth)
	return r, g, b
}

// Convert writes a full RGB565 frame into the writable buffer. width is the
// row stride of src and must be at least the display width; columns past
// the display width are ignored.
func (m *Matrix) Convert(src []uint16, width int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, h := m.cfg.Width(), m.cfg.DisplayHeight()
	if width < w {
		return fmt.Errorf("%w: stride %d narrower than display width %d", ErrInvalidArgument, width, w)
	}
	if len(src) < (h-1)*width+w {
		return fmt.Errorf("%w: %d pixels do not cover a %dx%d frame", ErrInvalidArgument, len(src), w, h)
	}
	return m.write(func(buf *planeBuffer) {
		for y := 0; y < h; y++ {
			m.convertRow(buf, y, src[y*width:y*width+w])
		}
	})
}

// WriteRow converts one display row. Pixels past the display width are
// ignored; a short row leaves the remaining columns untouched.
func (m *Matrix) WriteRow(y int, src []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if y < 0 || y >= m.cfg.DisplayHeight() {
		return fmt.Errorf("%w: row %d outside 0..%d", ErrInvalidArgument, y, m.cfg.DisplayHeight()-1)
	}
	if len(src) > m.cfg.Width() {
		src = src[:m.cfg.Width()]
	}
	return m.write(func(buf *planeBuffer) {
		m.convertRow(buf, y, src)
	})
}

// write runs fn against the writable buffer. A single buffer that is being
// scanned is written with the timer masked.
func (m *Matrix) write(fn func(*planeBuffer)) error {
	switch m.State() {
	case StateDeinitialized:
		return ErrDeinitialized
	case StateReady, StateRunning, StatePaused:
	default:
		return ErrState
	}
	buf, err := m.writable()
	if err != nil {
		return err
	}
	if len(m.bufs) == 1 && m.State() == StateRunning {
		m.timer.Disable()
		defer m.timer.Enable()
	}
	fn(buf)
	return nil
}

// convertRow spreads one row of pixels over every plane of buf.
func (m *Matrix) convertRow(buf *planeBuffer, y int, src []uint16) {
	rows := m.cfg.Rows()
	half, row := y/rows, y%rows
	depth := m.cfg.BitDepth
	bw := m.cfg.BitWidth

	for x, px := range src {
		chain, col := x/bw, x%bw
		shift := uint(chain*LinesPerChain + half*3)
		mask := ^(uint32(7) << shift)
		r, g, b := channels(px, depth)
		for p := 0; p < depth; p++ {
			bits := uint32(r>>p&1) | uint32(g>>p&1)<<1 | uint32(b>>p&1)<<2
			words := buf.row(p, row)
			words[col] = words[col]&mask | bits<<shift
		}
	}
}
