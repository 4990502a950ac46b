// Package mmap allocates word-addressable memory regions for scan buffers.
package mmap

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// ErrNoMemory is returned when an allocator cannot satisfy a request.
var ErrNoMemory = errors.New("mmap: out of memory")

// Allocator hands out raw memory regions.
type Allocator interface {
	Alloc(size int) (*Region, error)
	Free(r *Region) error
}

// Region is a block of memory viewed as 32-bit words.
type Region struct {
	region []byte
	words  []uint32
	freed  bool
}

func newRegion(b []byte) *Region {
	r := &Region{region: b}
	if len(b) >= 4 {
		r.words = unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
	}
	return r
}

// Len returns the size in bytes.
func (r *Region) Len() int { return len(r.region) }

// Words returns the region as native-endian 32-bit words.
func (r *Region) Words() []uint32 { return r.words }

// Zero clears the region.
func (r *Region) Zero() {
	clear(r.region)
}

func roundSize(size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("mmap: invalid size %d", size)
	}
	return (size + 3) &^ 3, nil
}

// Heap allocates regions from the Go heap, optionally within a byte budget.
type Heap struct {
	mu    sync.Mutex
	limit int
	used  int
}

var _ Allocator = (*Heap)(nil)

// NewHeap returns a heap allocator. A limit of 0 means unlimited.
func NewHeap(limit int) *Heap {
	return &Heap{limit: limit}
}

// Alloc returns a zeroed region of at least size bytes, rounded to a word.
func (h *Heap) Alloc(size int) (*Region, error) {
	n, err := roundSize(size)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.limit > 0 && h.used+n > h.limit {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrNoMemory, n, h.used, h.limit)
	}
	h.used += n
	return newRegion(make([]byte, n)), nil
}

// Free returns r's bytes to the budget. Freeing twice is a no-op.
func (h *Heap) Free(r *Region) error {
	if r == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.freed {
		return nil
	}
	r.freed = true
	h.used -= r.Len()
	return nil
}

// InUse returns the number of bytes currently allocated.
func (h *Heap) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}
