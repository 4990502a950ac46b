//go:build linux

package mmap

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Anon allocates page-backed anonymous mappings outside the Go heap.
// When locking is requested the pages are pinned with mlock so a scan
// never waits on a page fault; a failed mlock is tolerated.
type Anon struct {
	mu     sync.Mutex
	lock   bool
	locked map[*Region]bool
}

var _ Allocator = (*Anon)(nil)

// NewAnon returns an anonymous-mapping allocator.
func NewAnon(lock bool) *Anon {
	return &Anon{lock: lock, locked: make(map[*Region]bool)}
}

// Alloc maps a zeroed private region.
func (a *Anon) Alloc(size int) (*Region, error) {
	n, err := roundSize(size)
	if err != nil {
		return nil, err
	}
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	r := newRegion(b)
	if a.lock && unix.Mlock(b) == nil {
		a.mu.Lock()
		a.locked[r] = true
		a.mu.Unlock()
	}
	return r, nil
}

// Free unmaps r. Freeing twice is a no-op.
func (a *Anon) Free(r *Region) error {
	if r == nil || r.freed {
		return nil
	}
	a.mu.Lock()
	if a.locked[r] {
		_ = unix.Munlock(r.region)
		delete(a.locked, r)
	}
	a.mu.Unlock()
	r.freed = true
	if err := unix.Munmap(r.region); err != nil {
		return fmt.Errorf("failed to munmap: %w", err)
	}
	return nil
}
