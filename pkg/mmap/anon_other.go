//go:build !linux

package mmap

// Anon falls back to the Go heap where anonymous mappings are unavailable.
type Anon struct {
	Heap
}

// NewAnon returns a heap-backed allocator; lock is ignored.
func NewAnon(lock bool) *Anon {
	return &Anon{}
}
