// Package physmem models the process memory region: a single flat byte
// buffer that the buddy allocator (internal/buddy) hands out extents of
// and that page tables (internal/pagetable) read and write through
// frame addresses.
package physmem

import "github.com/losvmkernel/vmcore/internal/buddy"

// Region is a fixed-size byte buffer, analogous to the teacher's
// package-level memoriaPrincipal slice, but owned by the System rather
// than held as global state.
type Region struct {
	bytes []byte
}

// New allocates a region of sizeBytes bytes, zero-initialised.
func New(sizeBytes uint64) *Region {
	return &Region{bytes: make([]byte, sizeBytes)}
}

// ReadFrame copies PageSize bytes starting at addr into dst.
func (r *Region) ReadFrame(addr buddy.Addr, dst []byte) {
	copy(dst, r.bytes[addr:])
}

// WriteFrame copies src into the region starting at addr.
func (r *Region) WriteFrame(addr buddy.Addr, src []byte) {
	copy(r.bytes[addr:], src)
}

// Len reports the region's total size in bytes.
func (r *Region) Len() int { return len(r.bytes) }
