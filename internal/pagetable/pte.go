// Package pagetable implements the per-process page table and segment
// map: a single-level table covering the full 24-bit virtual address
// space, plus an ordered, non-overlapping segment directory.
//
// As with the other core subsystems, nothing here locks internally —
// callers hold the Manager's global lock around every call.
package pagetable

// AccessType is the permission requested by a hardware access check.
type AccessType uint8

const (
	Read AccessType = 1 << iota
	Write
	Execute
)

// ReadWrite subsumes both Read and Write for segment flags.
const ReadWrite = Read | Write

// PageSize is the fixed page size in bytes, shared with the swap
// cluster size as a startup invariant enforced by the Manager.
const PageSize = 1024

// VAWidth is the virtual address width in bits: a 24-bit space holds
// PMTSize pages.
const VAWidth = 24

// PMTSize is the number of page-table entries covering the full VA
// space: 2^24 / PageSize.
const PMTSize = (1 << VAWidth) / PageSize

// offsetBits is log2(PageSize), used by translate to split a virtual
// address into page number and in-page offset.
const offsetBits = 10

// PTE is a page table entry. An implementer may pack this into a single
// integer; this core keeps the fields explicit because nothing here
// needs to cross a wire format — only the swap store's on-disk records
// do, and those have their own codec.
type PTE struct {
	Frame    uint32 // one-based physical frame index (see FrameIndex); 0 means not resident
	Mapped   bool
	Accessed bool
	Dirty    bool
	Flags    AccessType
}

// VPage returns the page-aligned base address of the virtual page
// containing va.
func VPage(va uint32) uint32 {
	return va &^ (PageSize - 1)
}

// PageIndex returns the page-table index for va.
func PageIndex(va uint32) int {
	return int(VPage(va) / PageSize)
}

// Permits reports whether flags allow an access of the given type, per
// the rule flags & type != 0, with READ_WRITE subsuming both READ and
// WRITE.
func (f AccessType) Permits(t AccessType) bool {
	return f&t != 0
}

// FrameAddr and FrameIndex convert between a PTE's Frame field and the
// byte address the buddy allocator and physical memory region actually
// deal in. The Frame field is the frame's page number plus one, so the
// frame at byte address 0 is index 1 and a Frame of 0 stays free to mean
// "not resident". Exported because the Manager's dump path needs the
// same conversion outside this package.
func FrameAddr(frame uint32) uint64 {
	return uint64(frame-1) * PageSize
}

func FrameIndex(addr uint64) uint32 {
	return uint32(addr/PageSize) + 1
}
