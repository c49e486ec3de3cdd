package pagetable

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/losvmkernel/vmcore/internal/buddy"
	"github.com/losvmkernel/vmcore/internal/swap"
)

// ErrEvictionDry means a full eviction cycle across every live process
// produced no victim frame. Unlike an ordinary TRAP, this is not a
// property of the faulting access — it means the system has no room
// left anywhere, and the caller must treat it as fatal rather than
// retry.
var ErrEvictionDry = errors.New("pagetable: eviction cycle produced no frame")

// Status is the three-value outcome of an access-shaped operation.
type Status int

const (
	OK Status = iota
	PageFault
	Trap
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case PageFault:
		return "PAGE_FAULT"
	case Trap:
		return "TRAP"
	default:
		return "UNKNOWN"
	}
}

// Evictor selects and evicts a victim frame when the buddy allocator has
// none left. The Manager wires this to the eviction engine's
// inter-process victim selection, so the frame may come from any live
// process's table, not only this one; pageFault only calls it after a
// direct Take has already failed. A non-nil error means the cycle found
// nothing to evict anywhere in the system.
type Evictor interface {
	EvictOne() (buddy.Addr, error)
}

// Memory is the physical memory region frames are read from and written
// to. Satisfied by *physmem.Region.
type Memory interface {
	ReadFrame(addr buddy.Addr, dst []byte)
	WriteFrame(addr buddy.Addr, src []byte)
}

// Table is one process's page table and segment map.
type Table struct {
	PID swap.PID

	entries []PTE
	segs    segmentMap

	// ClockHand is the per-process cursor used by the eviction engine's
	// second-chance sweep. It lives here, not in the eviction package,
	// because it is part of this process's persistent state between
	// sweeps.
	ClockHand int

	frames *buddy.Allocator
	store  *swap.Store
	mem    Memory
	log    *slog.Logger
}

// New builds an empty table for pid, backed by the shared frame
// allocator, swap store, and physical memory region.
func New(pid swap.PID, frames *buddy.Allocator, store *swap.Store, mem Memory, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{
		PID:     pid,
		entries: make([]PTE, PMTSize),
		frames:  frames,
		store:   store,
		mem:     mem,
		log:     log,
	}
}

// PTEAt returns a copy of the entry for page index idx, for
// diagnostics and the eviction sweep.
func (t *Table) PTEAt(idx int) PTE { return t.entries[idx] }

// ResidentCount returns the number of resident pages across all
// segments, used by the inter-process eviction ratio heuristic.
func (t *Table) ResidentCount() uint32 {
	var n uint32
	for _, s := range t.segs.segments {
		n += s.ResidentPages
	}
	return n
}

// VirtualMappedCount returns the number of mapped pages across all
// segments (resident or not), used by the inter-process eviction ratio
// heuristic.
func (t *Table) VirtualMappedCount() uint32 {
	var n uint32
	for _, s := range t.segs.segments {
		n += s.SizePages
	}
	return n
}

// Segments returns a snapshot of the current segment list, safe to
// iterate while deleting segments one at a time.
func (t *Table) Segments() []*Segment {
	out := make([]*Segment, len(t.segs.segments))
	copy(out, t.segs.segments)
	return out
}

// ResidentPage is one resident mapping, used by dumps that need to walk
// a process's scattered frames in virtual-address order.
type ResidentPage struct {
	VA    uint32
	Frame uint32
}

// ResidentFrames returns every resident page across all segments, in
// virtual-address order. The segment map is already kept sorted by
// StartVA, so a single ordered pass over it is enough.
func (t *Table) ResidentFrames() []ResidentPage {
	var out []ResidentPage
	for _, seg := range t.segs.segments {
		first := PageIndex(seg.StartVA)
		for i := 0; i < int(seg.SizePages); i++ {
			pte := t.entries[first+i]
			if pte.Frame != 0 {
				out = append(out, ResidentPage{VA: seg.StartVA + uint32(i)*PageSize, Frame: pte.Frame})
			}
		}
	}
	return out
}

// CreateSegment maps [startVA, startVA+sizePages*PageSize) with the
// given flags. TRAPs on misalignment or overlap with an existing
// segment.
func (t *Table) CreateSegment(startVA uint32, sizePages uint32, flags AccessType) Status {
	if startVA%PageSize != 0 {
		t.log.Warn("pagetable: misaligned segment start", "pid", t.PID, "va", startVA)
		return Trap
	}
	if t.segs.overlaps(startVA, sizePages) {
		t.log.Warn("pagetable: overlapping segment", "pid", t.PID, "va", startVA, "pages", sizePages)
		return Trap
	}

	seg := &Segment{StartVA: startVA, SizePages: sizePages, Flags: flags}
	t.segs.insert(seg)

	firstIdx := PageIndex(startVA)
	for i := 0; i < int(sizePages); i++ {
		t.entries[firstIdx+i] = PTE{Mapped: true, Flags: flags}
	}
	t.log.Debug("pagetable: segment created", "pid", t.PID, "va", startVA, "pages", sizePages, "flags", flags)
	return OK
}

// LoadSegment creates the segment then writes content to swap for its
// pages. The pages are not made resident; they are faulted in on first
// access.
func (t *Table) LoadSegment(startVA uint32, sizePages uint32, flags AccessType, content []byte) Status {
	if st := t.CreateSegment(startVA, sizePages, flags); st != OK {
		return st
	}
	if err := t.store.WritePage(t.PID, swap.VA(startVA), int(sizePages), content); err != nil {
		t.log.Error("pagetable: load segment write failed", "pid", t.PID, "va", startVA, "err", err)
		return Trap
	}
	t.log.Debug("pagetable: segment loaded", "pid", t.PID, "va", startVA, "pages", sizePages)
	return OK
}

// DeleteSegment unmaps the segment starting at startVA, returning
// resident frames to the buddy allocator and erasing non-resident pages
// from swap.
func (t *Table) DeleteSegment(startVA uint32) Status {
	if startVA%PageSize != 0 {
		return Trap
	}
	seg := t.segs.find(startVA)
	if seg == nil {
		t.log.Warn("pagetable: delete unknown segment", "pid", t.PID, "va", startVA)
		return Trap
	}

	firstIdx := PageIndex(startVA)
	for i := 0; i < int(seg.SizePages); i++ {
		idx := firstIdx + i
		pte := t.entries[idx]
		va := startVA + uint32(i)*PageSize
		if pte.Frame != 0 {
			t.frames.Give(buddy.Addr(FrameAddr(pte.Frame)), 1)
		} else if pte.Mapped {
			if err := t.store.ErasePage(t.PID, swap.VA(va)); err != nil {
				t.log.Error("pagetable: erase page failed", "pid", t.PID, "va", va, "err", err)
			}
		}
		t.entries[idx] = PTE{}
	}
	t.frames.Defragment()
	t.segs.remove(startVA)
	t.log.Debug("pagetable: segment deleted", "pid", t.PID, "va", startVA)
	return OK
}

// PageFault services a fault on va: obtains a frame (direct, or via the
// evictor if the buddy allocator is exhausted), reads the page's
// contents back from swap, and marks the PTE resident. A non-nil error
// is ErrEvictionDry (or wraps it): the system had no frame to give
// anywhere, a fatal condition distinct from an ordinary TRAP.
func (t *Table) PageFault(va uint32, evict Evictor) (Status, error) {
	if va == 0 {
		return Trap, nil
	}
	idx := PageIndex(va)
	pte := &t.entries[idx]
	if !pte.Mapped {
		return Trap, nil
	}

	frameAddr, ok := t.frames.Take(1)
	if !ok {
		victim, err := evict.EvictOne()
		if err != nil {
			return Trap, err
		}
		frameAddr = victim
	}

	vp := VPage(va)
	dest := make([]byte, PageSize)
	if err := t.store.ReadPage(t.PID, swap.VA(vp), dest); err != nil {
		return Trap, nil
	}
	t.mem.WriteFrame(frameAddr, dest)

	pte.Frame = FrameIndex(uint64(frameAddr))
	pte.Accessed = false
	pte.Dirty = false

	if seg := t.segs.containing(va); seg != nil {
		seg.ResidentPages++
	}
	t.log.Debug("pagetable: page fault resolved", "pid", t.PID, "va", va, "frame", pte.Frame)
	return OK, nil
}

// Access checks and records a hardware access of the given type.
func (t *Table) Access(va uint32, accessType AccessType) Status {
	if va == 0 {
		return Trap
	}
	idx := PageIndex(va)
	pte := &t.entries[idx]
	if !pte.Mapped || !pte.Flags.Permits(accessType) {
		return Trap
	}
	if pte.Frame == 0 {
		return PageFault
	}
	pte.Accessed = true
	if accessType&Write != 0 {
		pte.Dirty = true
	}
	return OK
}

// Translate returns the physical address for va, or ok=false if
// unmapped or non-resident.
func (t *Table) Translate(va uint32) (uint32, bool) {
	idx := PageIndex(va)
	pte := t.entries[idx]
	if !pte.Mapped || pte.Frame == 0 {
		return 0, false
	}
	return ((pte.Frame - 1) << offsetBits) | (va % PageSize), true
}

// ClearAccessed clears the accessed bit at page index idx, the
// second-chance sweep's "give it another lap" step.
func (t *Table) ClearAccessed(idx int) {
	t.entries[idx].Accessed = false
}

// EntryCount reports the number of page-table entries (PMTSize),
// exported for the eviction sweep's bound.
func (t *Table) EntryCount() int { return len(t.entries) }

// EvictIndex evicts the resident page at index idx: writes back its
// contents if dirty, then clears its frame and accessed bit. Called by
// the eviction engine's sweep once it has picked this index as victim;
// it never locks, mirroring every other collaborator in this core.
func (t *Table) EvictIndex(idx int) (buddy.Addr, error) {
	pte := &t.entries[idx]
	if pte.Frame == 0 {
		return 0, fmt.Errorf("pagetable: index %d not resident", idx)
	}
	frame := buddy.Addr(FrameAddr(pte.Frame))
	if pte.Dirty {
		vp := uint32(idx) * PageSize
		contents := make([]byte, PageSize)
		t.mem.ReadFrame(frame, contents)
		if err := t.store.WritePage(t.PID, swap.VA(vp), 1, contents); err != nil {
			return 0, fmt.Errorf("pagetable: writeback failed: %w", err)
		}
		pte.Dirty = false
	}
	pte.Frame = 0
	pte.Accessed = false
	if seg := t.segs.containing(uint32(idx) * PageSize); seg != nil && seg.ResidentPages > 0 {
		seg.ResidentPages--
	}
	return frame, nil
}
