// Package buddy implements the physical frame allocator: a buddy system
// over a contiguous region of page-aligned physical addresses.
//
// Allocator is not safe for concurrent use on its own — callers hold the
// Manager's single global lock around every call, per the locking
// discipline the core requires. Methods here never lock internally, so
// that the Manager can call them from within its own critical section
// without risking recursive re-entry.
package buddy

import (
	"log/slog"
	"math/bits"
	"sort"
)

// Addr is a page-aligned physical address, expressed as a byte offset
// from the start of the process memory region.
type Addr uint64

// Allocator is a buddy system over region_pages pages of size pageSize.
type Allocator struct {
	pageSize uint64
	levels   [][]Addr // levels[k] holds the sorted base addresses of free 2^k-page blocks
	log      *slog.Logger
}

// New builds an allocator for a region of regionPages pages, each
// pageSize bytes. The region itself is not owned by the allocator —
// callers hand it blocks to manage via Give.
func New(regionPages uint64, pageSize uint64, log *slog.Logger) *Allocator {
	levelCount := bits.Len64(regionPages)
	if levelCount == 0 {
		levelCount = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{
		pageSize: pageSize,
		levels:   make([][]Addr, levelCount),
		log:      log,
	}
}

// LevelCount reports how many buddy levels the allocator maintains.
func (a *Allocator) LevelCount() int { return len(a.levels) }

// FreeAt returns the free blocks currently held at level k, for
// invariant checks and diagnostics. The returned slice is a copy.
func (a *Allocator) FreeAt(k int) []Addr {
	if k < 0 || k >= len(a.levels) {
		return nil
	}
	out := make([]Addr, len(a.levels[k]))
	copy(out, a.levels[k])
	return out
}

// Give returns pageCount contiguous pages starting at addr to the pool.
// pageCount need not be a power of two: it is decomposed by its binary
// representation, inserting a block of size 2^k for each set bit from the
// least significant bit upward, advancing addr past each inserted block.
func (a *Allocator) Give(addr Addr, pageCount uint64) {
	level := 0
	for n := pageCount; n != 0; n >>= 1 {
		if n&1 == 1 {
			a.ensureLevel(level)
			a.insert(level, addr)
			addr += Addr(uint64(1<<uint(level)) * a.pageSize)
		}
		level++
	}
	a.log.Debug("buddy: gave pages back", "page_count", pageCount)
}

// Take rounds pageCount up to the smallest power of two at or above it,
// removes the lowest free block from the first non-empty level at or
// above that size, and returns its base address, or false if no such
// level has a free block. Whenever the block is larger than pageCount,
// the pages past pageCount are returned to the pool via Give and the
// allocator defragments, so the caller holds exactly pageCount pages.
func (a *Allocator) Take(pageCount uint64) (Addr, bool) {
	needLevel := levelFor(pageCount)
	for level := needLevel; level < len(a.levels); level++ {
		if len(a.levels[level]) == 0 {
			continue
		}
		addr := a.levels[level][0]
		a.levels[level] = a.levels[level][1:]

		extra := (uint64(1) << uint(level)) - pageCount
		if extra > 0 {
			tailAddr := addr + Addr(pageCount*a.pageSize)
			a.Give(tailAddr, extra)
			a.Defragment()
		}
		a.log.Debug("buddy: took pages", "page_count", pageCount, "level", level, "addr", addr)
		return addr, true
	}
	a.log.Debug("buddy: no block available", "page_count", pageCount)
	return 0, false
}

// Defragment sweeps each level ascending for adjacent buddy pairs —
// consecutive entries whose addresses differ by exactly 2^k pages — and
// merges them into the level above. Because give() always inserts
// merged blocks at the higher level, a single ascending sweep is enough
// to coalesce every mergeable run.
func (a *Allocator) Defragment() {
	for level := 0; level < len(a.levels); level++ {
		entries := a.levels[level]
		blockSize := Addr(uint64(1<<uint(level)) * a.pageSize)
		merged := false
		i := 0
		for i+1 < len(entries) {
			if entries[i+1]-entries[i] == blockSize {
				base := entries[i]
				entries = append(entries[:i], entries[i+2:]...)
				a.levels[level] = entries
				a.ensureLevel(level + 1)
				a.insert(level+1, base)
				entries = a.levels[level]
				merged = true
				continue
			}
			i++
		}
		if merged {
			a.log.Debug("buddy: merged pair", "level", level)
		}
	}
}

func levelFor(pageCount uint64) int {
	if pageCount <= 1 {
		return 0
	}
	return bits.Len64(pageCount - 1)
}

func (a *Allocator) ensureLevel(level int) {
	for level >= len(a.levels) {
		a.levels = append(a.levels, nil)
	}
}

func (a *Allocator) insert(level int, addr Addr) {
	entries := a.levels[level]
	idx := sort.Search(len(entries), func(i int) bool { return entries[i] >= addr })
	entries = append(entries, 0)
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = addr
	a.levels[level] = entries
}
