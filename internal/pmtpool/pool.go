// Package pmtpool manages the pool of pre-sized, page-table-aligned
// physical slots handed to new processes at creation and returned at
// destruction.
package pmtpool

import (
	"log/slog"
	"sort"
)

// Addr is the physical address of a PMT slot.
type Addr uint64

// Pool is a sorted set of free PMT slot addresses.
type Pool struct {
	free []Addr
	log  *slog.Logger
}

// New builds an empty pool. Callers populate it with Give before any
// Take.
func New(log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{log: log}
}

// Give inserts addr into the pool of free slots.
func (p *Pool) Give(addr Addr) {
	idx := sort.Search(len(p.free), func(i int) bool { return p.free[i] >= addr })
	p.free = append(p.free, 0)
	copy(p.free[idx+1:], p.free[idx:])
	p.free[idx] = addr
	p.log.Debug("pmtpool: slot returned", "addr", addr, "free_slots", len(p.free))
}

// Take removes and returns the smallest free slot address. The caller
// must treat an empty pool as fatal — process creation cannot proceed
// without a slot.
func (p *Pool) Take() (Addr, bool) {
	if len(p.free) == 0 {
		p.log.Error("pmtpool: pool exhausted")
		return 0, false
	}
	addr := p.free[0]
	p.free = p.free[1:]
	p.log.Debug("pmtpool: slot taken", "addr", addr, "free_slots", len(p.free))
	return addr, true
}

// Len reports the number of free slots, for diagnostics.
func (p *Pool) Len() int { return len(p.free) }
