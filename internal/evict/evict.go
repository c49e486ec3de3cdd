// Package evict implements the two-level clock (second-chance) page
// replacement policy: a per-process sweep over one table's entries, and
// an inter-process victim selector biased by a resident/virtual ratio
// fairness heuristic.
//
// Nothing here locks internally — the Manager holds the global lock
// around every call, including the I/O the per-process sweep may
// trigger through the swap store.
package evict

import (
	"fmt"
	"log/slog"

	"github.com/losvmkernel/vmcore/internal/buddy"
	"github.com/losvmkernel/vmcore/internal/pagetable"
	"github.com/losvmkernel/vmcore/internal/swap"
)

// Table is the subset of *pagetable.Table the sweep needs.
type Table interface {
	PTEAt(idx int) pagetable.PTE
	ClearAccessed(idx int)
	EntryCount() int
	EvictIndex(idx int) (buddy.Addr, error)
	ResidentCount() uint32
	VirtualMappedCount() uint32
}

// Sweep runs the per-process second-chance clock starting at *hand,
// advancing *hand as it goes, scanning up to 2*entryCount entries (one
// full lap to clear accessed bits, a second to find a victim with them
// cleared). Returns the freed frame address, or ok=false if the table
// has no resident pages at all.
func Sweep(t Table, hand *int) (buddy.Addr, bool) {
	n := t.EntryCount()
	if n == 0 {
		return 0, false
	}
	limit := 2 * n
	for i := 0; i < limit; i++ {
		idx := *hand
		*hand = (*hand + 1) % n

		pte := t.PTEAt(idx)
		if pte.Frame == 0 {
			continue
		}
		if pte.Accessed {
			t.ClearAccessed(idx)
			continue
		}

		frame, err := t.EvictIndex(idx)
		if err != nil {
			continue
		}
		return frame, true
	}
	return 0, false
}

// Process is the subset of the process registry the inter-process
// selector needs: a table to sweep and a clock hand to sweep it with.
// PID is carried only so SelectVictim can report which process gave up
// the frame, for the Manager's metrics attribution; the selection logic
// itself never branches on it.
type Process struct {
	PID   swap.PID
	Table Table
	Hand  *int
}

// SelectVictim cycles *processHand through live, biasing selection
// toward processes whose share of resident frames exceeds their share
// of mapped virtual pages. totalPhysical is the fixed physical region
// size in pages. On success it also returns the pid the frame was
// taken from.
//
// Iterates explicitly over the live slice passed in, never by
// reconstructing a pid-keyed lookup — see DESIGN.md for why the
// original's processMap.size()-by-pid loop is not reproduced.
func SelectVictim(live []Process, processHand *int, totalPhysical uint32, log *slog.Logger) (buddy.Addr, swap.PID, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(live) == 0 {
		return 0, 0, fmt.Errorf("evict: no live processes to select a victim from")
	}

	var totalVirtual uint32
	for _, p := range live {
		totalVirtual += p.Table.VirtualMappedCount()
	}
	if totalVirtual == 0 {
		return 0, 0, fmt.Errorf("evict: no mapped virtual pages across any process")
	}

	for i := 0; i < len(live); i++ {
		if *processHand >= len(live) {
			*processHand = 0
		}
		p := live[*processHand]
		*processHand = (*processHand + 1) % len(live)

		physRatio := float64(p.Table.ResidentCount()) / float64(totalPhysical)
		virtRatio := float64(p.Table.VirtualMappedCount()) / float64(totalVirtual)
		if physRatio < virtRatio {
			continue
		}

		frame, ok := Sweep(p.Table, p.Hand)
		if ok {
			log.Debug("evict: victim selected", "phys_ratio", physRatio, "virt_ratio", virtRatio)
			return frame, p.PID, nil
		}
	}
	return 0, 0, fmt.Errorf("evict: full cycle produced no victim frame")
}
