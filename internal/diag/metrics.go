// Package diag provides the core's non-behavioural surface: per-process
// metrics counters, memory dumps, and an HTTP server exposing both.
// Nothing here participates in the Manager's locking discipline —
// observing these counters never perturbs accessed/dirty bits or
// mutates core state.
package diag

import (
	"sync"

	"github.com/losvmkernel/vmcore"
)

// ProcessMetrics mirrors the teacher's MetricasProceso: counters bumped
// by whichever caller observes the corresponding event.
type ProcessMetrics struct {
	PageTableAccesses int
	PageFaults        int
	SwapReads         int
	SwapWrites        int
	Evictions         int
}

// Registry is a per-pid metrics table guarded by its own mutex, kept
// deliberately separate from the System's global lock: metrics
// observation is explicitly non-behavioural. The System records into it
// while holding its own lock, so a concurrent Snapshot can briefly delay
// a hot-path access, but Registry methods never take the System's lock.
type Registry struct {
	mu sync.Mutex
	m  map[vmcore.PID]*ProcessMetrics
}

// NewRegistry builds an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[vmcore.PID]*ProcessMetrics)}
}

func (r *Registry) entry(pid vmcore.PID) *ProcessMetrics {
	pm, ok := r.m[pid]
	if !ok {
		pm = &ProcessMetrics{}
		r.m[pid] = pm
	}
	return pm
}

// RecordPageTableAccess bumps pid's page-table-access counter.
func (r *Registry) RecordPageTableAccess(pid vmcore.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(pid).PageTableAccesses++
}

// RecordPageFault bumps pid's page-fault counter.
func (r *Registry) RecordPageFault(pid vmcore.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(pid).PageFaults++
}

// RecordSwapRead bumps pid's swap-read counter.
func (r *Registry) RecordSwapRead(pid vmcore.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(pid).SwapReads++
}

// RecordSwapWrite bumps pid's swap-write counter.
func (r *Registry) RecordSwapWrite(pid vmcore.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(pid).SwapWrites++
}

// RecordEviction bumps pid's eviction counter.
func (r *Registry) RecordEviction(pid vmcore.PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(pid).Evictions++
}

// Snapshot returns a copy of pid's metrics, or zero metrics if pid has
// never been observed.
func (r *Registry) Snapshot(pid vmcore.PID) ProcessMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pm, ok := r.m[pid]; ok {
		return *pm
	}
	return ProcessMetrics{}
}
