package vmcore

import (
	"github.com/losvmkernel/vmcore/internal/pagetable"
	"github.com/losvmkernel/vmcore/internal/pmtpool"
	"github.com/losvmkernel/vmcore/internal/swap"
)

// PID identifies a process to the system.
type PID = swap.PID

// Status is the three-value outcome of an access-shaped operation.
type Status = pagetable.Status

const (
	OK        = pagetable.OK
	PageFault = pagetable.PageFault
	Trap      = pagetable.Trap
)

// process bundles one process's page table with the PMT slot it
// borrowed from the pool, so DestroyProcess can return it. The
// cyclic Process<->Manager reference the original carries is
// replaced with one-way ownership: the System owns every process and
// hands out a PID, not a pointer, to callers.
type process struct {
	pid     PID
	table   *pagetable.Table
	pmtSlot pmtpool.Addr
}
