package vmcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/losvmkernel/vmcore/internal/buddy"
	"github.com/losvmkernel/vmcore/internal/pagetable"
	"github.com/losvmkernel/vmcore/internal/swap"
)

type memDevice struct {
	clusters [][]byte
}

func newMemDevice(n int, clusterSize int) *memDevice {
	d := &memDevice{clusters: make([][]byte, n)}
	for i := range d.clusters {
		d.clusters[i] = make([]byte, clusterSize)
	}
	return d
}

func (d *memDevice) ReadCluster(n swap.ClusterNo, dst []byte) error {
	copy(dst, d.clusters[n])
	return nil
}

func (d *memDevice) WriteCluster(n swap.ClusterNo, src []byte) error {
	copy(d.clusters[n], src)
	return nil
}

func (d *memDevice) NumClusters() swap.ClusterNo { return swap.ClusterNo(len(d.clusters)) }

// newTestSystem builds a System over a regionPages-page region with
// pmtSlots PMT slots. The end-to-end scenario fixtures in the core's
// contract use P=1024, region=8 pages, PMT pool=1 slot.
func newTestSystem(t *testing.T, regionPages uint64, pmtSlots int) *System {
	dev := newMemDevice(128, pagetable.PageSize)
	store, err := swap.New(dev, pagetable.PageSize, nil)
	require.NoError(t, err)

	sys, err := New(regionPages, pmtSlots, store, nil)
	require.NoError(t, err)
	return sys
}

func TestScenario1FaultThenReaccess(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	pid, err := sys.CreateProcess()
	require.NoError(t, err)

	status, err := sys.CreateSegment(pid, 0x1000, 2, pagetable.ReadWrite)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.Access(pid, 0x1000, pagetable.Read)
	require.NoError(t, err)
	require.Equal(t, PageFault, status)

	status, err = sys.PageFault(pid, 0x1000)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.Access(pid, 0x1000, pagetable.Read)
	require.NoError(t, err)
	assert.Equal(t, OK, status)
}

func TestScenario3LoadSegmentFaultAndTranslate(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	pid, err := sys.CreateProcess()
	require.NoError(t, err)

	content := make([]byte, pagetable.PageSize)
	for i := range content {
		content[i] = 0xAA
	}
	status, err := sys.LoadSegment(pid, 0x2000, 1, pagetable.Read, content)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.PageFault(pid, 0x2000)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	addr, ok, err := sys.GetPhysicalAddress(pid, 0x2000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0), addr%pagetable.PageSize)
}

func TestScenario4OverlappingSegmentTraps(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	pid, err := sys.CreateProcess()
	require.NoError(t, err)

	status, err := sys.CreateSegment(pid, 0x1000, 2, pagetable.Read)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.CreateSegment(pid, 0x1400, 1, pagetable.Read)
	require.NoError(t, err)
	assert.Equal(t, Trap, status)
}

func TestScenario5WriteWithoutPermissionTraps(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	pid, err := sys.CreateProcess()
	require.NoError(t, err)

	status, err := sys.CreateSegment(pid, 0x1000, 1, pagetable.Read)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.Access(pid, 0x1000, pagetable.Write)
	require.NoError(t, err)
	assert.Equal(t, Trap, status)
}

func TestAccessZeroAddressTraps(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	pid, err := sys.CreateProcess()
	require.NoError(t, err)

	status, err := sys.Access(pid, 0, pagetable.Read)
	require.NoError(t, err)
	assert.Equal(t, Trap, status)
}

func TestPMTPoolExhaustionIsFatal(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	_, err := sys.CreateProcess()
	require.NoError(t, err)

	_, err = sys.CreateProcess()
	require.Error(t, err)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, PoolExhausted, fe.Kind)
}

func TestDestroyProcessReturnsPMTSlot(t *testing.T) {
	sys := newTestSystem(t, 8, 1)
	pid, err := sys.CreateProcess()
	require.NoError(t, err)

	require.NoError(t, sys.DestroyProcess(pid))

	pid2, err := sys.CreateProcess()
	require.NoError(t, err)
	assert.NotEqual(t, pid, pid2)
}

func TestEvictionUnderPressureAcrossTwoProcesses(t *testing.T) {
	sys := newTestSystem(t, 8, 2)

	pid1, err := sys.CreateProcess()
	require.NoError(t, err)
	status, err := sys.CreateSegment(pid1, 0x1000, 2, pagetable.ReadWrite)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.Access(pid1, 0x1000, pagetable.Write)
	require.NoError(t, err)
	require.Equal(t, PageFault, status)
	status, err = sys.PageFault(pid1, 0x1000)
	require.NoError(t, err)
	require.Equal(t, OK, status)
	status, err = sys.Access(pid1, 0x1000, pagetable.Write)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	pid2, err := sys.CreateProcess()
	require.NoError(t, err)
	status, err = sys.CreateSegment(pid2, 0x1000, 8, pagetable.ReadWrite)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	// The region only has 8 frames total and pid1 already holds one;
	// faulting in all 8 of pid2's pages exhausts the buddy pool partway
	// through (each of pid2's first 7 faults takes a frame directly) and
	// the 8th has nothing left to take.
	lastVA := uint32(0x1000) + 7*pagetable.PageSize
	for i := 0; i < 8; i++ {
		va := uint32(0x1000) + uint32(i)*pagetable.PageSize

		status, err := sys.Access(pid2, va, pagetable.Read)
		require.NoError(t, err)
		if status != PageFault {
			continue
		}

		if va == lastVA {
			totalFree := 0
			for level, n := range sys.FreeSpaceByLevel() {
				totalFree += n * (1 << level)
			}
			require.Equal(t, 0, totalFree, "buddy pool must already be exhausted before the page that forces eviction")
		}

		status, err = sys.PageFault(pid2, va)
		require.NoError(t, err)
		require.Equal(t, OK, status, "page fault must succeed by evicting a victim, not TRAP or fail fatally")
	}

	// The pool was exhausted and every prior frame belonged to a
	// resident page, so PageFault succeeding on lastVA with no free
	// frame available is only possible if a real eviction ran.
	_, ok, err := sys.GetPhysicalAddress(pid2, lastVA)
	require.NoError(t, err)
	assert.True(t, ok, "the page that forced eviction must itself be resident afterward")

	r1, err := sys.ResidentPageCount(pid1)
	require.NoError(t, err)
	r2, err := sys.ResidentPageCount(pid2)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), r1+r2, "eviction must recycle a frame, keeping total residency at physical capacity")
}

// TestEvictionPreservesPageContents writes distinguishing bytes into a
// resident page, forces it to be the eviction victim by starving the
// region down to a single frame, refaults it, and checks the bytes
// survived the round trip through swap. A single-frame region makes
// eviction unconditional: whichever process faults next, the other
// process's only page is the only thing that can be evicted.
func TestEvictionPreservesPageContents(t *testing.T) {
	sys := newTestSystem(t, 1, 2)

	pid1, err := sys.CreateProcess()
	require.NoError(t, err)
	status, err := sys.CreateSegment(pid1, 0x1000, 1, pagetable.ReadWrite)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	status, err = sys.Access(pid1, 0x1000, pagetable.Read)
	require.NoError(t, err)
	require.Equal(t, PageFault, status)
	status, err = sys.PageFault(pid1, 0x1000)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	addr1, ok, err := sys.GetPhysicalAddress(pid1, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	pattern := make([]byte, pagetable.PageSize)
	for i := range pattern {
		pattern[i] = byte(0xC0 + i%16)
	}
	sys.mem.WriteFrame(buddy.Addr(addr1), pattern)

	// Mark the page dirty so the coming eviction writes it back rather
	// than discarding it as clean.
	status, err = sys.Access(pid1, 0x1000, pagetable.Write)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	pid2, err := sys.CreateProcess()
	require.NoError(t, err)
	status, err = sys.CreateSegment(pid2, 0x1000, 1, pagetable.ReadWrite)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	// The region holds exactly one frame, already given to pid1; this
	// fault can only be satisfied by evicting pid1's page.
	status, err = sys.Access(pid2, 0x1000, pagetable.Read)
	require.NoError(t, err)
	require.Equal(t, PageFault, status)
	status, err = sys.PageFault(pid2, 0x1000)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	_, ok, err = sys.GetPhysicalAddress(pid1, 0x1000)
	require.NoError(t, err)
	require.False(t, ok, "pid1's page must have been evicted to make room for pid2's")

	// Faulting pid1 back in evicts pid2's page in turn (same single
	// frame) and must reload pid1's page from swap unchanged.
	status, err = sys.Access(pid1, 0x1000, pagetable.Read)
	require.NoError(t, err)
	require.Equal(t, PageFault, status)
	status, err = sys.PageFault(pid1, 0x1000)
	require.NoError(t, err)
	require.Equal(t, OK, status)

	addr1b, ok, err := sys.GetPhysicalAddress(pid1, 0x1000)
	require.NoError(t, err)
	require.True(t, ok)

	got := make([]byte, pagetable.PageSize)
	sys.mem.ReadFrame(buddy.Addr(addr1b), got)
	assert.Equal(t, pattern, got, "evicted page's contents must survive the writeback/refault round trip")
}
