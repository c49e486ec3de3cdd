package swap

import "encoding/binary"

// Every cluster that participates in a directory chain (root, process, or
// the freelist) reserves its first 8 bytes for a link to the next cluster
// in that chain; 0 means end of chain. This mirrors how the free-cluster
// list and the root/process chains are all "a cluster whose first word is
// a pointer" in the original partition format.

const linkSize = 8

// rootEntry is {pid, processCluster}. PID -1 is a tombstone (a destroyed
// process whose root slot was never reclaimed, see DESIGN.md); PID 0
// marks the unused tail of the entry array.
type rootEntry struct {
	PID            int64
	ProcessCluster ClusterNo
}

const rootEntrySize = 16

func decodeRootEntry(buf []byte) rootEntry {
	return rootEntry{
		PID:            int64(binary.LittleEndian.Uint64(buf[0:8])),
		ProcessCluster: ClusterNo(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

func encodeRootEntry(buf []byte, e rootEntry) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.PID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.ProcessCluster))
}

// pageEntry is {virtualAddress, pageCluster}. VirtualAddress -1 is a
// tombstone (an erased page whose slot was reclaimed on the freelist but
// whose directory entry must not be reused for a different address);
// VirtualAddress 0 marks the unused tail.
type pageEntry struct {
	VirtualAddress int64
	PageCluster    ClusterNo
}

const pageEntrySize = 16

func decodePageEntry(buf []byte) pageEntry {
	return pageEntry{
		VirtualAddress: int64(binary.LittleEndian.Uint64(buf[0:8])),
		PageCluster:    ClusterNo(binary.LittleEndian.Uint64(buf[8:16])),
	}
}

func encodePageEntry(buf []byte, e pageEntry) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.VirtualAddress))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.PageCluster))
}

func readLink(buf []byte) ClusterNo {
	return ClusterNo(binary.LittleEndian.Uint64(buf[0:linkSize]))
}

func writeLink(buf []byte, next ClusterNo) {
	binary.LittleEndian.PutUint64(buf[0:linkSize], uint64(next))
}
