// Package swap implements the three-tier swap store: a root directory of
// processes, a per-process directory of pages, and the page clusters
// themselves, all addressed by cluster number on a block device, plus the
// free-cluster list that backs allocation.
//
// Like the other core subsystems, Store methods assume the caller already
// holds the Manager's global lock; Store does not lock internally.
package swap

import (
	"fmt"
	"log/slog"
)

// PID identifies a process to the swap store.
type PID uint32

// VA is a page-aligned virtual address.
type VA uint32

// Store is the swap partition's three-tier directory plus freelist.
type Store struct {
	dev         BlockDevice
	clusterSize int
	numClusters ClusterNo

	freeHead ClusterNo

	rootEntriesPerCluster int
	pageEntriesPerCluster int

	log *slog.Logger
}

// New formats dev as a fresh swap partition (cluster 0 zeroed as the
// first root cluster, clusters 1..N-1 chained onto the freelist) and
// returns a Store over it. clusterSize must equal the page size used by
// the rest of the core — this is a startup invariant, not a runtime
// check the core repeats per access.
func New(dev BlockDevice, clusterSize int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	n := dev.NumClusters()
	if n < 2 {
		return nil, fmt.Errorf("swap: partition has %d clusters, need at least 2", n)
	}
	entrySlots := (clusterSize - linkSize) / rootEntrySize
	if entrySlots < 1 {
		return nil, fmt.Errorf("swap: cluster size %d too small for any directory entries", clusterSize)
	}

	s := &Store{
		dev:                    dev,
		clusterSize:            clusterSize,
		numClusters:            n,
		rootEntriesPerCluster:  entrySlots,
		pageEntriesPerCluster:  (clusterSize - linkSize) / pageEntrySize,
		log:                    log,
	}

	if err := s.format(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) format() error {
	buf := make([]byte, s.clusterSize)
	if err := s.dev.WriteCluster(0, buf); err != nil {
		return fmt.Errorf("swap: formatting root cluster: %w", err)
	}
	for c := ClusterNo(1); c < s.numClusters; c++ {
		next := (c + 1) % s.numClusters
		writeLink(buf, next)
		if err := s.dev.WriteCluster(c, buf); err != nil {
			return fmt.Errorf("swap: formatting freelist cluster %d: %w", c, err)
		}
	}
	s.freeHead = 1
	s.log.Info("swap: partition formatted", "clusters", s.numClusters, "cluster_size", s.clusterSize)
	return nil
}

// AllocateCluster pops the head of the freelist. Running out of free
// clusters is fatal: the partition has no more room for any directory
// entry or page.
func (s *Store) AllocateCluster() (ClusterNo, error) {
	if s.freeHead == 0 {
		return 0, fmt.Errorf("swap: free cluster list exhausted")
	}
	cn := s.freeHead
	buf := make([]byte, s.clusterSize)
	if err := s.dev.ReadCluster(cn, buf); err != nil {
		return 0, fmt.Errorf("swap: reading free cluster %d: %w", cn, err)
	}
	s.freeHead = readLink(buf)
	s.log.Debug("swap: allocated cluster", "cluster", cn)
	return cn, nil
}

// ReleaseCluster pushes cn back onto the freelist head. Its contents are
// not zeroed.
func (s *Store) ReleaseCluster(cn ClusterNo) error {
	buf := make([]byte, s.clusterSize)
	writeLink(buf, s.freeHead)
	if err := s.dev.WriteCluster(cn, buf); err != nil {
		return fmt.Errorf("swap: releasing cluster %d: %w", cn, err)
	}
	s.freeHead = cn
	s.log.Debug("swap: released cluster", "cluster", cn)
	return nil
}

// resolveProcess walks the root-cluster chain for pid, allocating a new
// process cluster (and, if every root cluster is full, a new root
// cluster) the first time pid is seen.
func (s *Store) resolveProcess(pid PID) (rootCluster ClusterNo, rootEntryIdx int, processCluster ClusterNo, err error) {
	rootCluster = 0
	buf := make([]byte, s.clusterSize)
	for {
		if err = s.dev.ReadCluster(rootCluster, buf); err != nil {
			return 0, 0, 0, fmt.Errorf("swap: reading root cluster %d: %w", rootCluster, err)
		}
		for i := 0; i < s.rootEntriesPerCluster; i++ {
			off := linkSize + i*rootEntrySize
			entry := decodeRootEntry(buf[off : off+rootEntrySize])
			if entry.PID == int64(pid) {
				return rootCluster, i, entry.ProcessCluster, nil
			}
			if entry.PID == 0 {
				newProcCluster, err := s.AllocateCluster()
				if err != nil {
					return 0, 0, 0, err
				}
				if err := s.zeroCluster(newProcCluster); err != nil {
					return 0, 0, 0, err
				}
				encodeRootEntry(buf[off:off+rootEntrySize], rootEntry{PID: int64(pid), ProcessCluster: newProcCluster})
				if err := s.dev.WriteCluster(rootCluster, buf); err != nil {
					return 0, 0, 0, fmt.Errorf("swap: writing root cluster %d: %w", rootCluster, err)
				}
				s.log.Debug("swap: attached process cluster", "pid", pid, "root_cluster", rootCluster, "process_cluster", newProcCluster)
				return rootCluster, i, newProcCluster, nil
			}
		}
		next := readLink(buf)
		if next == 0 {
			break
		}
		rootCluster = next
	}

	// Every existing root cluster is full: chain a new one.
	newRoot, err := s.AllocateCluster()
	if err != nil {
		return 0, 0, 0, err
	}
	writeLink(buf, newRoot)
	if err := s.dev.WriteCluster(rootCluster, buf); err != nil {
		return 0, 0, 0, fmt.Errorf("swap: linking root cluster %d -> %d: %w", rootCluster, newRoot, err)
	}

	processCluster, err = s.AllocateCluster()
	if err != nil {
		return 0, 0, 0, err
	}
	if err := s.zeroCluster(processCluster); err != nil {
		return 0, 0, 0, err
	}

	newBuf := make([]byte, s.clusterSize)
	encodeRootEntry(newBuf[linkSize:linkSize+rootEntrySize], rootEntry{PID: int64(pid), ProcessCluster: processCluster})
	if err := s.dev.WriteCluster(newRoot, newBuf); err != nil {
		return 0, 0, 0, fmt.Errorf("swap: writing new root cluster %d: %w", newRoot, err)
	}
	s.log.Info("swap: grew root chain", "pid", pid, "new_root_cluster", newRoot, "process_cluster", processCluster)
	return newRoot, 0, processCluster, nil
}

// resolvePage walks the process-cluster chain starting at head, keyed by
// va, allocating a new page cluster (and chaining a new process cluster
// if needed) the first time va is seen.
func (s *Store) resolvePage(head ClusterNo, va VA) (procClusterWithEntry ClusterNo, entryIdx int, pageCluster ClusterNo, err error) {
	cluster := head
	buf := make([]byte, s.clusterSize)
	for {
		if err = s.dev.ReadCluster(cluster, buf); err != nil {
			return 0, 0, 0, fmt.Errorf("swap: reading process cluster %d: %w", cluster, err)
		}
		for i := 0; i < s.pageEntriesPerCluster; i++ {
			off := linkSize + i*pageEntrySize
			entry := decodePageEntry(buf[off : off+pageEntrySize])
			if entry.VirtualAddress == int64(va) {
				return cluster, i, entry.PageCluster, nil
			}
			if entry.VirtualAddress == 0 {
				newPageCluster, err := s.AllocateCluster()
				if err != nil {
					return 0, 0, 0, err
				}
				if err := s.zeroCluster(newPageCluster); err != nil {
					return 0, 0, 0, err
				}
				encodePageEntry(buf[off:off+pageEntrySize], pageEntry{VirtualAddress: int64(va), PageCluster: newPageCluster})
				if err := s.dev.WriteCluster(cluster, buf); err != nil {
					return 0, 0, 0, fmt.Errorf("swap: writing process cluster %d: %w", cluster, err)
				}
				return cluster, i, newPageCluster, nil
			}
		}
		next := readLink(buf)
		if next == 0 {
			break
		}
		cluster = next
	}

	newProcCluster, err := s.AllocateCluster()
	if err != nil {
		return 0, 0, 0, err
	}
	writeLink(buf, newProcCluster)
	if err := s.dev.WriteCluster(cluster, buf); err != nil {
		return 0, 0, 0, fmt.Errorf("swap: linking process cluster %d -> %d: %w", cluster, newProcCluster, err)
	}

	pageCluster, err = s.AllocateCluster()
	if err != nil {
		return 0, 0, 0, err
	}
	if err := s.zeroCluster(pageCluster); err != nil {
		return 0, 0, 0, err
	}

	newBuf := make([]byte, s.clusterSize)
	encodePageEntry(newBuf[linkSize:linkSize+pageEntrySize], pageEntry{VirtualAddress: int64(va), PageCluster: pageCluster})
	if err := s.dev.WriteCluster(newProcCluster, newBuf); err != nil {
		return 0, 0, 0, fmt.Errorf("swap: writing new process cluster %d: %w", newProcCluster, err)
	}
	return newProcCluster, 0, pageCluster, nil
}

// WritePage writes pageCount pages worth of buffer to swap, starting at
// vaStart, allocating page clusters lazily as needed.
func (s *Store) WritePage(pid PID, vaStart VA, pageCount int, buffer []byte) error {
	_, _, head, err := s.resolveProcess(pid)
	if err != nil {
		return err
	}
	for i := 0; i < pageCount; i++ {
		va := vaStart + VA(i*s.clusterSize)
		_, _, pageCluster, err := s.resolvePage(head, va)
		if err != nil {
			return err
		}
		chunk := buffer[i*s.clusterSize : (i+1)*s.clusterSize]
		if err := s.dev.WriteCluster(pageCluster, chunk); err != nil {
			return fmt.Errorf("swap: writing page cluster %d: %w", pageCluster, err)
		}
	}
	s.log.Debug("swap: wrote pages", "pid", pid, "va_start", vaStart, "page_count", pageCount)
	return nil
}

// ReadPage reads the single cluster for (pid, va) into dest, which must
// be at least clusterSize bytes. The page must already have been
// written — reading an unresolved page is a caller bug, not a recoverable
// condition.
func (s *Store) ReadPage(pid PID, va VA, dest []byte) error {
	_, _, head, err := s.resolveProcess(pid)
	if err != nil {
		return err
	}
	_, _, pageCluster, err := s.resolvePage(head, va)
	if err != nil {
		return err
	}
	if err := s.dev.ReadCluster(pageCluster, dest[:s.clusterSize]); err != nil {
		return fmt.Errorf("swap: reading page cluster %d: %w", pageCluster, err)
	}
	s.log.Debug("swap: read page", "pid", pid, "va", va, "page_cluster", pageCluster)
	return nil
}

// ErasePage releases va's page cluster and tombstones its directory
// entry, distinct from the 0 value that marks an unused chain tail.
func (s *Store) ErasePage(pid PID, va VA) error {
	_, _, head, err := s.resolveProcess(pid)
	if err != nil {
		return err
	}
	procCluster, entryIdx, pageCluster, err := s.resolvePage(head, va)
	if err != nil {
		return err
	}
	if err := s.ReleaseCluster(pageCluster); err != nil {
		return err
	}

	buf := make([]byte, s.clusterSize)
	if err := s.dev.ReadCluster(procCluster, buf); err != nil {
		return fmt.Errorf("swap: reading process cluster %d: %w", procCluster, err)
	}
	off := linkSize + entryIdx*pageEntrySize
	encodePageEntry(buf[off:off+pageEntrySize], pageEntry{VirtualAddress: -1, PageCluster: pageCluster})
	if err := s.dev.WriteCluster(procCluster, buf); err != nil {
		return fmt.Errorf("swap: tombstoning entry in process cluster %d: %w", procCluster, err)
	}
	s.log.Debug("swap: erased page", "pid", pid, "va", va)
	return nil
}

// EraseProcess releases every live page cluster and process cluster
// reachable from pid's root entry, then tombstones the root entry.
// Tombstoned root entries are never reclaimed by resolveProcess, which
// only treats a zero PID as an available slot — see DESIGN.md.
func (s *Store) EraseProcess(pid PID) error {
	rootCluster, rootEntryIdx, head, err := s.resolveProcess(pid)
	if err != nil {
		return err
	}

	cluster := head
	buf := make([]byte, s.clusterSize)
	for cluster != 0 {
		if err := s.dev.ReadCluster(cluster, buf); err != nil {
			return fmt.Errorf("swap: reading process cluster %d: %w", cluster, err)
		}
		for i := 0; i < s.pageEntriesPerCluster; i++ {
			off := linkSize + i*pageEntrySize
			entry := decodePageEntry(buf[off : off+pageEntrySize])
			if entry.VirtualAddress == 0 {
				break
			}
			if entry.VirtualAddress == -1 {
				continue
			}
			if err := s.ReleaseCluster(entry.PageCluster); err != nil {
				return err
			}
		}
		next := readLink(buf)
		if err := s.ReleaseCluster(cluster); err != nil {
			return err
		}
		cluster = next
	}

	rootBuf := make([]byte, s.clusterSize)
	if err := s.dev.ReadCluster(rootCluster, rootBuf); err != nil {
		return fmt.Errorf("swap: reading root cluster %d: %w", rootCluster, err)
	}
	off := linkSize + rootEntryIdx*rootEntrySize
	entry := decodeRootEntry(rootBuf[off : off+rootEntrySize])
	encodeRootEntry(rootBuf[off:off+rootEntrySize], rootEntry{PID: -1, ProcessCluster: entry.ProcessCluster})
	if err := s.dev.WriteCluster(rootCluster, rootBuf); err != nil {
		return fmt.Errorf("swap: tombstoning root entry in cluster %d: %w", rootCluster, err)
	}
	s.log.Info("swap: erased process", "pid", pid)
	return nil
}

func (s *Store) zeroCluster(cn ClusterNo) error {
	buf := make([]byte, s.clusterSize)
	if err := s.dev.WriteCluster(cn, buf); err != nil {
		return fmt.Errorf("swap: zeroing cluster %d: %w", cn, err)
	}
	return nil
}

// ClusterSize reports the configured cluster size, which must equal the
// core's page size.
func (s *Store) ClusterSize() int { return s.clusterSize }
