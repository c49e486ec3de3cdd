// Package blockdevice provides a reference file-backed implementation
// of swap.BlockDevice, the way the teacher's swap.go backs its swap
// entries with os.OpenFile/WriteAt/ReadAt against a single file on disk.
// The core treats the block device as an external collaborator; this is
// the default a deployer plugs in.
package blockdevice

import (
	"fmt"
	"os"

	"github.com/losvmkernel/vmcore/internal/swap"
)

// File is a swap.BlockDevice backed by a single regular file, divided
// into fixed-size clusters.
type File struct {
	f           *os.File
	clusterSize int
	numClusters swap.ClusterNo
}

// Open opens (creating if necessary) path as a block device of
// numClusters clusters of clusterSize bytes each, growing the
// underlying file to the full size up front.
func Open(path string, clusterSize int, numClusters swap.ClusterNo) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("blockdevice: opening %q: %w", path, err)
	}

	total := int64(clusterSize) * int64(numClusters)
	if err := f.Truncate(total); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdevice: sizing %q to %d bytes: %w", path, total, err)
	}

	return &File{f: f, clusterSize: clusterSize, numClusters: numClusters}, nil
}

// ReadCluster reads cluster n into dst, which must be at least
// clusterSize bytes.
func (d *File) ReadCluster(n swap.ClusterNo, dst []byte) error {
	offset := int64(n) * int64(d.clusterSize)
	_, err := d.f.ReadAt(dst[:d.clusterSize], offset)
	if err != nil {
		return fmt.Errorf("blockdevice: reading cluster %d: %w", n, err)
	}
	return nil
}

// WriteCluster writes src to cluster n.
func (d *File) WriteCluster(n swap.ClusterNo, src []byte) error {
	offset := int64(n) * int64(d.clusterSize)
	_, err := d.f.WriteAt(src[:d.clusterSize], offset)
	if err != nil {
		return fmt.Errorf("blockdevice: writing cluster %d: %w", n, err)
	}
	return nil
}

// NumClusters reports the fixed cluster count the device was opened with.
func (d *File) NumClusters() swap.ClusterNo { return d.numClusters }

// Close closes the underlying file.
func (d *File) Close() error { return d.f.Close() }
