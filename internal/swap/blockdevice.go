package swap

// ClusterNo identifies a cluster on the swap partition. Cluster 0 is
// always the first root cluster and is never placed on the freelist.
type ClusterNo uint64

// BlockDevice is the raw block device the swap store is layered over.
// It is an external collaborator: spec-wise, the core only consumes it
// through this interface. A reference file-backed implementation lives
// in pkg/blockdevice.
type BlockDevice interface {
	ReadCluster(n ClusterNo, dst []byte) error
	WriteCluster(n ClusterNo, src []byte) error
	NumClusters() ClusterNo
}
