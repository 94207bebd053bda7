package fatvol

import (
	"errors"
	"sync"

	"github.com/aligator/fatvol/blockdev"
	"github.com/aligator/fatvol/checkpoint"
)

// These errors may occur while walking the volume.
var (
	ErrCorruptChain = errors.New("corrupt cluster chain")
	ErrReadCluster  = errors.New("could not read cluster")
)

// ClusterNumber addresses a data cluster. Valid data clusters start at 2,
// 0 stands for "no cluster".
type ClusterNumber uint32

// Volume is a mounted FAT16 or FAT32 volume.
// It is safe for concurrent use, calls are serialized.
type Volume struct {
	lock sync.Mutex

	dev       blockdev.Device
	partition Partition
	params    VolumeParameters
	maxDepth  int

	fat fatCacheLine
}

func newVolume(dev blockdev.Device, partition Partition, params VolumeParameters, opts Options) *Volume {
	return &Volume{
		dev:       dev,
		partition: partition,
		params:    params,
		maxDepth:  opts.MaxDepth,
	}
}

// Parameters returns the geometry of the volume.
func (v *Volume) Parameters() VolumeParameters {
	return v.params
}

// Partition returns the partition record the volume was mounted from.
func (v *Volume) Partition() Partition {
	return v.partition
}

// Root returns the locator of the root directory to pass to GetEntry and ReadDir.
// It is 0 for the fixed root region of FAT16.
func (v *Volume) Root() ClusterNumber {
	return v.params.RootCluster
}

// Label returns the volume label of the boot sector.
func (v *Volume) Label() string {
	return v.params.Label
}

// ClusterToSector returns the first sector of the cluster c, which must be at least 2.
func (v *Volume) ClusterToSector(c ClusterNumber) uint32 {
	return uint32(c-2)*uint32(v.params.SectorsPerCluster) + v.params.FirstDataSector
}

// clusterSize is the size of a cluster in bytes.
func (v *Volume) clusterSize() int64 {
	return int64(v.params.SectorsPerCluster) * int64(v.params.BytesPerSector)
}

// isDataCluster reports whether c addresses a cluster of the data region.
func (v *Volume) isDataCluster(c ClusterNumber) bool {
	return c >= 2 && uint32(c)-2 < v.params.TotalClusters
}

// walkChain calls fn for every cluster of the chain starting at start until fn returns true or the chain ends.
// Chains longer than the volume has clusters are reported as ErrCorruptChain.
func (v *Volume) walkChain(start ClusterNumber, fn func(c ClusterNumber) (bool, error)) error {
	var visited uint32
	for c := start; c != 0; visited++ {
		if visited >= v.params.TotalClusters {
			return checkpoint.Errorf(ErrCorruptChain, "chain starting at cluster %d exceeds %d clusters", start, v.params.TotalClusters)
		}
		if !v.isDataCluster(c) {
			return checkpoint.Errorf(ErrCorruptChain, "cluster %d outside of the data region", c)
		}

		stop, err := fn(c)
		if err != nil || stop {
			return err
		}

		c, err = v.nextCluster(c)
		if err != nil {
			return err
		}
	}
	return nil
}

// readCluster reads the whole cluster c into buf.
func (v *Volume) readCluster(c ClusterNumber, buf []byte) error {
	err := v.dev.ReadSectors(v.ClusterToSector(c), uint16(v.params.SectorsPerCluster), buf)
	return checkpoint.Wrap(err, ErrReadCluster)
}
