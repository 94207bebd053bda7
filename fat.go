package fatvol

import (
	"encoding/binary"
	"errors"

	"github.com/aligator/fatvol/blockdev"
	"github.com/aligator/fatvol/checkpoint"
	"github.com/golang/glog"
)

// ErrReadFAT is returned if a sector of the FAT could not be read.
var ErrReadFAT = errors.New("could not read the FAT")

// fatCacheLine buffers the FAT sector read last.
type fatCacheLine struct {
	valid  bool
	sector uint32
	buffer [blockdev.SectorSize]byte
}

// fatEntry is a raw FAT value masked to the FAT width.
type fatEntry struct {
	value uint32
	fat32 bool
}

// reservedBase is the start of the range of special values at the top of the FAT width.
func (e fatEntry) reservedBase() uint32 {
	if e.fat32 {
		return 0x0FFFFFF0
	}
	return 0xFFF0
}

// IsFree reports an unallocated cluster.
func (e fatEntry) IsFree() bool {
	return e.value == 0
}

// IsReserved reports the value 1 and the reserved range just below the bad cluster marker.
func (e fatEntry) IsReserved() bool {
	return e.value == 1 || (e.value >= e.reservedBase() && e.value < e.reservedBase()+7)
}

// IsBad reports the bad cluster marker.
func (e fatEntry) IsBad() bool {
	return e.value == e.reservedBase()+7
}

// IsEOF reports the end of a cluster chain.
func (e fatEntry) IsEOF() bool {
	return e.value >= e.reservedBase()+8
}

// IsNextCluster reports whether the entry points to a successor.
func (e fatEntry) IsNextCluster() bool {
	return e.value >= 2 && e.value < e.reservedBase()
}

// NextCluster returns the successor of current in its cluster chain,
// or 0 if the chain ends there.
func (v *Volume) NextCluster(current ClusterNumber) (ClusterNumber, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.nextCluster(current)
}

func (v *Volume) nextCluster(current ClusterNumber) (ClusterNumber, error) {
	entry, err := v.readFATEntry(current)
	if err != nil {
		return 0, err
	}

	if !entry.IsNextCluster() {
		// End of chain, free, bad and reserved values all end the chain.
		return 0, nil
	}
	return ClusterNumber(entry.value), nil
}

// readFATEntry reads the FAT entry of cluster c through the cache line.
func (v *Volume) readFATEntry(c ClusterNumber) (fatEntry, error) {
	width := uint32(2)
	if v.params.FAT32 {
		width = 4
	}

	offset := uint32(c) * width
	bps := uint32(v.params.BytesPerSector)
	if offset/bps >= v.params.FATSize {
		return fatEntry{}, checkpoint.Errorf(ErrCorruptChain, "cluster %d beyond the FAT", c)
	}

	sector := v.params.FirstFATSector + offset/bps
	inSector := offset % bps

	if !v.fat.valid || v.fat.sector != sector {
		if glog.V(2) {
			glog.Infof("fat: loading sector %d for cluster %d", sector, c)
		}

		// The line is invalid until the read succeeded.
		v.fat.valid = false
		if err := v.dev.ReadSectors(sector, 1, v.fat.buffer[:]); err != nil {
			return fatEntry{}, checkpoint.Wrap(err, ErrReadFAT)
		}
		v.fat.sector = sector
		v.fat.valid = true
	}

	if v.params.FAT32 {
		return fatEntry{
			value: binary.LittleEndian.Uint32(v.fat.buffer[inSector:]) & 0x0FFFFFFF,
			fat32: true,
		}, nil
	}
	return fatEntry{
		value: uint32(binary.LittleEndian.Uint16(v.fat.buffer[inSector:])),
	}, nil
}
