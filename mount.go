package fatvol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/aligator/fatvol/blockdev"
	"github.com/aligator/fatvol/checkpoint"
	"github.com/golang/glog"
)

// These errors may occur while mounting a volume.
var (
	ErrNoPartition              = errors.New("no partition found")
	ErrUnsupportedPartitionType = errors.New("unsupported partition type")
	ErrInvalidBootSector        = errors.New("invalid boot sector")
	ErrReadPartitionTable       = errors.New("could not read the partition table")
	ErrReadBootSector           = errors.New("could not read the boot sector")
)

// Partition type bytes which select the FAT width.
const (
	PartitionTypeEmpty     = 0x00
	PartitionTypeFAT16     = 0x04
	PartitionTypeFAT16B    = 0x06
	PartitionTypeFAT32CHS  = 0x0B
	PartitionTypeFAT32LBA  = 0x0C
	PartitionTypeFAT16BLBA = 0x0E
)

// Partition is a record of the partition table.
type Partition struct {
	Active   bool
	Type     byte
	StartLBA uint32
	Size     uint32
}

// IsEmpty reports whether the record is unused.
func (p Partition) IsEmpty() bool {
	return p.Type == PartitionTypeEmpty
}

// fat32 classifies the partition by its type byte.
func (p Partition) fat32() (bool, error) {
	switch p.Type {
	case PartitionTypeFAT16, PartitionTypeFAT16B, PartitionTypeFAT16BLBA:
		return false, nil
	case PartitionTypeFAT32CHS, PartitionTypeFAT32LBA:
		return true, nil
	case PartitionTypeEmpty:
		return false, checkpoint.Errorf(ErrNoPartition, "partition record is empty")
	}
	return false, checkpoint.Errorf(ErrUnsupportedPartitionType, "type %#02x", p.Type)
}

// VolumeParameters describe the geometry of a mounted FAT volume.
// They are derived once at mount time.
type VolumeParameters struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	FATSize           uint32

	// FirstFATSector is the partition start plus the reserved sectors.
	FirstFATSector uint32

	// RootDirSector and RootDirSectors locate the fixed root directory region of FAT16.
	// RootDirSectors is 0 if the root directory is a cluster chain.
	RootDirSector  uint32
	RootDirSectors uint32

	// FirstDataSector is the sector of cluster 2.
	FirstDataSector uint32

	// RootCluster is the first cluster of the root directory,
	// or 0 if the root directory is the fixed FAT16 region.
	RootCluster ClusterNumber

	// TotalClusters is the number of data clusters, which bounds every cluster chain.
	TotalClusters uint32

	// FAT32 selects 32 bit FAT entries instead of 16 bit ones.
	FAT32 bool

	Label string
}

// Options configure the mount of a volume.
type Options struct {
	// Partition selects the partition table record 1-4.
	// 0 selects the first non-empty record.
	Partition int

	// MaxDepth bounds the directory nesting for recursive enumerations.
	// DefaultMaxDepth is used if it is 0.
	MaxDepth int
}

// DefaultMaxDepth is used if Options.MaxDepth is 0.
const DefaultMaxDepth = 32

// ReadPartitionTable reads and decodes the four records of the partition table in sector 0.
func ReadPartitionTable(dev blockdev.Device) ([partitionCount]Partition, error) {
	var parts [partitionCount]Partition

	sector := make([]byte, blockdev.SectorSize)
	if err := dev.ReadSectors(0, 1, sector); err != nil {
		return parts, checkpoint.Wrap(err, ErrReadPartitionTable)
	}

	if sector[signatureOffset] != 0x55 || sector[signatureOffset+1] != 0xAA {
		return parts, checkpoint.Errorf(ErrNoPartition, "missing partition sector signature, got %#02x %#02x", sector[signatureOffset], sector[signatureOffset+1])
	}

	records := make([]partitionRecord, partitionCount)
	table := sector[partitionTableOffset : partitionTableOffset+partitionCount*partitionRecordSize]
	if err := binary.Read(bytes.NewReader(table), binary.LittleEndian, records); err != nil {
		return parts, checkpoint.Wrap(err, ErrReadPartitionTable)
	}

	for i, r := range records {
		parts[i] = Partition{
			Active:   r.Active&0x80 != 0,
			Type:     r.Type,
			StartLBA: r.StartLBA,
			Size:     r.SizeInSectors,
		}
	}
	return parts, nil
}

// Mount mounts the first partition of dev.
func Mount(dev blockdev.Device) (*Volume, error) {
	return MountWithOptions(dev, Options{})
}

// MountWithOptions locates the partition selected by opts and parses its boot sector.
// Unknown partition types are rejected.
func MountWithOptions(dev blockdev.Device, opts Options) (*Volume, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Partition < 0 || opts.Partition > partitionCount {
		return nil, checkpoint.Errorf(ErrNoPartition, "partition %d does not exist", opts.Partition)
	}

	parts, err := ReadPartitionTable(dev)
	if err != nil {
		return nil, err
	}

	index, partition := selectPartition(parts, opts.Partition)
	if index < 0 {
		return nil, checkpoint.Errorf(ErrNoPartition, "all partition records are empty")
	}

	fat32, err := partition.fat32()
	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("mount: partition %d type %#02x at lba %d, %d sectors", index+1, partition.Type, partition.StartLBA, partition.Size)

	sector := make([]byte, blockdev.SectorSize)
	if err := dev.ReadSectors(partition.StartLBA, 1, sector); err != nil {
		return nil, checkpoint.Wrap(err, ErrReadBootSector)
	}

	params, err := parseBootSector(sector, partition, fat32)
	if err != nil {
		return nil, err
	}

	if glog.V(1) {
		glog.Infof("mount: fat32 %v, %d bytes/sector, %d sectors/cluster, fat at %d, data at %d, root cluster %d, %d clusters",
			params.FAT32, params.BytesPerSector, params.SectorsPerCluster, params.FirstFATSector, params.FirstDataSector,
			params.RootCluster, params.TotalClusters)
	}

	return newVolume(dev, partition, params, opts), nil
}

// selectPartition returns the requested record, or the first non-empty one if slot is 0.
// The index is -1 if nothing was found.
func selectPartition(parts [partitionCount]Partition, slot int) (int, Partition) {
	if slot > 0 {
		return slot - 1, parts[slot-1]
	}
	for i, p := range parts {
		if !p.IsEmpty() {
			return i, p
		}
	}
	return -1, Partition{}
}

// parseBootSector derives the volume parameters from the first sector of partition.
func parseBootSector(sector []byte, partition Partition, fat32 bool) (VolumeParameters, error) {
	b := bpb{}
	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &b); err != nil {
		return VolumeParameters{}, checkpoint.Wrap(err, ErrInvalidBootSector)
	}

	if !(b.BSJumpBoot[0] == 0xEB && b.BSJumpBoot[2] == 0x90) && b.BSJumpBoot[0] != 0xE9 {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "no valid jump instruction: % x", b.BSJumpBoot)
	}

	if sector[signatureOffset] != 0x55 || sector[signatureOffset+1] != 0xAA {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "missing boot sector signature")
	}

	// FAT allows 512, 1024, 2048 and 4096 but the device transfers 512 byte sectors.
	if b.BytesPerSector != blockdev.SectorSize {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "unsupported sector size %d", b.BytesPerSector)
	}

	// Sectors per cluster has to be a power of two.
	if b.SectorsPerCluster == 0 || b.SectorsPerCluster&(b.SectorsPerCluster-1) != 0 {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "invalid sectors per cluster %d", b.SectorsPerCluster)
	}

	if b.ReservedSectorCount == 0 {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "invalid reserved sector count 0")
	}

	if b.NumFATs == 0 {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "no FAT")
	}

	ext32 := fat32SpecificData{}
	if err := binary.Read(bytes.NewReader(b.FATSpecificData[:]), binary.LittleEndian, &ext32); err != nil {
		return VolumeParameters{}, checkpoint.Wrap(err, ErrInvalidBootSector)
	}

	// The 32 bit size is only used if the legacy field is zero.
	fatSize := uint32(b.FATSize16)
	if fatSize == 0 {
		fatSize = ext32.FATSize
	}
	if fatSize == 0 {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "FAT size is 0")
	}

	p := VolumeParameters{
		BytesPerSector:    b.BytesPerSector,
		SectorsPerCluster: b.SectorsPerCluster,
		ReservedSectors:   b.ReservedSectorCount,
		NumFATs:           b.NumFATs,
		FATSize:           fatSize,
		FAT32:             fat32,
	}

	p.FirstFATSector = partition.StartLBA + uint32(b.ReservedSectorCount)
	p.RootDirSector = p.FirstFATSector + uint32(b.NumFATs)*fatSize

	if fat32 {
		p.RootCluster = ClusterNumber(ext32.RootCluster)
		if ext32.BSBootSignature == extendedBootSignature {
			p.Label = trimLabel(ext32.BSVolumeLabel)
		}
	} else {
		ext16 := fat16SpecificData{}
		if err := binary.Read(bytes.NewReader(b.FATSpecificData[:]), binary.LittleEndian, &ext16); err != nil {
			return VolumeParameters{}, checkpoint.Wrap(err, ErrInvalidBootSector)
		}
		if ext16.BSBootSignature == extendedBootSignature {
			p.Label = trimLabel(ext16.BSVolumeLabel)
		}

		// A FAT16 root is a fixed region after the FATs. Without root entries
		// the root directory is the chain at cluster 2.
		p.RootDirSectors = (uint32(b.RootEntryCount)*entrySize + uint32(b.BytesPerSector) - 1) / uint32(b.BytesPerSector)
		if p.RootDirSectors == 0 {
			p.RootCluster = 2
		}
	}

	p.FirstDataSector = p.RootDirSector + p.RootDirSectors

	totalSectors := uint32(b.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = b.TotalSectors32
	}
	if totalSectors == 0 || (partition.Size != 0 && totalSectors > partition.Size) {
		totalSectors = partition.Size
	}

	metaSectors := p.FirstDataSector - partition.StartLBA
	if totalSectors <= metaSectors {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "volume of %d sectors has no data region after %d sectors", totalSectors, metaSectors)
	}
	p.TotalClusters = (totalSectors - metaSectors) / uint32(p.SectorsPerCluster)

	// The FAT cannot describe more clusters than it has entries for.
	entryWidth := uint32(2)
	if fat32 {
		entryWidth = 4
	}
	if fatEntries := fatSize*uint32(b.BytesPerSector)/entryWidth - 2; fatEntries < p.TotalClusters {
		p.TotalClusters = fatEntries
	}

	if fat32 && (p.RootCluster < 2 || uint32(p.RootCluster)-2 >= p.TotalClusters) {
		return VolumeParameters{}, checkpoint.Errorf(ErrInvalidBootSector, "root cluster %d out of range", p.RootCluster)
	}

	return p, nil
}

func trimLabel(label [11]byte) string {
	l := strings.TrimRight(string(label[:]), " \x00")
	if l == "NO NAME" {
		return ""
	}
	return l
}
