// File model contains the structs which match the direct structures of the partition table and the FAT filesystem.

package fatvol

// Attribute is the attribute bitmask of a directory entry.
type Attribute byte

const (
	AttrNormal      Attribute = 0x00
	AttrReadOnly    Attribute = 0x01
	AttrHidden      Attribute = 0x02
	AttrSystem      Attribute = 0x04
	AttrVolumeLabel Attribute = 0x08
	AttrDirectory   Attribute = 0x10
	AttrArchive     Attribute = 0x20
	AttrLongName              = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeLabel

	// attrLongNameMask covers the bits which identify a long file name fragment.
	attrLongNameMask = AttrLongName | AttrDirectory | AttrArchive
)

// Markers in the first byte of a directory entry name.
const (
	entryEnd     = 0x00
	entryKanji   = 0x05 // stands for a real 0xE5
	entryDeleted = 0xE5
)

// Layout of the partition sector.
const (
	partitionTableOffset = 446
	partitionRecordSize  = 16
	partitionCount       = 4
	signatureOffset      = 510
)

// entrySize is the size of every directory entry and long file name fragment.
const entrySize = 32

// partitionRecord is one of the four records of the partition table.
type partitionRecord struct {
	Active         byte
	StartHead      byte
	StartCylSector uint16
	Type           byte
	EndHead        byte
	EndCylSector   uint16
	StartLBA       uint32
	SizeInSectors  uint32
}

// bpb is the boot sector up to the BIOS parameter block extension.
type bpb struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
}

type fat16SpecificData struct {
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

type fat32SpecificData struct {
	FATSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

// extendedBootSignature marks the presence of volume id, label and type fields.
const extendedBootSignature = 0x29

// entryHeader is a short (8.3) directory entry.
type entryHeader struct {
	Name            [11]byte
	Attribute       Attribute
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// Flags in entryHeader.NTReserved for names stored in upper case but displayed in lower case.
const (
	ntLowerBase      = 0x08
	ntLowerExtension = 0x10
)

// longFilenameEntry is a VFAT long file name fragment holding 13 UCS-2 characters.
type longFilenameEntry struct {
	Sequence  byte
	First     [5]uint16
	Attribute Attribute
	EntryType byte
	Checksum  byte
	Second    [6]uint16
	Zero      [2]byte
	Third     [2]uint16
}

const (
	// lfnLast is set in the sequence of the fragment stored first, holding the end of the name.
	lfnLast = 0x40
	// lfnOrdinalMask extracts the ordinal from the sequence.
	lfnOrdinalMask = 0x1F
	// lfnCharsPerEntry is the number of characters in each fragment.
	lfnCharsPerEntry = 13
	// lfnMaxFragments is the highest ordinal a name of 255 characters needs.
	lfnMaxFragments = 20
)
