package fatvol

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/aligator/fatvol/blockdev"
)

// imageLayout describes a synthetic partitioned FAT volume.
type imageLayout struct {
	fat32             bool
	partitionType     byte
	startLBA          uint32
	sectors           uint32
	sectorsPerCluster uint8
	reserved          uint16
	numFATs           uint8
	fatSectors        uint32

	// rootEntries sizes the fixed root region of FAT16.
	rootEntries uint16
	// rootCluster is the root directory of FAT32.
	rootCluster uint32

	label string
}

// fat16Layout is a small FAT16 volume with a fixed root region of one sector.
func fat16Layout() imageLayout {
	return imageLayout{
		partitionType:     PartitionTypeFAT16B,
		startLBA:          1,
		sectors:           64,
		sectorsPerCluster: 1,
		reserved:          1,
		numFATs:           1,
		fatSectors:        1,
		rootEntries:       16,
	}
}

// fat32Layout is a small FAT32 volume with the root directory at cluster 2.
func fat32Layout() imageLayout {
	return imageLayout{
		fat32:             true,
		partitionType:     PartitionTypeFAT32LBA,
		startLBA:          1,
		sectors:           128,
		sectorsPerCluster: 1,
		reserved:          2,
		numFATs:           2,
		fatSectors:        1,
		rootCluster:       2,
	}
}

// testImage is a disk image built in memory.
type testImage struct {
	layout imageLayout
	data   []byte
}

func newTestImage(t *testing.T, l imageLayout) *testImage {
	t.Helper()

	img := &testImage{
		layout: l,
		data:   make([]byte, int(l.startLBA+l.sectors)*blockdev.SectorSize),
	}

	// Partition table
	record := img.data[partitionTableOffset:]
	record[0] = 0x80
	record[4] = l.partitionType
	binary.LittleEndian.PutUint32(record[8:], l.startLBA)
	binary.LittleEndian.PutUint32(record[12:], l.sectors)
	img.data[signatureOffset] = 0x55
	img.data[signatureOffset+1] = 0xAA

	// Boot sector
	boot := img.sector(l.startLBA)
	copy(boot, []byte{0xEB, 0x3C, 0x90})
	copy(boot[3:], "FATVOL  ")
	binary.LittleEndian.PutUint16(boot[11:], blockdev.SectorSize)
	boot[13] = l.sectorsPerCluster
	binary.LittleEndian.PutUint16(boot[14:], l.reserved)
	boot[16] = l.numFATs
	binary.LittleEndian.PutUint16(boot[17:], l.rootEntries)
	boot[21] = 0xF8
	if l.sectors <= 0xFFFF {
		binary.LittleEndian.PutUint16(boot[19:], uint16(l.sectors))
	} else {
		binary.LittleEndian.PutUint32(boot[32:], l.sectors)
	}

	label := []byte("NO NAME    ")
	if l.label != "" {
		label = []byte(l.label + "           ")[:11]
	}
	if l.fat32 {
		binary.LittleEndian.PutUint32(boot[36:], l.fatSectors)
		binary.LittleEndian.PutUint32(boot[44:], l.rootCluster)
		boot[66] = extendedBootSignature
		copy(boot[71:], label)
		copy(boot[82:], "FAT32   ")
	} else {
		binary.LittleEndian.PutUint16(boot[22:], uint16(l.fatSectors))
		boot[38] = extendedBootSignature
		copy(boot[43:], label)
		copy(boot[54:], "FAT16   ")
	}
	boot[signatureOffset] = 0x55
	boot[signatureOffset+1] = 0xAA

	// Media descriptor and reserved entries.
	if l.fat32 {
		img.setFAT(0, 0x0FFFFFF8)
		img.setFAT(1, 0x0FFFFFFF)
		img.chain(l.rootCluster)
	} else {
		img.setFAT(0, 0xFFF8)
		img.setFAT(1, 0xFFFF)
	}
	return img
}

func (img *testImage) sector(lba uint32) []byte {
	off := int(lba) * blockdev.SectorSize
	return img.data[off : off+blockdev.SectorSize]
}

func (img *testImage) firstFATSector() uint32 {
	return img.layout.startLBA + uint32(img.layout.reserved)
}

func (img *testImage) rootSector() uint32 {
	return img.firstFATSector() + uint32(img.layout.numFATs)*img.layout.fatSectors
}

func (img *testImage) rootSectors() uint32 {
	return (uint32(img.layout.rootEntries)*entrySize + blockdev.SectorSize - 1) / blockdev.SectorSize
}

func (img *testImage) clusterSector(c uint32) uint32 {
	return img.rootSector() + img.rootSectors() + (c-2)*uint32(img.layout.sectorsPerCluster)
}

// cluster returns the bytes of cluster c.
func (img *testImage) cluster(c uint32) []byte {
	off := int(img.clusterSector(c)) * blockdev.SectorSize
	return img.data[off : off+int(img.layout.sectorsPerCluster)*blockdev.SectorSize]
}

// root returns the bytes of the fixed FAT16 root region.
func (img *testImage) root() []byte {
	off := int(img.rootSector()) * blockdev.SectorSize
	return img.data[off : off+int(img.rootSectors())*blockdev.SectorSize]
}

// setFAT stores value for cluster c in every FAT copy.
func (img *testImage) setFAT(c uint32, value uint32) {
	for i := uint32(0); i < uint32(img.layout.numFATs); i++ {
		fat := img.data[int(img.firstFATSector()+i*img.layout.fatSectors)*blockdev.SectorSize:]
		if img.layout.fat32 {
			binary.LittleEndian.PutUint32(fat[c*4:], value)
		} else {
			binary.LittleEndian.PutUint16(fat[c*2:], uint16(value))
		}
	}
}

// chain links the clusters in order and terminates the chain.
func (img *testImage) chain(clusters ...uint32) {
	for i, c := range clusters {
		if i+1 < len(clusters) {
			img.setFAT(c, clusters[i+1])
			continue
		}
		if img.layout.fat32 {
			img.setFAT(c, 0x0FFFFFFF)
		} else {
			img.setFAT(c, 0xFFFF)
		}
	}
}

// writeFile stores content in the given clusters and links them.
func (img *testImage) writeFile(content []byte, clusters ...uint32) {
	size := int(img.layout.sectorsPerCluster) * blockdev.SectorSize
	for i, c := range clusters {
		start := i * size
		if start >= len(content) {
			break
		}
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		copy(img.cluster(c), content[start:end])
	}
	img.chain(clusters...)
}

// writeSlots writes consecutive 32 byte slots to dir.
func writeSlots(dir []byte, slots ...[]byte) {
	for i, s := range slots {
		copy(dir[i*entrySize:], s)
	}
}

func (img *testImage) device() blockdev.Device {
	return blockdev.NewImageReaderAt(bytes.NewReader(img.data), int64(len(img.data)))
}

func (img *testImage) mount(t *testing.T) *Volume {
	t.Helper()

	vol, err := Mount(img.device())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return vol
}

// shortName pads an 8.3 name to the directory entry format.
func shortName(base, ext string) [11]byte {
	var name [11]byte
	copy(name[:], "           ")
	copy(name[:8], base)
	copy(name[8:], ext)
	return name
}

// shortEntry encodes a short directory entry.
func shortEntry(name [11]byte, attr Attribute, cluster uint32, size uint32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, entryHeader{
		Name:           name,
		Attribute:      attr,
		FirstClusterHI: uint16(cluster >> 16),
		FirstClusterLO: uint16(cluster),
		WriteTime:      0x5401,
		WriteDate:      0x0021,
		FileSize:       size,
	})
	return buf.Bytes()
}

// lfnEntries encodes the long name fragments for name belonging to the short entry short,
// in on-disk order starting with the last fragment.
func lfnEntries(name string, short [11]byte) [][]byte {
	chars := utf16.Encode([]rune(name))
	fragments := (len(chars) + lfnCharsPerEntry - 1) / lfnCharsPerEntry

	padded := make([]uint16, fragments*lfnCharsPerEntry)
	for i := range padded {
		padded[i] = 0xFFFF
	}
	copy(padded, chars)
	if len(chars) < len(padded) {
		padded[len(chars)] = 0x0000
	}

	sum := shortNameChecksum(short)
	slots := make([][]byte, 0, fragments)
	for ordinal := fragments; ordinal >= 1; ordinal-- {
		part := padded[(ordinal-1)*lfnCharsPerEntry:]
		e := longFilenameEntry{
			Sequence:  byte(ordinal),
			Attribute: AttrLongName,
			Checksum:  sum,
		}
		if ordinal == fragments {
			e.Sequence |= lfnLast
		}
		copy(e.First[:], part[0:5])
		copy(e.Second[:], part[5:11])
		copy(e.Third[:], part[11:13])

		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.LittleEndian, e)
		slots = append(slots, buf.Bytes())
	}
	return slots
}

// withLongName returns the fragments of name followed by the short entry.
func withLongName(name string, short [11]byte, attr Attribute, cluster uint32, size uint32) [][]byte {
	return append(lfnEntries(name, short), shortEntry(short, attr, cluster, size))
}

// dotEntries are the first two slots of a subdirectory.
func dotEntries(self, parent uint32) [][]byte {
	return [][]byte{
		shortEntry(shortName(".", ""), AttrDirectory, self, 0),
		shortEntry(shortName("..", ""), AttrDirectory, parent, 0),
	}
}

func concatSlots(groups ...[][]byte) [][]byte {
	var all [][]byte
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// Content of the sample volume.
var (
	sampleReadme = func() []byte {
		var b bytes.Buffer
		for i := 0; b.Len() < 1300; i++ {
			b.WriteString("line of the readme ")
			b.WriteByte(byte('a' + i%26))
			b.WriteByte('\n')
		}
		return b.Bytes()[:1300]
	}()
	sampleHello = []byte("Hello World!")
	sampleNotes = []byte("hello notes")
)

const sampleLongName = "HelloWorldThisIsALoongFileName.txt"

// newSampleImage builds a FAT32 volume with
//  README.MD                          1300 bytes in clusters 3, 9, 5
//  HelloWorldThisIsALoongFileName.txt in cluster 6
//  docs/notes.txt                     in cluster 8
//  docs/EMPTY                         without cluster
func newSampleImage(t *testing.T) *testImage {
	t.Helper()

	l := fat32Layout()
	l.label = "SAMPLE"
	img := newTestImage(t, l)

	writeSlots(img.cluster(2), concatSlots(
		[][]byte{shortEntry(shortName("SAMPLE", ""), AttrVolumeLabel, 0, 0)},
		[][]byte{shortEntry(shortName("README", "MD"), AttrArchive, 3, uint32(len(sampleReadme)))},
		withLongName(sampleLongName, shortName("HELLOW~1", "TXT"), AttrArchive, 6, uint32(len(sampleHello))),
		withLongName("docs", shortName("DOCS", ""), AttrDirectory, 7, 0),
	)...)

	img.writeFile(sampleReadme, 3, 9, 5)
	img.writeFile(sampleHello, 6)

	writeSlots(img.cluster(7), concatSlots(
		dotEntries(7, 0),
		withLongName("notes.txt", shortName("NOTES", "TXT"), AttrArchive, 8, uint32(len(sampleNotes))),
		[][]byte{shortEntry(shortName("EMPTY", ""), AttrArchive, 0, 0)},
	)...)
	img.chain(7)
	img.writeFile(sampleNotes, 8)

	return img
}
