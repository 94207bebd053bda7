package fatvol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/aligator/fatvol/blockdev"
	"github.com/aligator/fatvol/checkpoint"
	"github.com/golang/glog"
	"golang.org/x/text/encoding/charmap"
)

// These errors may occur while reading directories.
var (
	ErrReadDir          = errors.New("could not read the directory")
	ErrOrphanedLongName = errors.New("long file name without short entry")
	ErrTooDeep          = errors.New("directory nesting too deep")
)

// pathSeparator is appended to directory names in Entry.Path.
const pathSeparator = "/"

// Entry is a file or directory found in a directory.
type Entry struct {
	// Cluster is the first cluster of the content, 0 for empty files.
	Cluster ClusterNumber
	Size    uint32

	// Name is the long file name if there is one, else the 8.3 name.
	Name      string
	ShortName string

	// Path is the directory path of the entry relative to the enumeration start.
	// It is empty or ends with a separator.
	Path string

	Attr    Attribute
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Attr&AttrDirectory != 0
}

// isDotEntry reports the "." and ".." entries of subdirectories.
func (e Entry) isDotEntry() bool {
	return e.ShortName == "." || e.ShortName == ".."
}

// scanSlots calls fn with every 32 byte slot of the directory at start, one sector at a time,
// until fn returns true. A start of 0 denotes the fixed FAT16 root region.
func (v *Volume) scanSlots(start ClusterNumber, fn func(slot []byte) bool) error {
	buf := make([]byte, blockdev.SectorSize)

	sector := func(lba uint32) (bool, error) {
		if err := v.dev.ReadSectors(lba, 1, buf); err != nil {
			return true, checkpoint.Wrap(err, ErrReadDir)
		}
		for off := 0; off < len(buf); off += entrySize {
			if fn(buf[off : off+entrySize]) {
				return true, nil
			}
		}
		return false, nil
	}

	if start == 0 {
		if v.params.RootDirSectors == 0 {
			return checkpoint.Errorf(ErrCorruptChain, "directory at cluster 0 on a volume without root region")
		}
		for i := uint32(0); i < v.params.RootDirSectors; i++ {
			if stop, err := sector(v.params.RootDirSector + i); err != nil || stop {
				return err
			}
		}
		return nil
	}

	return v.walkChain(start, func(c ClusterNumber) (bool, error) {
		first := v.ClusterToSector(c)
		for i := uint32(0); i < uint32(v.params.SectorsPerCluster); i++ {
			if stop, err := sector(first + i); err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	})
}

// scanDir decodes the entries of the directory at start and calls fn for everything
// except deleted entries and volume labels, until fn returns true.
func (v *Volume) scanDir(start ClusterNumber, fn func(e Entry) (bool, error)) error {
	var (
		lfn     longName
		stopped bool
		fnErr   error
	)

	err := v.scanSlots(start, func(slot []byte) bool {
		switch slot[0] {
		case entryEnd:
			return true
		case entryDeleted:
			lfn.reset()
			return false
		}

		if Attribute(slot[11])&attrLongNameMask == AttrLongName {
			fragment := longFilenameEntry{}
			// The slot has exactly the size of the struct.
			_ = binary.Read(bytes.NewReader(slot), binary.LittleEndian, &fragment)
			lfn.add(fragment)
			return false
		}

		header := entryHeader{}
		_ = binary.Read(bytes.NewReader(slot), binary.LittleEndian, &header)

		longName, hasLongName := lfn.take(header.Name)
		if header.Attribute&AttrVolumeLabel != 0 {
			return false
		}

		e := decodeEntry(header)
		if hasLongName {
			e.Name = longName
		}

		stopped, fnErr = fn(e)
		return stopped || fnErr != nil
	})
	if err != nil {
		return err
	}
	if fnErr != nil {
		return fnErr
	}

	if !stopped && lfn.pending() {
		return checkpoint.Errorf(ErrOrphanedLongName, "directory at cluster %d ends within a long file name", start)
	}
	return nil
}

// decodeEntry converts a short directory entry.
func decodeEntry(h entryHeader) Entry {
	short := h.Name
	if short[0] == entryKanji {
		short[0] = entryDeleted
	}

	base := decodeOEM(bytes.TrimRight(short[:8], " "))
	ext := decodeOEM(bytes.TrimRight(short[8:], " "))
	if h.NTReserved&ntLowerBase != 0 {
		base = strings.ToLower(base)
	}
	if h.NTReserved&ntLowerExtension != 0 {
		ext = strings.ToLower(ext)
	}

	name := base
	if ext != "" {
		name += "." + ext
	}

	return Entry{
		Cluster:   ClusterNumber(uint32(h.FirstClusterHI)<<16 | uint32(h.FirstClusterLO)),
		Size:      h.FileSize,
		Name:      name,
		ShortName: name,
		Attr:      h.Attribute,
		ModTime:   DecodeTimestamp(h.WriteDate, h.WriteTime),
	}
}

// decodeOEM decodes a short name from the OEM code page.
func decodeOEM(b []byte) string {
	s, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// cursor is the state of one GetEntry call.
type cursor struct {
	ordinal uint32
	seen    uint32
}

// GetEntry returns the file with the given zero based ordinal among all files reachable from start.
// Files in subdirectories are counted in place of their directory, which itself is not counted.
// The Path of the returned entry names the subdirectories leading to it.
// ok is false if there are not that many files.
func (v *Volume) GetEntry(start ClusterNumber, ordinal uint16) (e Entry, ok bool, err error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	c := &cursor{ordinal: uint32(ordinal)}
	return v.find(c, start, "", 0)
}

func (v *Volume) find(c *cursor, start ClusterNumber, path string, depth int) (Entry, bool, error) {
	if glog.V(2) {
		glog.Infof("dir: scanning %q at cluster %d, %d files seen", path, start, c.seen)
	}

	var (
		found Entry
		ok    bool
	)
	err := v.scanDir(start, func(e Entry) (bool, error) {
		if e.isDotEntry() {
			return false, nil
		}

		if e.IsDir() {
			if depth+1 > v.maxDepth {
				return true, checkpoint.Errorf(ErrTooDeep, "%q exceeds %d levels", path+e.Name, v.maxDepth)
			}
			if !v.isDataCluster(e.Cluster) {
				return true, checkpoint.Errorf(ErrCorruptChain, "directory %q starts at cluster %d", path+e.Name, e.Cluster)
			}

			var err error
			found, ok, err = v.find(c, e.Cluster, path+e.Name+pathSeparator, depth+1)
			return ok, err
		}

		if c.seen == c.ordinal {
			found, ok = e, true
			found.Path = path
			return true, nil
		}
		c.seen++
		return false, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return found, ok, nil
}

// ReadDir returns the entries of the directory at cluster, without "." and "..".
func (v *Volume) ReadDir(cluster ClusterNumber) ([]Entry, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.readDirLocked(cluster)
}

func (v *Volume) readDir(cluster ClusterNumber) ([]Entry, error) {
	return v.ReadDir(cluster)
}

func (v *Volume) readDirLocked(cluster ClusterNumber) ([]Entry, error) {
	var entries []Entry
	err := v.scanDir(cluster, func(e Entry) (bool, error) {
		if !e.isDotEntry() {
			entries = append(entries, e)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
