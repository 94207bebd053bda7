package fatvol

import (
	"os"
	"time"
)

// FileInfo returns an os.FileInfo view of the entry.
func (e Entry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry Entry
}

func (i entryFileInfo) Name() string {
	return i.entry.Name
}

func (i entryFileInfo) Size() int64 {
	if i.IsDir() {
		return 0
	}
	return int64(i.entry.Size)
}

// Mode reports read-only permissions as the volume cannot be written.
func (i entryFileInfo) Mode() os.FileMode {
	if i.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

func (i entryFileInfo) ModTime() time.Time {
	return i.entry.ModTime
}

func (i entryFileInfo) IsDir() bool {
	return i.entry.IsDir()
}

// Sys returns the Entry.
func (i entryFileInfo) Sys() interface{} {
	return i.entry
}
