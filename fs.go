package fatvol

import (
	"os"
	"syscall"
	"time"

	"github.com/aligator/fatvol/blockdev"
	"github.com/spf13/afero"
)

var _ afero.Fs = (*Fs)(nil)

// Fs is a read-only afero.Fs over a mounted Volume.
// Errors of missing files wrap os.ErrNotExist and have to be checked with errors.Is.
type Fs struct {
	vol *Volume
}

// New mounts the first partition of dev and returns a read-only afero.Fs for it.
func New(dev blockdev.Device) (*Fs, error) {
	vol, err := Mount(dev)
	if err != nil {
		return nil, err
	}
	return NewFs(vol), nil
}

// NewFs returns a read-only afero.Fs for an already mounted Volume.
func NewFs(vol *Volume) *Fs {
	return &Fs{vol: vol}
}

// Volume returns the underlying volume.
func (fs *Fs) Volume() *Volume {
	return fs.vol
}

func (fs *Fs) lookup(op, name string) (Entry, error) {
	entry, err := fs.vol.Lookup(name)
	if err != nil {
		return Entry{}, &os.PathError{Op: op, Path: name, Err: err}
	}
	if entry.Name == "" {
		entry.Name = "/"
	}
	return entry, nil
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: syscall.EROFS}
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return readOnly("mkdir", path)
}

func (fs *Fs) Open(name string) (afero.File, error) {
	entry, err := fs.lookup("open", name)
	if err != nil {
		return nil, err
	}

	return &File{
		fs:    fs.vol,
		path:  name,
		entry: entry,
	}, nil
}

// OpenFile opens name for reading. Any flag which would modify the volume is rejected.
func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, readOnly("open", name)
	}
	return fs.Open(name)
}

func (fs *Fs) Remove(name string) error {
	return readOnly("remove", name)
}

func (fs *Fs) RemoveAll(path string) error {
	return readOnly("remove", path)
}

func (fs *Fs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EROFS}
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	entry, err := fs.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return entry.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "fatvol"
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}
