package fatvol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/fatvol/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
)

// fatFileFs provides all methods needed from a volume for File.
// It mainly exists to be able to mock the Volume in tests.
// Generated mock using mockgen:
//  mockgen -source=file.go -destination=file_mock.go -package fatvol
type fatFileFs interface {
	readFileAt(cluster ClusterNumber, fileSize int64, offset int64, readSize int64) ([]byte, error)
	readDir(cluster ClusterNumber) ([]Entry, error)
}

var _ afero.File = (*File)(nil)

// File is an open file or directory of a Volume. It cannot be written.
type File struct {
	fs    fatFileFs
	path  string
	entry Entry

	offset int64
	closed bool
}

func (f *File) checkOpen(op string) error {
	if f.closed {
		return &os.PathError{Op: op, Path: f.path, Err: os.ErrClosed}
	}
	return nil
}

func (f *File) Close() error {
	if err := f.checkOpen("close"); err != nil {
		return err
	}
	f.closed = true
	f.fs = nil
	f.offset = 0
	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if err := f.checkOpen("read"); err != nil {
		return 0, err
	}
	if f.entry.IsDir() {
		return 0, &os.PathError{Op: "read", Path: f.path, Err: syscall.EISDIR}
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Reading a file if the size has been already reached, makes no sense.
	if int64(f.entry.Size) <= f.offset {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry.Cluster, int64(f.entry.Size), f.offset, int64(len(p)))
	n = copy(p, data)
	f.offset += int64(n)

	if err == io.EOF && n > 0 {
		// The next call reports io.EOF.
		return n, nil
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if err := f.checkOpen("read"); err != nil {
		return 0, err
	}
	if f.entry.IsDir() {
		return 0, &os.PathError{Op: "read", Path: f.path, Err: syscall.EISDIR}
	}
	if off < 0 {
		return 0, &os.PathError{Op: "readat", Path: f.path, Err: syscall.EINVAL}
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Reading over the end makes no sense.
	if int64(f.entry.Size) <= off {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry.Cluster, int64(f.entry.Size), off, int64(len(p)))
	n = copy(p, data)

	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read operations except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.checkOpen("seek"); err != nil {
		return 0, err
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = int64(f.entry.Size) + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 || offset > int64(f.entry.Size) {
		return 0, checkpoint.Wrap(afero.ErrOutOfRange, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	return 0, &os.PathError{Op: "write", Path: f.path, Err: syscall.EROFS}
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, &os.PathError{Op: "write", Path: f.path, Err: syscall.EROFS}
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

func (f *File) Truncate(size int64) error {
	return &os.PathError{Op: "truncate", Path: f.path, Err: syscall.EROFS}
}

// Sync has nothing to flush on a read-only volume.
func (f *File) Sync() error {
	return f.checkOpen("sync")
}

func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of a directory.
// For count > 0 at most count entries are returned and io.EOF once there are no more.
// For count <= 0 all remaining entries are returned.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if err := f.checkOpen("readdir"); err != nil {
		return nil, err
	}
	if !f.entry.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: f.path, Err: syscall.ENOTDIR}
	}

	// The offset of a directory counts entries.
	content, err := f.fs.readDir(f.entry.Cluster)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	if f.offset > int64(len(content)) {
		f.offset = int64(len(content))
	}
	content = content[f.offset:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if len(content) > count {
			content = content[:count]
		}
	}
	f.offset += int64(len(content))

	result := make([]os.FileInfo, len(content))
	for i := range content {
		result[i] = content[i].FileInfo()
	}
	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}
	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if err := f.checkOpen("stat"); err != nil {
		return nil, err
	}
	return f.entry.FileInfo(), nil
}
