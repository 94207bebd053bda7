package blockdev

import (
	"io"

	"github.com/aligator/fatvol/checkpoint"
	"github.com/spf13/afero"
)

// Reported geometry of image devices, matching the usual LBA assisted translation.
const (
	imageHeads           = 16
	imageSectorsPerTrack = 63
)

// Image is a Device backed by a disk image.
type Image struct {
	r       io.ReaderAt
	w       io.WriterAt
	sectors uint32
	model   string
}

// NewImage opens the image file f. The sector count is derived from its size,
// a trailing partial sector is not addressable.
// Writes go to f as well, so open it read-only to get a read-only device.
func NewImage(f afero.File) (*Image, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, checkpoint.From(err)
	}

	img := NewImageReaderAt(f, info.Size())
	img.w = f
	img.model = info.Name()
	return img, nil
}

// NewImageReaderAt creates a read-only device of size bytes from r.
func NewImageReaderAt(r io.ReaderAt, size int64) *Image {
	sectors := size / SectorSize
	if sectors > 0xFFFFFFFF {
		sectors = 0xFFFFFFFF
	}

	return &Image{
		r:       r,
		sectors: uint32(sectors),
		model:   "disk image",
	}
}

// Identify returns a geometry with native LBA support.
func (i *Image) Identify() (Geometry, error) {
	cylinders := i.sectors / (imageHeads * imageSectorsPerTrack)
	if cylinders > 0xFFFF {
		cylinders = 0xFFFF
	}

	model := i.model
	if len(model) > 40 {
		model = model[:40]
	}

	return Geometry{
		Cylinders:       uint16(cylinders),
		Heads:           imageHeads,
		SectorsPerTrack: imageSectorsPerTrack,
		TotalSectors:    i.sectors,
		NativeLBA:       true,
		Model:           model,
	}, nil
}

func (i *Image) checkRange(lba uint32, count uint16) error {
	if uint64(lba)+uint64(count) > uint64(i.sectors) {
		return checkpoint.Errorf(ErrAddressRange, "sectors %d+%d beyond image end %d", lba, count, i.sectors)
	}
	return nil
}

// ReadSectors reads count sectors starting at lba.
func (i *Image) ReadSectors(lba uint32, count uint16, out []byte) error {
	if err := checkBuffer(count, out); err != nil {
		return err
	}
	if err := i.checkRange(lba, count); err != nil {
		return err
	}

	size := int(count) * SectorSize
	n, err := i.r.ReadAt(out[:size], int64(lba)*SectorSize)
	if n == size {
		// ReaderAt may report io.EOF together with a complete read at the very end.
		return nil
	}
	if err == nil || err == io.EOF {
		return checkpoint.Errorf(ErrShortTransfer, "read %d of %d bytes at sector %d", n, size, lba)
	}
	return checkpoint.Wrap(err, ErrShortTransfer)
}

// WriteSectors writes count sectors starting at lba.
func (i *Image) WriteSectors(lba uint32, count uint16, in []byte) error {
	if i.w == nil {
		return checkpoint.Errorf(ErrReadOnly, "write of %d sectors at %d", count, lba)
	}
	if err := checkBuffer(count, in); err != nil {
		return err
	}
	if err := i.checkRange(lba, count); err != nil {
		return err
	}

	size := int(count) * SectorSize
	n, err := i.w.WriteAt(in[:size], int64(lba)*SectorSize)
	if err != nil {
		return checkpoint.Wrap(err, ErrShortTransfer)
	}
	if n != size {
		return checkpoint.Errorf(ErrShortTransfer, "wrote %d of %d bytes at sector %d", n, size, lba)
	}
	return nil
}
