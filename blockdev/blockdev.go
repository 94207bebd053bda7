// Package blockdev provides sector addressable storage devices.
// A Device reads and writes fixed size sectors by logical block address (LBA).
// Devices which lack native LBA support get their addresses translated to
// cylinder/head/sector using the geometry reported by Identify.
package blockdev

import (
	"errors"

	"github.com/aligator/fatvol/checkpoint"
)

// SectorSize is the only sector size supported by the devices of this package.
const SectorSize = 512

// These errors may be returned by any Device.
var (
	// ErrHardware is returned if the device reported an error after an operation.
	ErrHardware = errors.New("device reported an error")

	// ErrTimeout is returned if the device did not become ready within the polling bound.
	ErrTimeout = errors.New("device did not respond in time")

	// ErrAddressRange is returned if an address cannot be represented or lies beyond the device.
	ErrAddressRange = errors.New("address out of range")

	// ErrShortBuffer is returned if the buffer cannot hold count sectors.
	ErrShortBuffer = errors.New("buffer too small for sector count")

	// ErrShortTransfer is returned if fewer bytes than requested could be transferred.
	ErrShortTransfer = errors.New("incomplete sector transfer")

	// ErrReadOnly is returned by WriteSectors of devices opened without write access.
	ErrReadOnly = errors.New("device is read-only")
)

// Device is a sector addressable storage medium.
// Generated mock using mockgen:
//  mockgen -source=blockdev.go -destination=blockdev_mock.go -package blockdev
type Device interface {
	// Identify queries the geometry of the device.
	Identify() (Geometry, error)

	// ReadSectors reads count sectors starting at lba into out,
	// which must hold at least count * SectorSize bytes.
	ReadSectors(lba uint32, count uint16, out []byte) error

	// WriteSectors writes count sectors from in starting at lba.
	WriteSectors(lba uint32, count uint16, in []byte) error
}

// Geometry describes a device as reported by its identify block.
// It does not change after identification.
type Geometry struct {
	Cylinders       uint16
	Heads           uint8
	SectorsPerTrack uint8

	// TotalSectors is the number of addressable sectors.
	TotalSectors uint32

	// NativeLBA is true if the device accepts linear addresses directly.
	NativeLBA bool

	// Model is the model identifier, at most 40 characters.
	Model string
}

// checkBuffer verifies that buf can hold count sectors.
func checkBuffer(count uint16, buf []byte) error {
	if len(buf) < int(count)*SectorSize {
		return checkpoint.Errorf(ErrShortBuffer, "need %d bytes for %d sectors, got %d", int(count)*SectorSize, count, len(buf))
	}
	return nil
}
