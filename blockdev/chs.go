package blockdev

import (
	"github.com/aligator/fatvol/checkpoint"
)

// CHS is a legacy cylinder/head/sector address.
// Sector numbers start at 1, cylinders and heads at 0.
type CHS struct {
	Cylinder uint16
	Head     uint8
	Sector   uint8
}

// Translate converts lba into a CHS address of the given geometry:
//  sector   = lba % sectorsPerTrack + 1
//  track    = lba / sectorsPerTrack
//  head     = track % heads
//  cylinder = track / heads
// The resulting sector always fits 8 bits as SectorsPerTrack does.
// Returns ErrAddressRange if the geometry is empty or the cylinder does not fit 16 bits.
func Translate(lba uint32, g Geometry) (CHS, error) {
	if g.SectorsPerTrack == 0 || g.Heads == 0 {
		return CHS{}, checkpoint.Errorf(ErrAddressRange, "geometry %d heads / %d sectors per track cannot address lba %d", g.Heads, g.SectorsPerTrack, lba)
	}

	spt := uint32(g.SectorsPerTrack)
	heads := uint32(g.Heads)

	sector := lba%spt + 1
	track := lba / spt
	cylinder := track / heads

	if cylinder > 0xFFFF {
		return CHS{}, checkpoint.Errorf(ErrAddressRange, "lba %d needs cylinder %d", lba, cylinder)
	}

	return CHS{
		Cylinder: uint16(cylinder),
		Head:     uint8(track % heads),
		Sector:   uint8(sector),
	}, nil
}

// LBA converts the address back into a linear block address of the given geometry.
func (c CHS) LBA(g Geometry) uint32 {
	return (uint32(c.Cylinder)*uint32(g.Heads)+uint32(c.Head))*uint32(g.SectorsPerTrack) + uint32(c.Sector) - 1
}
