package blockdev

import (
	"strings"

	"github.com/aligator/fatvol/checkpoint"
	"github.com/golang/glog"
)

// Register selects one of the ATA task file registers.
type Register uint8

// The task file registers in the order of their port offsets.
const (
	RegData         Register = iota
	RegError                 // read: error, write: features
	RegSectorCount
	RegSectorNumber          // LBA bits 0-7
	RegCylinderLow           // LBA bits 8-15
	RegCylinderHigh          // LBA bits 16-23
	RegDriveHead             // LBA bits 24-27
	RegStatus                // read: status, write: command

	RegFeatures = RegError
	RegCommand  = RegStatus
)

// Bits of the status register.
const (
	StatusError       uint8 = 0x01
	StatusDataRequest uint8 = 0x08
	StatusFault       uint8 = 0x20
	StatusReady       uint8 = 0x40
	StatusBusy        uint8 = 0x80
)

const (
	cmdReadSectors  uint8 = 0x20
	cmdWriteSectors uint8 = 0x30
	cmdIdentify     uint8 = 0xEC

	// driveHeadCHS and driveHeadLBA are the fixed bits of the drive/head register.
	driveHeadCHS uint8 = 0xA0
	driveHeadLBA uint8 = 0xE0

	// maxCommandSectors is what an 8 bit sector count can express, 0 meaning 256.
	maxCommandSectors = 256

	// maxLBA28 is the highest address reachable with 28 bit addressing.
	maxLBA28 = 0x0FFFFFFF

	// DefaultMaxPolls is used if ATAOptions.MaxPolls is 0.
	DefaultMaxPolls = 1 << 20

	wordsPerSector = SectorSize / 2
)

// Bus gives access to the registers of an ATA controller.
// Implementations map them to I/O ports or memory mapped registers.
type Bus interface {
	ReadRegister(r Register) uint8
	WriteRegister(r Register, value uint8)

	// ReadData and WriteData transfer one 16 bit word through the data register.
	ReadData() uint16
	WriteData(value uint16)
}

// ATAOptions configures an ATA device.
type ATAOptions struct {
	// Drive selects master (0) or slave (1).
	Drive uint8

	// MaxPolls bounds every wait for the status register.
	// DefaultMaxPolls is used if it is 0.
	MaxPolls int

	// SwapWriteBytes swaps the two bytes of every word sent on write.
	// Some controllers expect this, verify it against the target hardware before enabling it.
	SwapWriteBytes bool
}

// ATA drives an ATA/IDE disk through the PIO register protocol.
// It is not safe for concurrent use.
type ATA struct {
	bus  Bus
	opts ATAOptions

	identified bool
	geometry   Geometry
}

// NewATA creates a device for the drive attached to bus.
// The drive is identified on first access.
func NewATA(bus Bus, opts ATAOptions) *ATA {
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	opts.Drive &= 1

	return &ATA{
		bus:  bus,
		opts: opts,
	}
}

// Identify issues IDENTIFY DEVICE and decodes the returned block.
func (a *ATA) Identify() (Geometry, error) {
	a.bus.WriteRegister(RegDriveHead, driveHeadCHS|a.opts.Drive<<4)
	if err := a.waitIdle(); err != nil {
		return Geometry{}, checkpoint.From(err)
	}

	a.bus.WriteRegister(RegCommand, cmdIdentify)
	if err := a.waitData(); err != nil {
		return Geometry{}, checkpoint.From(err)
	}

	var words [wordsPerSector]uint16
	for i := range words {
		words[i] = a.bus.ReadData()
	}

	a.geometry = parseIdentify(words)
	a.identified = true

	if glog.V(1) {
		glog.Infof("ata: drive %d %q: %d/%d/%d chs, %d sectors, lba %v",
			a.opts.Drive, a.geometry.Model, a.geometry.Cylinders, a.geometry.Heads, a.geometry.SectorsPerTrack,
			a.geometry.TotalSectors, a.geometry.NativeLBA)
	}

	return a.geometry, nil
}

// parseIdentify extracts the geometry from an identify block.
//  word 1:      cylinders
//  word 3:      heads
//  word 6:      sectors per track
//  words 27-46: model, two characters per word with the first in the high byte
//  word 49:     capabilities, bit 9 LBA supported
//  words 60-61: LBA28 sector count
func parseIdentify(words [wordsPerSector]uint16) Geometry {
	g := Geometry{
		Cylinders:       words[1],
		Heads:           uint8(words[3]),
		SectorsPerTrack: uint8(words[6]),
		NativeLBA:       words[49]&0x0200 != 0,
	}

	model := make([]byte, 0, 40)
	for _, w := range words[27:47] {
		model = append(model, byte(w>>8), byte(w))
	}
	g.Model = strings.TrimRight(string(model), " \x00")

	if g.NativeLBA {
		g.TotalSectors = uint32(words[61])<<16 | uint32(words[60])
	} else {
		g.TotalSectors = uint32(g.Cylinders) * uint32(g.Heads) * uint32(g.SectorsPerTrack)
	}

	return g
}

func (a *ATA) ensureIdentified() error {
	if a.identified {
		return nil
	}
	_, err := a.Identify()
	return err
}

// ReadSectors reads count sectors starting at lba.
func (a *ATA) ReadSectors(lba uint32, count uint16, out []byte) error {
	if err := checkBuffer(count, out); err != nil {
		return err
	}
	if err := a.ensureIdentified(); err != nil {
		return err
	}

	return a.transfer(lba, count, cmdReadSectors, func(sector []byte) {
		for i := 0; i < wordsPerSector; i++ {
			w := a.bus.ReadData()
			sector[2*i] = byte(w)
			sector[2*i+1] = byte(w >> 8)
		}
	}, out)
}

// WriteSectors writes count sectors starting at lba.
func (a *ATA) WriteSectors(lba uint32, count uint16, in []byte) error {
	if err := checkBuffer(count, in); err != nil {
		return err
	}
	if err := a.ensureIdentified(); err != nil {
		return err
	}

	return a.transfer(lba, count, cmdWriteSectors, func(sector []byte) {
		for i := 0; i < wordsPerSector; i++ {
			lo, hi := sector[2*i], sector[2*i+1]
			if a.opts.SwapWriteBytes {
				lo, hi = hi, lo
			}
			a.bus.WriteData(uint16(lo) | uint16(hi)<<8)
		}
	}, in)
}

// transfer runs cmd over count sectors, split into commands of at most 256 sectors.
// move is called once per sector after the drive requested data.
func (a *ATA) transfer(lba uint32, count uint16, cmd uint8, move func(sector []byte), buf []byte) error {
	for count > 0 {
		n := count
		if n > maxCommandSectors {
			n = maxCommandSectors
		}

		if err := a.program(lba, n); err != nil {
			return err
		}
		a.bus.WriteRegister(RegCommand, cmd)

		for i := 0; i < int(n); i++ {
			if err := a.waitData(); err != nil {
				return checkpoint.From(err)
			}
			move(buf[i*SectorSize : (i+1)*SectorSize])
		}

		if err := a.waitDone(); err != nil {
			return checkpoint.From(err)
		}

		lba += uint32(n)
		count -= n
		buf = buf[int(n)*SectorSize:]
	}

	return nil
}

// program selects the drive and writes the address and sector count registers.
func (a *ATA) program(lba uint32, count uint16) error {
	if a.geometry.TotalSectors != 0 && uint64(lba)+uint64(count) > uint64(a.geometry.TotalSectors) {
		return checkpoint.Errorf(ErrAddressRange, "sectors %d-%d beyond device end %d", lba, uint64(lba)+uint64(count)-1, a.geometry.TotalSectors)
	}

	var driveHead, sector, cylLow, cylHigh uint8
	if a.geometry.NativeLBA {
		if uint64(lba)+uint64(count)-1 > maxLBA28 {
			return checkpoint.Errorf(ErrAddressRange, "lba %d exceeds 28 bit addressing", lba)
		}
		driveHead = driveHeadLBA | a.opts.Drive<<4 | uint8(lba>>24)&0x0F
		sector = uint8(lba)
		cylLow = uint8(lba >> 8)
		cylHigh = uint8(lba >> 16)
	} else {
		chs, err := Translate(lba, a.geometry)
		if err != nil {
			return err
		}
		if chs.Head > 0x0F {
			return checkpoint.Errorf(ErrAddressRange, "head %d does not fit the drive/head register", chs.Head)
		}
		driveHead = driveHeadCHS | a.opts.Drive<<4 | chs.Head
		sector = chs.Sector
		cylLow = uint8(chs.Cylinder)
		cylHigh = uint8(chs.Cylinder >> 8)
	}

	a.bus.WriteRegister(RegDriveHead, driveHead)
	if err := a.waitIdle(); err != nil {
		return checkpoint.From(err)
	}

	// 256 wraps to 0 which the drive reads as 256.
	a.bus.WriteRegister(RegSectorCount, uint8(count))
	a.bus.WriteRegister(RegSectorNumber, sector)
	a.bus.WriteRegister(RegCylinderLow, cylLow)
	a.bus.WriteRegister(RegCylinderHigh, cylHigh)
	return nil
}

// waitIdle polls until BSY clears. Error bits are left for the next command to reset.
func (a *ATA) waitIdle() error {
	_, err := a.poll(false, 0)
	return err
}

// waitData polls until the drive requests a data transfer.
func (a *ATA) waitData() error {
	_, err := a.poll(true, StatusDataRequest)
	return err
}

// waitDone polls until the drive finished the command.
func (a *ATA) waitDone() error {
	_, err := a.poll(true, 0)
	return err
}

func (a *ATA) poll(checkErr bool, want uint8) (uint8, error) {
	for i := 0; i < a.opts.MaxPolls; i++ {
		status := a.bus.ReadRegister(RegStatus)
		if status&StatusBusy != 0 {
			continue
		}
		if checkErr && status&(StatusError|StatusFault) != 0 {
			return status, checkpoint.Errorf(ErrHardware, "status %#02x, error %#02x", status, a.bus.ReadRegister(RegError))
		}
		if status&want == want {
			return status, nil
		}
	}

	return 0, checkpoint.Errorf(ErrTimeout, "status not settled after %d polls", a.opts.MaxPolls)
}
