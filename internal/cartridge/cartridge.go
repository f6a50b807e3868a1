package cartridge

import (
	"fmt"

	"github.com/valerio/gbacore/internal/cartridge/gpio"
	"github.com/valerio/gbacore/internal/scheduler"
)

// Cartridge bundles the ROM image, its parsed header, the detected
// backup memory and (when present) a GPIO device.
type Cartridge struct {
	ROM    []byte
	Header Header
	Backup Backup
	GPIO   *gpio.Port
	rtc    *gpio.RTC
}

// Load validates size constraints, parses the header,
// auto-detects (or accepts an override for) the backup type, and
// attaches an RTC behind a GPIO port when hasRTC is true.
func Load(rom []byte, overrideBackup *BackupType, hasRTC bool) (*Cartridge, error) {
	if len(rom) < HeaderSize {
		return nil, fmt.Errorf("cartridge: rom too small (%d bytes, need at least %d): %w", len(rom), HeaderSize, errGameWrongSize)
	}
	const maxROM = 32 * 1024 * 1024
	if len(rom) > maxROM {
		return nil, fmt.Errorf("cartridge: rom too large (%d bytes, max %d): %w", len(rom), maxROM, errGameWrongSize)
	}

	header := ParseHeader(rom)

	kind := DetectBackup(rom, header.GameCodeString())
	if overrideBackup != nil {
		kind = *overrideBackup
	}

	c := &Cartridge{ROM: rom, Header: header, Backup: NewBackup(kind)}

	if hasRTC {
		c.rtc = gpio.NewRTC(func(pin int) gpio.PortDirection { return c.GPIO.Direction(pin) })
		c.GPIO = gpio.NewPort(c.rtc)
	}

	return c, nil
}

// AttachScheduler wires any backup that needs scheduled events (EEPROM).
func (c *Cartridge) AttachScheduler(sched *scheduler.Scheduler) {
	if e, ok := c.Backup.(*EEPROM); ok {
		e.AttachScheduler(sched)
	}
}

// ReadROMHalf reads a 16-bit unit from the ROM region, implementing the
// beyond-end-of-ROM open-bus rule: each 16-bit unit
// returns address>>1 truncated to the ROM's mirrored address space.
func (c *Cartridge) ReadROMHalf(addr uint32) uint16 {
	offset := addr & 0x01FF_FFFF
	if int(offset) < len(c.ROM)-1 {
		return uint16(c.ROM[offset]) | uint16(c.ROM[offset+1])<<8
	}
	return uint16((addr & 0x01FF_FFFE) >> 1)
}

var errGameWrongSize = fmt.Errorf("game image size out of bounds")

// ErrGameWrongSize is the sentinel returned for a ROM shorter
// than the header or larger than the cartridge address space allows.
func ErrGameWrongSize() error { return errGameWrongSize }
