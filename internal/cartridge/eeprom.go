package cartridge

import "github.com/valerio/gbacore/internal/scheduler"

// EEPROMSize selects the 512 byte or 8 KiB variant; the address width
// used by the bit-serial protocol depends on it.
type EEPROMSize int

const (
	EEPROMSize512B EEPROMSize = iota
	EEPROMSize8K
)

var eepromAddrBits = [2]int{6, 14}
var eepromByteSize = [2]int{512, 8192}

// eepromState is a bitmask mirroring the reference implementation's
// STATE_* flags so the same bit can gate several concerns at once
// (e.g. STATE_READING|STATE_DUMMY_NIBBLE).
type eepromState uint16

const (
	stateAcceptCommand eepromState = 0
	stateWriteMode     eepromState = 1 << 0
	stateReadMode      eepromState = 1 << 1
	stateGetAddress    eepromState = 1 << 2
	stateWriting       eepromState = 1 << 3
	stateEatDummy      eepromState = 1 << 4
	stateReading       eepromState = 1 << 5
	stateDummyNibble   eepromState = 1 << 6
	stateBusy          eepromState = 1 << 7
)

// EEPROM implements the bit-serial read/write command protocol:
// command bits 11 (read) / 10 (write), a 6- or 14-bit address, 64 data
// bits, and (for reads) a leading dummy nibble.
type EEPROM struct {
	size EEPROMSize
	data []byte

	state           eepromState
	address         int
	serialBuffer    uint64
	transmittedBits int

	sched      *scheduler.Scheduler
	readyEvent *scheduler.Event
}

// NewEEPROM returns an erased (zero-filled) EEPROM of the given size.
// The scheduler is attached lazily via AttachScheduler so that a
// Backup can be constructed before the console's scheduler exists.
func NewEEPROM(size EEPROMSize) *EEPROM {
	return &EEPROM{size: size, data: make([]byte, eepromByteSize[size])}
}

// SetSizeFromDMALength resizes a freshly-constructed (still-erased)
// EEPROM from the length of the first DMA transfer that targets it:
// a 9-word transfer addresses with 6 bits (512B variant), a 17-word
// transfer with 14 bits (8K variant). DetectBackup has no way to tell
// the two apart from ROM content alone, so the engine defaults to 8K
// and DMA corrects it the first time a real transfer is observed.
func (e *EEPROM) SetSizeFromDMALength(words int) {
	size := EEPROMSize8K
	if words <= 9 {
		size = EEPROMSize512B
	}
	if size == e.size {
		return
	}
	e.size = size
	e.data = make([]byte, eepromByteSize[size])
}

// AttachScheduler wires the EEPROM-ready event used to model the
// ~6 ms hardware write-commit delay.
func (e *EEPROM) AttachScheduler(sched *scheduler.Scheduler) {
	e.sched = sched
	sched.Register(scheduler.ClassEEPROMReady, e.onReady)
}

// ReadByte/WriteByte satisfy the Backup interface: ReadByte returns 0
// and WriteByte does nothing. The bus reaches backup memory only
// through these two methods; it does not call the bit-serial
// Read/Write below.
func (e *EEPROM) ReadByte(uint32) byte   { return 0 }
func (e *EEPROM) WriteByte(uint32, byte) {}

func (e *EEPROM) Image() []byte { return e.data }

func (e *EEPROM) LoadImage(data []byte) error {
	if len(data) != len(e.data) {
		return errBackupOutOfBounds{index: len(data), size: len(e.data)}
	}
	copy(e.data, data)
	return nil
}

func (e *EEPROM) resetSerial() {
	e.serialBuffer = 0
	e.transmittedBits = 0
}

// Read returns the next bit of the bit-serial protocol response.
func (e *EEPROM) Read() uint8 {
	if e.state&stateReading != 0 {
		if e.state&stateDummyNibble != 0 {
			e.transmittedBits++
			if e.transmittedBits == 4 {
				e.state &^= stateDummyNibble
				e.resetSerial()
			}
			return 0
		}

		bitIdx := e.transmittedBits % 8
		byteIdx := e.transmittedBits / 8
		e.transmittedBits++
		if e.transmittedBits == 64 {
			e.state = stateAcceptCommand
			e.resetSerial()
		}
		return (e.data[e.address+byteIdx] >> uint(7-bitIdx)) & 1
	}
	if e.state&stateBusy != 0 {
		return 0
	}
	return 1
}

// Write shifts one bit into the protocol's command/address/data state machine.
func (e *EEPROM) Write(value uint8) {
	if e.state&(stateReading|stateBusy) != 0 {
		return
	}
	value &= 1
	e.serialBuffer = (e.serialBuffer << 1) | uint64(value)
	e.transmittedBits++

	switch {
	case e.state == stateAcceptCommand && e.transmittedBits == 2:
		switch e.serialBuffer {
		case 2:
			e.state = stateWriteMode | stateGetAddress | stateWriting | stateEatDummy
		case 3:
			e.state = stateReadMode | stateGetAddress | stateEatDummy
		}
		e.resetSerial()

	case e.state&stateGetAddress != 0:
		if e.transmittedBits == eepromAddrBits[e.size] {
			e.address = (int(e.serialBuffer) * 8) & (len(e.data) - 1)
			e.state &^= stateGetAddress
			e.resetSerial()
		}

	case e.state&stateWriting != 0:
		bitIdx := (e.transmittedBits - 1) % 8
		byteIdx := (e.transmittedBits - 1) / 8
		e.data[e.address+byteIdx] |= value << uint(7-bitIdx)
		if e.transmittedBits == 64 {
			e.state &^= stateWriting
			e.resetSerial()
		}

	case e.state&stateEatDummy != 0:
		e.state &^= stateEatDummy
		switch {
		case e.state&stateReadMode != 0:
			e.state |= stateReading | stateDummyNibble
		case e.state&stateWriteMode != 0:
			e.state = stateBusy
			if e.sched != nil {
				e.readyEvent = e.sched.Add(101400, scheduler.ClassEEPROMReady, 0, 0)
			}
		}
		e.resetSerial()
	}
}

func (e *EEPROM) onReady(uint64, int64) {
	e.state = stateAcceptCommand
}
