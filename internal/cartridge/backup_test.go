package cartridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/cartridge"
	"github.com/valerio/gbacore/internal/scheduler"
)

func TestSRAMRoundTrip(t *testing.T) {
	s := cartridge.NewSRAM()
	s.WriteByte(100, 0x42)
	assert.Equal(t, byte(0x42), s.ReadByte(100))
}

// Flash bank switch: commands 0xAA/0x55/0xB0 at 5555/2AAA/5555 then
// 0/1 at 0x0E00_0000 switch banks.
func TestFlashBankSwitch(t *testing.T) {
	f := cartridge.NewFlash(cartridge.FlashSize128K)

	f.WriteByte(0x0E00_5555, 0xAA)
	f.WriteByte(0x0E00_2AAA, 0x55)
	f.WriteByte(0x0E00_5555, 0xB0) // SELECT_BANK
	f.WriteByte(0x0E00_0000, 1)

	f.WriteByte(0x0E00_5555, 0xAA)
	f.WriteByte(0x0E00_2AAA, 0x55)
	f.WriteByte(0x0E00_5555, 0xA0) // WRITE_BYTE
	f.WriteByte(0x0E00_0010, 0x77)

	assert.Equal(t, byte(0x77), f.ReadByte(0x0E00_0010))

	f.WriteByte(0x0E00_5555, 0xAA)
	f.WriteByte(0x0E00_2AAA, 0x55)
	f.WriteByte(0x0E00_5555, 0xB0)
	f.WriteByte(0x0E00_0000, 0)

	assert.Equal(t, byte(0xFF), f.ReadByte(0x0E00_0010), "bank 0 should be unaffected by bank 1's write")
}

func TestFlashChipID(t *testing.T) {
	f := cartridge.NewFlash(cartridge.FlashSize64K)
	f.WriteByte(0x0E00_5555, 0xAA)
	f.WriteByte(0x0E00_2AAA, 0x55)
	f.WriteByte(0x0E00_5555, 0x90) // READ_CHIP_ID

	assert.Equal(t, byte(0xBF), f.ReadByte(0x0E00_0000))
	assert.Equal(t, byte(0xD4), f.ReadByte(0x0E00_0001))
}

// EEPROM commands 10 (write) and 11 (read): 64 bits written to address 0
// read back once the write-commit delay has passed.
func TestEEPROMWriteThenRead(t *testing.T) {
	sched := scheduler.New()
	e := cartridge.NewEEPROM(cartridge.EEPROMSize512B)
	e.AttachScheduler(sched)

	writeBits := func(v uint64, n int) {
		for i := n - 1; i >= 0; i-- {
			e.Write(uint8((v >> uint(i)) & 1))
		}
	}

	// write command "10", address 0 (6 bits), 64 data bits of the
	// pattern below, then the trailing bit that ends the request.
	writeBits(0b10, 2)
	writeBits(0, 6)
	var pattern uint64 = 0xAABBCCDD11223344
	writeBits(pattern, 64)
	writeBits(0, 1)

	readBits := func(n int) uint64 {
		var v uint64
		for i := 0; i < n; i++ {
			v = (v << 1) | uint64(e.Read())
		}
		return v
	}

	img := e.Image()
	var got uint64
	for i := 0; i < 8; i++ {
		got = (got << 8) | uint64(img[i])
	}
	assert.Equal(t, pattern, got)

	// let the ~6ms write-commit event fire so the EEPROM accepts
	// commands again.
	sched.AddCycles(101400)

	// read command "11", address 0, trailing bit; the response is a
	// dummy nibble followed by the 64 data bits.
	writeBits(0b11, 2)
	writeBits(0, 6)
	writeBits(0, 1)
	assert.Equal(t, uint64(0), readBits(4))
	assert.Equal(t, pattern, readBits(64))
}
