// Package bus implements the GBA memory map: address decode, the
// per-region wait-state table, the Game Pak prefetch buffer and
// open-bus fallback. It owns the fixed memory arrays
// (BIOS/EWRAM/IWRAM/PRAM/VRAM/OAM) and dispatches I/O register access
// to the subsystems wired in by Console, grounded on
// src/nba/src/bus/timing.cpp and src/nba/src/bus/io.hpp and on a
// byte-indexed region lookup table.
package bus

import (
	"fmt"
	"log/slog"

	"github.com/valerio/gbacore/internal/addr"
	"github.com/valerio/gbacore/internal/bus/mgbalog"
	"github.com/valerio/gbacore/internal/cartridge"
	"github.com/valerio/gbacore/internal/dma"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
	"github.com/valerio/gbacore/internal/timer"
)

// Access identifies whether a bus transaction followed the previous one
// in address order; sequential accesses are cheaper per the wait-state
// table.
type Access int

const (
	NonSequential Access = iota
	Sequential
)

const (
	biosSize  = 16 * 1024
	ewramSize = 256 * 1024
	iwramSize = 32 * 1024
	pramSize  = 1024
	vramSize  = 96 * 1024
	oamSize   = 1024
)

// PPURegisters is the narrow capability interface the video package
// implements; wired in after construction since internal/video depends
// on internal/bus's Access type, not the reverse.
type PPURegisters interface {
	ReadRegister(offset uint32) uint16
	WriteRegister(offset uint32, value uint16)
	ReadOAM(offset uint32) byte
	WriteOAM(offset uint32, value byte)
	ReadVRAM(offset uint32) byte
	WriteVRAM(offset uint32, value byte)
	ReadPRAM(offset uint32) byte
	WritePRAM(offset uint32, value byte)
}

// APURegisters is implemented by internal/audio.
type APURegisters interface {
	ReadRegister(offset uint32) uint16
	WriteRegister(offset uint32, value uint16)
}

// SIORegisters is implemented by internal/sio.
type SIORegisters interface {
	ReadRegister(offset uint32) uint16
	WriteRegister(offset uint32, value uint16)
}

// Keys is the ten-button state polled from the host; a true field means
// the button is pressed (keyInput turns it into KEYINPUT's active-low bits).
type Keys struct {
	A, B, Select, Start, Right, Left, Up, Down, R, L bool
}

// prefetch models the Game Pak prefetch unit's logical queue (head
// address + pending count), grounded on timing.cpp's Prefetch.
type prefetch struct {
	active       bool
	count        int
	capacity     int
	opcodeWidth  uint32
	duty         int64
	countdown    int64
	headAddress  uint32
	lastAddress  uint32
	thumb        bool
	wasDisabled  bool
}

// waitcnt mirrors the WAITCNT register's decoded fields.
type waitcnt struct {
	sram       uint8
	ws0        [2]uint8 // [nonsequential, sequential]
	ws1        [2]uint8
	ws2      [2]uint8
	prefetch bool
}

// Bus owns the flat memory regions and routes accesses to the
// subsystems registered via Attach*; it satisfies dma.Bus so the DMA
// engine can drive transfers through the same decode path as the CPU.
type Bus struct {
	sched *scheduler.Scheduler
	irqc  *irq.Controller
	timers *timer.Controller
	dmaEngine *dma.Engine
	cart  *cartridge.Cartridge

	ppu PPURegisters
	apu APURegisters
	sio SIORegisters
	log *mgbalog.Port

	bios  []byte
	ewram []byte
	iwram []byte
	pram  []byte
	vram  []byte
	oam   []byte

	keys  Keys
	keycnt uint16

	waitcnt waitcnt
	wait16  [2][16]int
	wait32  [2][16]int

	prefetch prefetch

	dmaAddr [4]struct{ sad, dad uint32 }

	lastBIOSFetch   uint32
	lastOpcodeFetch uint32
	pc              func() uint32
	thumbMode       func() bool
	haltSink        func()

	internalCycleLimit int64
}

// New constructs a bus with zeroed memory arrays (matching power-on
// GBA memory, which is not actually zero on hardware but is
// conventionally modeled that way).
// dma.New requires a Bus, so the engine is wired in afterwards via
// AttachDMA to break the construction cycle.
func New(sched *scheduler.Scheduler, irqc *irq.Controller, timers *timer.Controller) *Bus {
	b := &Bus{
		sched:     sched,
		irqc:      irqc,
		timers:    timers,
		log:       mgbalog.New(),
		bios:      make([]byte, biosSize),
		ewram:     make([]byte, ewramSize),
		iwram:     make([]byte, iwramSize),
		pram:      make([]byte, pramSize),
		vram:      make([]byte, vramSize),
		oam:       make([]byte, oamSize),
		keys:      Keys{},
	}
	b.keys = Keys{}
	b.updateWaitStateTable()
	return b
}

// LoadBIOS installs the 16 KiB BIOS image.
func (b *Bus) LoadBIOS(data []byte) error {
	if len(data) != biosSize {
		return fmt.Errorf("bus: bios wrong size (%d bytes, want %d)", len(data), biosSize)
	}
	copy(b.bios, data)
	return nil
}

// AttachDMA wires the DMA engine after construction, breaking the
// mutual-construction cycle (dma.New itself requires a Bus).
func (b *Bus) AttachDMA(e *dma.Engine) { b.dmaEngine = e }

// AttachCartridge installs the active cartridge.
func (b *Bus) AttachCartridge(cart *cartridge.Cartridge) { b.cart = cart }

// AttachPPU wires the video subsystem's register/VRAM/OAM/PRAM surface.
func (b *Bus) AttachPPU(ppu PPURegisters) { b.ppu = ppu }

// AttachAPU wires the audio subsystem's register surface.
func (b *Bus) AttachAPU(apu APURegisters) { b.apu = apu }

// AttachSIO wires the serial subsystem's register surface.
func (b *Bus) AttachSIO(sio SIORegisters) { b.sio = sio }

// AttachPCProbe lets the CPU expose its current PC and Thumb-mode flag
// so BIOS open-bus reads can decide whether PC is inside the BIOS
// region.
func (b *Bus) AttachPCProbe(pc func() uint32, thumbMode func() bool) {
	b.pc = pc
	b.thumbMode = thumbMode
}

// AttachHaltSink wires a HALTCNT write to the CPU's halt entry point,
// parking the core until the next IRQ line assertion.
func (b *Bus) AttachHaltSink(halt func()) { b.haltSink = halt }

// SetKeys updates the polled key state; KEYINPUT reflects it
// immediately and a keypad IRQ is raised per the configured condition.
func (b *Bus) SetKeys(k Keys) {
	b.keys = k
	b.checkKeypadIRQ()
}

func (b *Bus) keyInput() uint16 {
	set := func(pressed bool, bitPos uint) uint16 {
		if pressed {
			return 0
		}
		return 1 << bitPos
	}
	v := uint16(0)
	v |= set(b.keys.A, 0)
	v |= set(b.keys.B, 1)
	v |= set(b.keys.Select, 2)
	v |= set(b.keys.Start, 3)
	v |= set(b.keys.Right, 4)
	v |= set(b.keys.Left, 5)
	v |= set(b.keys.Up, 6)
	v |= set(b.keys.Down, 7)
	v |= set(b.keys.R, 8)
	v |= set(b.keys.L, 9)
	return v
}

// checkKeypadIRQ implements the Keypad AND/OR IRQ condition: KEYCNT bit
// 14 enables the IRQ, bit 15 selects AND (all selected keys pressed)
// vs OR (any selected key pressed).
func (b *Bus) checkKeypadIRQ() {
	if b.keycnt&(1<<14) == 0 {
		return
	}
	selection := b.keycnt & 0x3FF
	pressedMask := (^b.keyInput()) & 0x3FF
	var condition irq.KeypadCondition
	if b.keycnt&(1<<15) != 0 {
		condition = irq.KeypadAND
	} else {
		condition = irq.KeypadOR
	}

	var fire bool
	switch condition {
	case irq.KeypadAND:
		fire = selection != 0 && pressedMask&selection == selection
	case irq.KeypadOR:
		fire = pressedMask&selection != 0
	}
	if fire {
		b.irqc.Raise(irq.Keypad)
	}
}

// Idle burns one internal CPU cycle, letting DMA run in parallel when
// it becomes active mid-sequence of internal cycles, per timing.cpp's
// Bus::Idle.
func (b *Bus) Idle() {
	if b.dmaEngine.IsRunning() {
		b.internalCycleLimit = b.dmaEngine.Run()
	}
	if b.internalCycleLimit == 0 {
		b.Step(1)
	} else {
		b.internalCycleLimit--
	}
}

// Step advances the scheduler and decrements any active prefetch
// countdown, refilling the queue while WAITCNT.prefetch stays set.
func (b *Bus) Step(cycles int64) {
	b.sched.AddCycles(cycles)

	if b.prefetch.active {
		b.prefetch.countdown -= cycles
		for b.prefetch.countdown <= 0 {
			b.prefetch.count++
			if b.waitcnt.prefetch && b.prefetch.count < b.prefetch.capacity {
				b.prefetch.lastAddress += b.prefetch.opcodeWidth
				b.prefetch.countdown += b.prefetch.duty
			} else {
				break
			}
		}
	}
}

func (b *Bus) stopPrefetch() {
	if !b.prefetch.active {
		return
	}
	if b.pc != nil {
		r15 := b.pc()
		if r15 >= addr.PakBase && r15 <= addr.PakEnd {
			halfDutyPlusOne := (b.prefetch.duty >> 1) + 1
			countdown := b.prefetch.countdown
			if countdown == 1 || (!b.prefetch.thumb && countdown == halfDutyPlusOne) {
				b.Step(1)
			}
		}
	}
	b.prefetch.active = false
}

// prefetchAccess models a code fetch from the Game Pak region with the
// prefetch unit's fast-path and refill bookkeeping, per timing.cpp's
// Bus::Prefetch. cost is the access's normal (non-prefetched) duration.
func (b *Bus) prefetchAccess(address uint32, code bool, cost int) {
	if !code {
		b.stopPrefetch()
		b.Step(int64(cost))
		return
	}

	if b.prefetch.active {
		if b.prefetch.count != 0 && address == b.prefetch.headAddress {
			b.prefetch.count--
			b.prefetch.headAddress += b.prefetch.opcodeWidth
			b.Step(1)
			return
		}
		if b.prefetch.countdown > 0 && address == b.prefetch.lastAddress {
			b.Step(b.prefetch.countdown)
			b.prefetch.headAddress = b.prefetch.lastAddress
			b.prefetch.count = 0
			return
		}
	}

	b.stopPrefetch()

	if b.prefetch.wasDisabled {
		b.prefetch.wasDisabled = false
		cost = b.costFor(address, false)
	}
	b.Step(int64(cost))

	if b.waitcnt.prefetch {
		thumb := b.thumbMode != nil && b.thumbMode()
		page := address >> 24
		b.prefetch.active = true
		b.prefetch.count = 0
		b.prefetch.thumb = thumb
		if thumb {
			b.prefetch.opcodeWidth = 2
			b.prefetch.capacity = 8
			b.prefetch.duty = int64(b.wait16[Sequential][page])
		} else {
			b.prefetch.opcodeWidth = 4
			b.prefetch.capacity = 4
			b.prefetch.duty = int64(b.wait32[Sequential][page])
		}
		b.prefetch.countdown = b.prefetch.duty
		b.prefetch.lastAddress = address + b.prefetch.opcodeWidth
		b.prefetch.headAddress = b.prefetch.lastAddress
	}
}

// costFor recomputes the non-sequential variant of a cost for the
// Game Pak prefetch-disabled correction in Bus::Prefetch.
func (b *Bus) costFor(address uint32, sequential bool) int {
	page := address >> 24
	if sequential {
		return b.wait16[Sequential][page]
	}
	return b.wait16[NonSequential][page]
}

func region(address uint32) uint8 { return uint8(address >> 24) }

// updateWaitStateTable recomputes wait16/wait32 from the current
// WAITCNT fields, per timing.cpp's Bus::UpdateWaitStateTable.
func (b *Bus) updateWaitStateTable() {
	nseqTable := [4]int{5, 4, 3, 9}
	seq0 := [2]int{3, 2}
	seq1 := [2]int{5, 2}
	seq2 := [2]int{9, 2}

	const n, s = int(NonSequential), int(Sequential)
	sram := nseqTable[b.waitcnt.sram]

	for i := 0; i < 2; i++ {
		b.wait16[n][0x8+i] = nseqTable[b.waitcnt.ws0[n]]
		b.wait16[n][0xA+i] = nseqTable[b.waitcnt.ws1[n]]
		b.wait16[n][0xC+i] = nseqTable[b.waitcnt.ws2[n]]

		b.wait16[s][0x8+i] = seq0[b.waitcnt.ws0[s]]
		b.wait16[s][0xA+i] = seq1[b.waitcnt.ws1[s]]
		b.wait16[s][0xC+i] = seq2[b.waitcnt.ws2[s]]

		b.wait32[n][0x8+i] = b.wait16[n][0x8] + b.wait16[s][0x8]
		b.wait32[n][0xA+i] = b.wait16[n][0xA] + b.wait16[s][0xA]
		b.wait32[n][0xC+i] = b.wait16[n][0xC] + b.wait16[s][0xC]

		b.wait32[s][0x8+i] = b.wait16[s][0x8] * 2
		b.wait32[s][0xA+i] = b.wait16[s][0xA] * 2
		b.wait32[s][0xC+i] = b.wait16[s][0xC] * 2

		b.wait16[n][0xE+i] = sram
		b.wait32[n][0xE+i] = sram
		b.wait16[s][0xE+i] = sram
		b.wait32[s][0xE+i] = sram
	}

	// Fixed-cost regions: BIOS/EWRAM/IWRAM/IO/PRAM/VRAM/OAM.
	b.wait16[n][0x0], b.wait16[s][0x0] = 1, 1 // BIOS
	b.wait32[n][0x0], b.wait32[s][0x0] = 1, 1
	b.wait16[n][0x2], b.wait16[s][0x2] = 3, 3 // EWRAM: 3-cycle 16-bit (default 2 wait states)
	b.wait32[n][0x2], b.wait32[s][0x2] = 6, 6 // 32-bit costs two sequential 16-bit accesses
	b.wait16[n][0x3], b.wait16[s][0x3] = 1, 1 // IWRAM
	b.wait32[n][0x3], b.wait32[s][0x3] = 1, 1
	b.wait16[n][0x4], b.wait16[s][0x4] = 1, 1 // I/O
	b.wait32[n][0x4], b.wait32[s][0x4] = 1, 1
	b.wait16[n][0x5], b.wait16[s][0x5] = 1, 1 // PRAM
	b.wait32[n][0x5], b.wait32[s][0x5] = 2, 2
	b.wait16[n][0x6], b.wait16[s][0x6] = 1, 1 // VRAM
	b.wait32[n][0x6], b.wait32[s][0x6] = 2, 2
	b.wait16[n][0x7], b.wait16[s][0x7] = 1, 1 // OAM
	b.wait32[n][0x7], b.wait32[s][0x7] = 1, 1
}

func (b *Bus) writeWAITCNT(value uint16) {
	b.waitcnt.sram = uint8(value & 0x3)
	b.waitcnt.ws0[0] = uint8((value >> 2) & 0x3)
	b.waitcnt.ws0[1] = uint8((value >> 4) & 0x1)
	b.waitcnt.ws1[0] = uint8((value >> 5) & 0x3)
	b.waitcnt.ws1[1] = uint8((value >> 7) & 0x1)
	b.waitcnt.ws2[0] = uint8((value >> 8) & 0x3)
	b.waitcnt.ws2[1] = uint8((value >> 10) & 0x1)
	wasPrefetch := b.waitcnt.prefetch
	b.waitcnt.prefetch = value&(1<<14) != 0
	if wasPrefetch && !b.waitcnt.prefetch {
		b.prefetch.wasDisabled = true
		b.stopPrefetch()
	}
	b.updateWaitStateTable()
}

func (b *Bus) readWAITCNT() uint16 {
	var v uint16
	v |= uint16(b.waitcnt.sram)
	v |= uint16(b.waitcnt.ws0[0]) << 2
	v |= uint16(b.waitcnt.ws0[1]) << 4
	v |= uint16(b.waitcnt.ws1[0]) << 5
	v |= uint16(b.waitcnt.ws1[1]) << 7
	v |= uint16(b.waitcnt.ws2[0]) << 8
	v |= uint16(b.waitcnt.ws2[1]) << 10
	if b.waitcnt.prefetch {
		v |= 1 << 14
	}
	return v
}

// ReadHalf reads a 16-bit value and steps the bus the appropriate
// number of cycles; satisfies dma.Bus and serves the CPU's data path.
func (b *Bus) ReadHalf(address uint32, sequential bool) uint16 {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	value := b.readHalfRaw(address)
	b.accountAccess(address, 2, access, false)
	return value
}

// ReadByte reads an 8-bit value and steps the bus.
func (b *Bus) ReadByte(address uint32, sequential bool) byte {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	value := b.readByteRaw(address)
	b.accountAccess(address, 1, access, false)
	return value
}

// WriteByte writes an 8-bit value and steps the bus.
func (b *Bus) WriteByte(address uint32, value byte, sequential bool) {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	b.writeByteRaw(address, value)
	b.accountAccess(address, 1, access, false)
}

// ReadWord reads a 32-bit value; unaligned addresses are rotated per
// the ARM load-word rule (handled by the CPU, not here).
func (b *Bus) ReadWord(address uint32, sequential bool) uint32 {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	lo := b.readHalfRaw(address &^ 3)
	hi := b.readHalfRaw((address &^ 3) + 2)
	value := uint32(lo) | uint32(hi)<<16
	b.accountAccess(address, 4, access, false)
	return value
}

// WriteHalf writes a 16-bit value and steps the bus.
func (b *Bus) WriteHalf(address uint32, value uint16, sequential bool) {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	b.writeHalfRaw(address, value)
	b.accountAccess(address, 2, access, false)
}

// WriteWord writes a 32-bit value and steps the bus.
func (b *Bus) WriteWord(address uint32, value uint32, sequential bool) {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	b.writeHalfRaw(address&^3, uint16(value))
	b.writeHalfRaw((address&^3)+2, uint16(value>>16))
	b.accountAccess(address, 4, access, false)
}

// FetchCode performs a code (instruction) fetch, routing through the
// Game Pak prefetch unit when the address is in ROM.
func (b *Bus) FetchCode(address uint32, width int, sequential bool) uint32 {
	access := NonSequential
	if sequential {
		access = Sequential
	}
	page := region(address)
	var value uint32
	if width == 2 {
		value = uint32(b.readHalfRaw(address))
	} else {
		lo := b.readHalfRaw(address &^ 3)
		hi := b.readHalfRaw((address &^ 3) + 2)
		value = uint32(lo) | uint32(hi)<<16
	}
	if page == 0x8 || page == 0x9 || page == 0xA || page == 0xB || page == 0xC || page == 0xD {
		cost := b.wait16[access][page]
		if width == 4 {
			cost = b.wait32[access][page]
		}
		b.prefetchAccess(address, true, cost)
	} else {
		b.accountAccess(address, width, access, true)
	}
	if address >= addr.BIOSBase && address <= addr.BIOSEnd {
		b.lastBIOSFetch = value
	}
	b.lastOpcodeFetch = value
	return value
}

func (b *Bus) accountAccess(address uint32, width int, access Access, code bool) {
	page := region(address)
	if page >= 0x8 && page <= 0xD {
		b.stopPrefetch()
	}
	var cost int
	if width == 4 {
		cost = b.wait32[access][page]
	} else {
		cost = b.wait16[access][page]
	}
	_ = code
	b.Step(int64(cost))
}

// gpioRegisterOffset maps an address within the 0x0800_0000 ROM page to
// the GPIO port's data/direction/control register, if it falls on one
// of those three half-word slots (0x0800_00C4/C6/C8), per
// source/emulator/cartridge/gpio/rtc.hpp's documented port mapping.
// GPIO is visible only in the first ROM mirror (page 0x8), matching
// real carts that only wire the pins into the lowest bus.
func gpioRegisterOffset(address uint32) (uint32, bool) {
	if address>>24 != 0x8 {
		return 0, false
	}
	off := address & 0x1FF_FFFF
	switch off &^ 1 {
	case addr.GPIODataOffset, addr.GPIODirOffset, addr.GPIOCntOffset:
		return off &^ 1, true
	}
	return 0, false
}

func (b *Bus) readGPIOByte(address uint32) (byte, bool) {
	reg, ok := gpioRegisterOffset(address)
	if !ok {
		return 0, false
	}
	var half uint16
	switch reg {
	case addr.GPIODataOffset:
		half = uint16(b.cart.GPIO.ReadData())
	default:
		return 0, false // direction/control are write-only
	}
	return byte(half >> ((address & 1) * 8)), true
}

func (b *Bus) writeGPIOByte(address uint32, value byte) {
	reg, ok := gpioRegisterOffset(address)
	if !ok {
		return
	}
	switch reg {
	case addr.GPIODataOffset:
		b.cart.GPIO.WriteData(value)
	case addr.GPIODirOffset:
		b.cart.GPIO.WriteDirection(value)
	case addr.GPIOCntOffset:
		b.cart.GPIO.WriteControl(value)
	}
}

func (b *Bus) readHalfRaw(address uint32) uint16 {
	lo := b.readByteRaw(address)
	hi := b.readByteRaw(address + 1)
	return uint16(lo) | uint16(hi)<<8
}

func (b *Bus) writeHalfRaw(address uint32, value uint16) {
	if region(address) == 0x4 {
		b.writeIORegister(address&^1, value)
		return
	}
	b.writeByteRaw(address, byte(value))
	b.writeByteRaw(address+1, byte(value>>8))
}

// readByteRaw decodes address into a region and returns the stored (or
// synthesized open-bus) byte.
func (b *Bus) readByteRaw(address uint32) byte {
	switch region(address) {
	case 0x0:
		if address <= addr.BIOSEnd {
			return b.bios[address&(biosSize-1)]
		}
		// Open bus: PC outside the BIOS region reads back the last
		// word the BIOS itself fetched.
		return byte(b.lastBIOSFetch >> ((address & 3) * 8))
	case 0x2:
		return b.ewram[address&(ewramSize-1)]
	case 0x3:
		return b.iwram[address&(iwramSize-1)]
	case 0x4:
		return b.readIOByte(address)
	case 0x5:
		if b.ppu != nil {
			return b.ppu.ReadPRAM(address & (pramSize - 1))
		}
		return b.pram[address&(pramSize-1)]
	case 0x6:
		off := address & 0x1FFFF
		if off >= 0x18000 {
			off -= 0x8000
		}
		if b.ppu != nil {
			return b.ppu.ReadVRAM(off)
		}
		return b.vram[off]
	case 0x7:
		if b.ppu != nil {
			return b.ppu.ReadOAM(address & (oamSize - 1))
		}
		return b.oam[address&(oamSize-1)]
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		if b.cart == nil {
			half := uint16((address & 0x01FF_FFFE) >> 1)
			return byte(half >> ((address & 1) * 8))
		}
		if b.cart.GPIO != nil {
			if v, ok := b.readGPIOByte(address); ok {
				return v
			}
		}
		half := b.cart.ReadROMHalf(address &^ 1)
		return byte(half >> ((address & 1) * 8))
	case 0xE, 0xF:
		if b.cart == nil || b.cart.Backup == nil {
			return 0xFF
		}
		return b.cart.Backup.ReadByte(address & 0xFFFF)
	default:
		return byte(b.lastOpcodeFetch >> ((address & 3) * 8))
	}
}

func (b *Bus) writeByteRaw(address uint32, value byte) {
	switch region(address) {
	case 0x0:
		// BIOS is read-only.
	case 0x2:
		b.ewram[address&(ewramSize-1)] = value
	case 0x3:
		b.iwram[address&(iwramSize-1)] = value
	case 0x4:
		b.writeIOByte(address, value)
	case 0x5:
		if b.ppu != nil {
			b.ppu.WritePRAM(address&(pramSize-1), value)
		} else {
			b.pram[address&(pramSize-1)] = value
		}
	case 0x6:
		off := address & 0x1FFFF
		if off >= 0x18000 {
			off -= 0x8000
		}
		if b.ppu != nil {
			b.ppu.WriteVRAM(off, value)
		} else {
			b.vram[off] = value
		}
	case 0x7:
		if b.ppu != nil {
			b.ppu.WriteOAM(address&(oamSize-1), value)
		} else {
			b.oam[address&(oamSize-1)] = value
		}
	case 0x8, 0x9, 0xA, 0xB, 0xC, 0xD:
		if b.cart != nil && b.cart.GPIO != nil {
			b.writeGPIOByte(address, value)
		}
	case 0xE, 0xF:
		if b.cart != nil && b.cart.Backup != nil {
			b.cart.Backup.WriteByte(address&0xFFFF, value)
		}
	}
}

func (b *Bus) readIOByte(address uint32) byte {
	value := b.readIORegister(address &^ 1)
	return byte(value >> ((address & 1) * 8))
}

func (b *Bus) writeIOByte(address uint32, value byte) {
	if address-addr.IOBase == addr.HALTCNT {
		b.writeIORegister(address, uint16(value))
		return
	}
	reg := address &^ 1
	current := b.readIORegister(reg)
	if address&1 == 0 {
		current = (current &^ 0xFF) | uint16(value)
	} else {
		current = (current &^ 0xFF00) | uint16(value)<<8
	}
	b.writeIORegister(reg, current)
}

// readIORegister dispatches a 16-bit-aligned I/O register read to the
// owning subsystem by address range.
func (b *Bus) readIORegister(reg uint32) uint16 {
	offset := reg - addr.IOBase

	switch {
	case reg >= addr.MGBALogBase && reg < addr.MGBALogEnd:
		return b.log.ReadHalf(reg - addr.MGBALogBase)
	case offset >= addr.DMA0SAD && offset < addr.TM0CNT_L:
		return b.readDMARegister(offset)
	case offset >= addr.TM0CNT_L && offset <= addr.TM3CNT_H:
		return b.readTimerRegister(offset)
	case offset == addr.KEYINPUT:
		return b.keyInput()
	case offset == addr.KEYCNT:
		return b.keycnt
	case offset == addr.IE:
		return b.irqc.IE()
	case offset == addr.IF:
		return b.irqc.IF()
	case offset == addr.WAITCNT:
		return b.readWAITCNT()
	case offset == addr.IME:
		if b.irqc.IME() {
			return 1
		}
		return 0
	case offset >= addr.SOUND1CNT_L && offset <= addr.FIFO_B:
		if b.apu != nil {
			return b.apu.ReadRegister(offset)
		}
	case offset >= addr.SIODATA32_L && offset <= addr.JOYSTAT:
		if b.sio != nil {
			return b.sio.ReadRegister(offset)
		}
	case offset >= addr.DISPCNT && offset <= addr.BLDY:
		if b.ppu != nil {
			return b.ppu.ReadRegister(offset)
		}
	}
	return uint16(b.lastOpcodeFetch >> ((reg & 2) * 8))
}

func (b *Bus) writeIORegister(reg uint32, value uint16) {
	offset := reg - addr.IOBase

	switch {
	case reg >= addr.MGBALogBase && reg < addr.MGBALogEnd:
		b.log.WriteHalf(reg-addr.MGBALogBase, value)
	case offset >= addr.DMA0SAD && offset < addr.TM0CNT_L:
		b.writeDMARegister(offset, value)
	case offset >= addr.TM0CNT_L && offset <= addr.TM3CNT_H:
		b.writeTimerRegister(offset, value)
	case offset == addr.KEYINPUT:
		// Read-only; writes are ignored.
	case offset == addr.KEYCNT:
		b.keycnt = value
		b.checkKeypadIRQ()
	case offset == addr.IE:
		b.irqc.WriteIE(value)
	case offset == addr.IF:
		b.irqc.WriteIF(value)
	case offset == addr.WAITCNT:
		b.writeWAITCNT(value)
	case offset == addr.IME:
		b.irqc.WriteIME(value&1 != 0)
	case offset >= addr.SOUND1CNT_L && offset <= addr.FIFO_B+2:
		if b.apu != nil {
			b.apu.WriteRegister(offset, value)
		}
	case offset >= addr.SIODATA32_L && offset <= addr.JOYSTAT:
		if b.sio != nil {
			b.sio.WriteRegister(offset, value)
		}
	case offset >= addr.DISPCNT && offset <= addr.BLDY:
		if b.ppu != nil {
			b.ppu.WriteRegister(offset, value)
		}
	case offset == addr.HALTCNT:
		slog.Debug("bus: HALTCNT write", "value", value)
		if b.haltSink != nil {
			b.haltSink()
		}
	}
}

func (b *Bus) readDMARegister(offset uint32) uint16 {
	ch := int((offset - addr.DMA0SAD) / addr.DMAChannel)
	regOffset := (offset - addr.DMA0SAD) % addr.DMAChannel
	if regOffset == addr.DMA0CNT_H-addr.DMA0SAD {
		return b.dmaEngine.ReadControl(ch)
	}
	return 0
}

func (b *Bus) writeDMARegister(offset uint32, value uint16) {
	ch := int((offset - addr.DMA0SAD) / addr.DMAChannel)
	regOffset := (offset - addr.DMA0SAD) % addr.DMAChannel
	switch regOffset {
	case 0x0:
		b.dmaAddr[ch].sad = (b.dmaAddr[ch].sad &^ 0xFFFF) | uint32(value)
		b.dmaEngine.WriteSAD(ch, b.dmaAddr[ch].sad)
	case 0x2:
		b.dmaAddr[ch].sad = (b.dmaAddr[ch].sad &^ 0xFFFF0000) | uint32(value)<<16
		b.dmaEngine.WriteSAD(ch, b.dmaAddr[ch].sad)
	case 0x4:
		b.dmaAddr[ch].dad = (b.dmaAddr[ch].dad &^ 0xFFFF) | uint32(value)
		b.dmaEngine.WriteDAD(ch, b.dmaAddr[ch].dad)
	case 0x6:
		b.dmaAddr[ch].dad = (b.dmaAddr[ch].dad &^ 0xFFFF0000) | uint32(value)<<16
		b.dmaEngine.WriteDAD(ch, b.dmaAddr[ch].dad)
	case addr.DMA0CNT_L - addr.DMA0SAD:
		b.dmaEngine.WriteLength(ch, value)
	case addr.DMA0CNT_H - addr.DMA0SAD:
		b.dmaEngine.WriteControl(ch, value)
	}
}

func (b *Bus) readTimerRegister(offset uint32) uint16 {
	ch := int((offset - addr.TM0CNT_L) / addr.TMChannel)
	regOffset := (offset - addr.TM0CNT_L) % addr.TMChannel
	if regOffset == 0 {
		return b.timers.ReadCounter(ch)
	}
	return b.timers.ReadControl(ch)
}

func (b *Bus) writeTimerRegister(offset uint32, value uint16) {
	ch := int((offset - addr.TM0CNT_L) / addr.TMChannel)
	regOffset := (offset - addr.TM0CNT_L) % addr.TMChannel
	if regOffset == 0 {
		b.timers.WriteReload(ch, value)
	} else {
		b.timers.WriteControl(ch, value)
	}
}

// State is the portion of bus state a save state needs beyond what the
// attached subsystems already serialize themselves: the two flat RAM
// regions, WAITCNT/KEYCNT and the Game Pak prefetch unit's queue.
type State struct {
	EWRAM, IWRAM []byte
	KeyCnt       uint16
	WaitcntRaw   uint16

	PrefetchActive      bool
	PrefetchCount       int
	PrefetchHeadAddress uint32
	PrefetchLastAddress uint32
	PrefetchCountdown   int64
	PrefetchThumb       bool
	PrefetchWasDisabled bool

	DMALatchSAD [4]uint32
	DMALatchDAD [4]uint32
}

// SaveState captures EWRAM/IWRAM, WAITCNT/KEYCNT and the prefetch
// queue; VRAM/OAM/PRAM are owned and snapshotted by the attached PPU.
func (b *Bus) SaveState() State {
	var s State
	s.EWRAM = append([]byte(nil), b.ewram...)
	s.IWRAM = append([]byte(nil), b.iwram...)
	s.KeyCnt = b.keycnt
	s.WaitcntRaw = b.readWAITCNT()
	s.PrefetchActive = b.prefetch.active
	s.PrefetchCount = b.prefetch.count
	s.PrefetchHeadAddress = b.prefetch.headAddress
	s.PrefetchLastAddress = b.prefetch.lastAddress
	s.PrefetchCountdown = b.prefetch.countdown
	s.PrefetchThumb = b.prefetch.thumb
	s.PrefetchWasDisabled = b.prefetch.wasDisabled
	for i := range b.dmaAddr {
		s.DMALatchSAD[i] = b.dmaAddr[i].sad
		s.DMALatchDAD[i] = b.dmaAddr[i].dad
	}
	return s
}

// LoadState restores a State captured by SaveState.
func (b *Bus) LoadState(s State) {
	copy(b.ewram, s.EWRAM)
	copy(b.iwram, s.IWRAM)
	b.keycnt = s.KeyCnt
	b.writeWAITCNT(s.WaitcntRaw)
	b.prefetch.active = s.PrefetchActive
	b.prefetch.count = s.PrefetchCount
	b.prefetch.headAddress = s.PrefetchHeadAddress
	b.prefetch.lastAddress = s.PrefetchLastAddress
	b.prefetch.countdown = s.PrefetchCountdown
	b.prefetch.thumb = s.PrefetchThumb
	b.prefetch.wasDisabled = s.PrefetchWasDisabled
	for i := range b.dmaAddr {
		b.dmaAddr[i].sad = s.DMALatchSAD[i]
		b.dmaAddr[i].dad = s.DMALatchDAD[i]
	}
}
