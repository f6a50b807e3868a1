// Package dma implements the four priority-ordered GBA DMA channels:
// occasion-triggered activation two cycles later, priority pre-emption
// mid-transfer, FIFO-destination special timing for channels 1/2, and
// video-capture timing for channel 3.
package dma

import (
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
)

// Size selects a half-word or word transfer unit.
type Size int

const (
	Half Size = iota
	Word
)

// AddressControl is the per-address increment/decrement/fixed/reload mode.
type AddressControl int

const (
	Increment AddressControl = iota
	Decrement
	Fixed
	Reload
)

// Timing selects when a channel becomes runnable.
type Timing int

const (
	Immediate Timing = iota
	VBlank
	HBlank
	Special
)

// Occasion names an event that can arm matching channels.
type Occasion int

const (
	OccasionHBlank Occasion = iota
	OccasionVBlank
	OccasionVideo
	OccasionFIFOA
	OccasionFIFOB
)

// Bus is the minimal memory interface the DMA engine steals cycles
// from; internal/bus.Bus satisfies it.
type Bus interface {
	ReadHalf(addr uint32, sequential bool) uint16
	ReadWord(addr uint32, sequential bool) uint32
	WriteHalf(addr uint32, value uint16, sequential bool)
	WriteWord(addr uint32, value uint32, sequential bool)
	Step(cycles int64)
}

var srcModify = [2][4]int32{
	Half: {2, -2, 0, 0},
	Word: {4, -4, 0, 0},
}

var dstModify = [2][4]int32{
	Half: {2, -2, 0, 2},
	Word: {4, -4, 0, 4},
}

// dmaFromBitset mirrors the reference's priority-lookup table: for a
// 4-bit "runnable" set, pick the lowest-numbered (highest priority) channel.
var dmaFromBitset = [16]int{
	-1, 0, 1, 0, 2, 0, 1, 0, 3, 0, 1, 0, 2, 0, 1, 0,
}

var lengthMask = [4]uint32{0x3FFF, 0x3FFF, 0x3FFF, 0xFFFF}

type latch struct {
	srcAddr uint32
	dstAddr uint32
	length  uint32
	busData uint32
}

type channel struct {
	id int

	srcAddr uint32
	dstAddr uint32
	length  uint16

	srcCntl   AddressControl
	dstCntl   AddressControl
	size      Size
	timing    Timing
	repeat    bool
	gamepak   bool
	interrupt bool
	enable    bool

	isFIFO bool
	latch  latch
	event  *scheduler.Event
}

// Engine owns all four channels.
type Engine struct {
	bus   Bus
	irqc  *irq.Controller
	sched *scheduler.Scheduler

	channels [4]channel

	activeID              int // -1 when nothing is runnable
	shouldReenter         bool
	runnableSet           uint8
	hblankSet             uint8
	vblankSet             uint8
	videoSet              uint8
	lastInternalBusLatch  uint32
	eepromSizeHintEnabled func(length int)
}

// New constructs the DMA engine wired to bus/irqc/sched.
func New(bus Bus, irqc *irq.Controller, sched *scheduler.Scheduler) *Engine {
	e := &Engine{bus: bus, irqc: irqc, sched: sched, activeID: -1}
	for i := range e.channels {
		e.channels[i].id = i
	}
	sched.Register(scheduler.ClassDMAActivate, e.onActivated)
	return e
}

// SetEEPROMSizeHint installs the callback the engine uses to auto-detect
// EEPROM size from the length of the first EEPROM-destined DMA.
func (e *Engine) SetEEPROMSizeHint(fn func(length int)) {
	e.eepromSizeHintEnabled = fn
}

// Request arms every channel configured for occasion and schedules
// their activation two cycles later.
func (e *Engine) Request(occasion Occasion) {
	switch occasion {
	case OccasionHBlank:
		e.scheduleSet(e.hblankSet)
	case OccasionVBlank:
		e.scheduleSet(e.vblankSet)
	case OccasionVideo:
		e.scheduleSet(e.videoSet)
	case OccasionFIFOA:
		if e.channels[1].enable && e.channels[1].timing == Special {
			e.scheduleSet(1 << 1)
		}
	case OccasionFIFOB:
		if e.channels[2].enable && e.channels[2].timing == Special {
			e.scheduleSet(1 << 2)
		}
	}
}

func (e *Engine) scheduleSet(bitset uint8) {
	for bitset != 0 {
		id := dmaFromBitset[bitset]
		bitset &^= 1 << uint(id)
		e.channels[id].event = e.sched.Add(2, scheduler.ClassDMAActivate, 0, uint64(id))
	}
}

func (e *Engine) onActivated(userData uint64, _ int64) {
	id := int(userData)
	e.channels[id].event = nil

	if e.runnableSet == 0 {
		e.activeID = id
	} else if id < e.activeID {
		e.activeID = id
		e.shouldReenter = true
	}
	e.runnableSet |= 1 << uint(id)
}

func (e *Engine) selectNextDMA() {
	e.activeID = dmaFromBitset[e.runnableSet]
}

// IsRunning reports whether any channel is currently runnable.
func (e *Engine) IsRunning() bool { return e.runnableSet != 0 }

// HasVideoTransferDMA reports whether channel 3 is armed for video
// (special-timing) capture DMA, the condition the PPU uses to decide
// whether to call Request(OccasionVideo) each visible scanline.
func (e *Engine) HasVideoTransferDMA() bool {
	return e.channels[3].enable && e.channels[3].timing == Special
}

// StopVideoTransferDMA disables channel 3 at VCOUNT 162.
func (e *Engine) StopVideoTransferDMA() {
	ch := &e.channels[3]
	if ch.enable {
		ch.enable = false
		e.onChannelWritten(ch, true)
	}
}

// Run executes every currently-runnable channel to completion,
// stealing bus cycles, re-checking for priority pre-emption between
// each transferred unit.
func (e *Engine) Run() int64 {
	start := e.sched.Now()

	e.bus.Step(1)
	for e.IsRunning() {
		e.runChannel()
	}
	e.bus.Step(1)

	return int64(e.sched.Now() - start)
}

func (e *Engine) runChannel() {
	ch := &e.channels[e.activeID]
	size := ch.size
	var dstMod int32
	if ch.isFIFO {
		size = Word
		dstMod = 0
	} else {
		dstMod = dstModify[size][ch.dstCntl]
	}
	srcMod := srcModify[size][ch.srcCntl]

	didAccessROM := false

	for ch.latch.length != 0 {
		if e.shouldReenter {
			e.shouldReenter = false
			return
		}

		srcAddr := ch.latch.srcAddr
		dstAddr := ch.latch.dstAddr

		srcSeq, dstSeq := true, true
		if !didAccessROM {
			if srcAddr >= 0x0800_0000 {
				srcSeq = false
				didAccessROM = true
			} else if dstAddr >= 0x0800_0000 {
				dstSeq = false
				didAccessROM = true
			}
		}

		if size == Half {
			var value uint16
			if srcAddr >= 0x0200_0000 {
				value = e.bus.ReadHalf(srcAddr, srcSeq)
				ch.latch.busData = uint32(value)<<16 | uint32(value)
				e.lastInternalBusLatch = ch.latch.busData
			} else {
				if dstAddr&2 != 0 {
					value = uint16(ch.latch.busData >> 16)
				} else {
					value = uint16(ch.latch.busData)
				}
				e.bus.Step(1)
			}
			e.bus.WriteHalf(dstAddr, value, dstSeq)
		} else {
			if srcAddr >= 0x0200_0000 {
				ch.latch.busData = e.bus.ReadWord(srcAddr, srcSeq)
				e.lastInternalBusLatch = ch.latch.busData
			} else {
				e.bus.Step(1)
			}
			e.bus.WriteWord(dstAddr, ch.latch.busData, dstSeq)
		}

		ch.latch.srcAddr = uint32(int64(ch.latch.srcAddr) + int64(srcMod))
		ch.latch.dstAddr = uint32(int64(ch.latch.dstAddr) + int64(dstMod))
		ch.latch.length--
	}

	e.runnableSet &^= 1 << uint(ch.id)

	if ch.interrupt {
		e.irqc.Raise(dmaIRQSource(ch.id))
	}

	if ch.repeat && ch.timing != Immediate {
		if ch.isFIFO {
			ch.latch.length = 4
		} else {
			ch.latch.length = uint32(ch.length) & lengthMask[ch.id]
			if ch.latch.length == 0 {
				ch.latch.length = lengthMask[ch.id] + 1
			}
		}
		if ch.dstCntl == Reload && !ch.isFIFO {
			mask := uint32(^uint32(1))
			if ch.size == Word {
				mask = ^uint32(3)
			}
			ch.latch.dstAddr = ch.dstAddr & mask
		}
	} else {
		e.removeFromSets(ch)
		ch.enable = false
	}

	e.selectNextDMA()
}

// SAD/DAD/CNT register access -----------------------------------------

// WriteSAD writes 32 bits of the source-address register.
func (e *Engine) WriteSAD(id int, value uint32) {
	mask := srcAddrMask(id)
	e.channels[id].srcAddr = value & mask
}

// WriteDAD writes 32 bits of the destination-address register.
func (e *Engine) WriteDAD(id int, value uint32) {
	mask := dstAddrMask(id)
	e.channels[id].dstAddr = value & mask
}

// WriteLength writes the 16-bit transfer-count register.
func (e *Engine) WriteLength(id int, value uint16) {
	e.channels[id].length = value
}

// WriteControl writes the packed DMAxCNT_H control register.
func (e *Engine) WriteControl(id int, value uint16) {
	ch := &e.channels[id]
	enableOld := ch.enable

	ch.dstCntl = AddressControl((value >> 5) & 3)
	ch.srcCntl = AddressControl((value >> 7) & 3)
	ch.size = Size((value >> 10) & 1)
	ch.timing = Timing((value >> 12) & 3)
	ch.repeat = value&(1<<9) != 0
	ch.gamepak = value&(1<<11) != 0 && id == 3
	ch.interrupt = value&(1<<14) != 0
	ch.enable = value&(1<<15) != 0

	e.onChannelWritten(ch, enableOld)
}

// ReadControl returns the packed DMAxCNT_H register value.
func (e *Engine) ReadControl(id int) uint16 {
	ch := &e.channels[id]
	v := uint16(ch.dstCntl)<<5 | uint16(ch.srcCntl)<<7 | uint16(ch.size)<<10 | uint16(ch.timing)<<12
	if ch.repeat {
		v |= 1 << 9
	}
	if ch.gamepak {
		v |= 1 << 11
	}
	if ch.interrupt {
		v |= 1 << 14
	}
	if ch.enable {
		v |= 1 << 15
	}
	return v
}

func (e *Engine) onChannelWritten(ch *channel, enableOld bool) {
	enableNew := ch.enable
	e.removeFromSets(ch)

	if enableNew {
		if !enableOld {
			ch.latch.dstAddr = ch.dstAddr
			ch.latch.srcAddr = ch.srcAddr

			if ch.timing == Special && (ch.id == 1 || ch.id == 2) {
				ch.isFIFO = true
				ch.size = Word
				ch.latch.length = 4
				ch.latch.srcAddr &^= 3
				ch.latch.dstAddr &^= 3
			} else {
				ch.isFIFO = false
				var mask uint32 = ^uint32(1)
				if ch.size == Word {
					mask = ^uint32(3)
				}
				ch.latch.srcAddr &= mask
				ch.latch.dstAddr &= mask
				ch.latch.length = uint32(ch.length) & lengthMask[ch.id]
				if ch.latch.length == 0 {
					ch.latch.length = lengthMask[ch.id] + 1
				}

				if ch.timing == Immediate {
					e.scheduleSet(1 << uint(ch.id))
				} else {
					e.addToSet(ch)
				}

				if e.eepromSizeHintEnabled != nil && ch.dstAddr >= 0x0D00_0000 {
					e.eepromSizeHintEnabled(int(ch.length))
				}
			}
		} else if ch.event == nil {
			e.addToSet(ch)
			if ch.id == e.activeID {
				e.shouldReenter = true
			}
		}
	} else {
		e.runnableSet &^= 1 << uint(ch.id)
		if ch.event != nil {
			e.sched.Cancel(ch.event)
			ch.event = nil
		}
		if ch.id == e.activeID {
			e.shouldReenter = true
			e.selectNextDMA()
		}
	}
}

func (e *Engine) addToSet(ch *channel) {
	switch ch.timing {
	case HBlank:
		e.hblankSet |= 1 << uint(ch.id)
	case VBlank:
		e.vblankSet |= 1 << uint(ch.id)
	case Special:
		if ch.id == 3 {
			e.videoSet |= 1 << 3
		}
	}
}

func (e *Engine) removeFromSets(ch *channel) {
	bit := uint8(1) << uint(ch.id)
	e.hblankSet &^= bit
	e.vblankSet &^= bit
	e.videoSet &^= bit
}

func srcAddrMask(id int) uint32 {
	if id == 0 {
		return 0x07FF_FFFF
	}
	return 0x0FFF_FFFF
}

func dstAddrMask(id int) uint32 {
	if id == 3 {
		return 0x0FFF_FFFF
	}
	return 0x07FF_FFFF
}

func dmaIRQSource(id int) irq.Source {
	switch id {
	case 0:
		return irq.DMA0
	case 1:
		return irq.DMA1
	case 2:
		return irq.DMA2
	default:
		return irq.DMA3
	}
}

// ChannelState is one DMA channel's full register and mid-transfer
// latch state, plus its pending-activation event's UID for re-linking
// after a scheduler restore.
type ChannelState struct {
	SrcAddr, DstAddr            uint32
	Length                      uint16
	SrcCntl, DstCntl             AddressControl
	Size                        Size
	Timing                      Timing
	Repeat, Gamepak, Interrupt, Enable bool
	IsFIFO                      bool
	LatchSrc, LatchDst, LatchLen, LatchBus uint32
	EventUID                    uint64
}

// State is the full DMA engine snapshot.
type State struct {
	Channels    [4]ChannelState
	ActiveID    int
	RunnableSet uint8
	HBlankSet   uint8
	VBlankSet   uint8
	VideoSet    uint8
	LastInternalBusLatch uint32
}

// SaveState captures every channel and the engine's priority/arm bitsets.
func (e *Engine) SaveState() State {
	var s State
	for i := range e.channels {
		ch := &e.channels[i]
		cs := ChannelState{
			SrcAddr: ch.srcAddr, DstAddr: ch.dstAddr, Length: ch.length,
			SrcCntl: ch.srcCntl, DstCntl: ch.dstCntl, Size: ch.size,
			Timing: ch.timing, Repeat: ch.repeat, Gamepak: ch.gamepak,
			Interrupt: ch.interrupt, Enable: ch.enable, IsFIFO: ch.isFIFO,
			LatchSrc: ch.latch.srcAddr, LatchDst: ch.latch.dstAddr,
			LatchLen: ch.latch.length, LatchBus: ch.latch.busData,
		}
		if ch.event != nil {
			cs.EventUID = ch.event.UID()
		}
		s.Channels[i] = cs
	}
	s.ActiveID = e.activeID
	s.RunnableSet = e.runnableSet
	s.HBlankSet = e.hblankSet
	s.VBlankSet = e.vblankSet
	s.VideoSet = e.videoSet
	s.LastInternalBusLatch = e.lastInternalBusLatch
	return s
}

// LoadState restores a State. Call after scheduler.Restore so
// EventByUID can re-link each channel's pending activation event.
func (e *Engine) LoadState(s State, sched *scheduler.Scheduler) {
	for i := range e.channels {
		ch := &e.channels[i]
		cs := s.Channels[i]
		ch.srcAddr, ch.dstAddr, ch.length = cs.SrcAddr, cs.DstAddr, cs.Length
		ch.srcCntl, ch.dstCntl, ch.size, ch.timing = cs.SrcCntl, cs.DstCntl, cs.Size, cs.Timing
		ch.repeat, ch.gamepak, ch.interrupt, ch.enable = cs.Repeat, cs.Gamepak, cs.Interrupt, cs.Enable
		ch.isFIFO = cs.IsFIFO
		ch.latch = latch{srcAddr: cs.LatchSrc, dstAddr: cs.LatchDst, length: cs.LatchLen, busData: cs.LatchBus}
		ch.event = nil
		if cs.EventUID != 0 {
			ch.event = sched.EventByUID(cs.EventUID)
		}
	}
	e.activeID = s.ActiveID
	e.runnableSet = s.RunnableSet
	e.hblankSet = s.HBlankSet
	e.vblankSet = s.VBlankSet
	e.videoSet = s.VideoSet
	e.lastInternalBusLatch = s.LastInternalBusLatch
}
