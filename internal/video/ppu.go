package video

import (
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
)

// DMARequester is the narrow slice of *dma.Engine the PPU needs: arm
// HBlank/VBlank-triggered channels and manage channel 3's special
// video-capture window.
type DMARequester interface {
	Request(occasion dmaOccasion)
	HasVideoTransferDMA() bool
	StopVideoTransferDMA()
}

// dmaOccasion mirrors dma.Occasion's three PPU-relevant values without
// importing the dma package (which does not need to know about video).
// *dma.Engine's Request method takes dma.Occasion, whose underlying
// type and values match this one, so an adapter is wired in by Console.
type dmaOccasion = int

const (
	occasionHBlank dmaOccasion = 0
	occasionVBlank dmaOccasion = 1
	occasionVideo  dmaOccasion = 2
)

// state names the four scanline phases: HDraw/HBlank crossed with
// VDraw/VBlank.
type state int

const (
	stateHDrawVDraw state = iota
	stateHBlankVDraw
	stateHDrawVBlank
	stateHBlankVBlank
)

// PPU is the GBA picture processing unit: scanline timing state
// machine, background/sprite/window rendering and the blend
// compositor, driven entirely off scheduler events.
type PPU struct {
	sched *scheduler.Scheduler
	irqc  *irq.Controller
	dma   DMARequester

	regs registers

	vram [0x18000]byte
	oam  [0x400]byte
	pram [0x400]byte

	state state
	frame uint64

	spriteLineBuf     [ScreenWidth]spritePixel
	spriteLineBufNext [ScreenWidth]spritePixel

	bgLine [4][ScreenWidth]bgPixel

	fb *FrameBuffer
}

// New constructs a PPU wired to sched/irqc/dma and schedules the
// first HDraw event, matching the reference's "reset into VBlank line
// 225" power-on state approximated here as a clean line-0 HDraw start
// for determinism in tests.
func New(sched *scheduler.Scheduler, irqc *irq.Controller, dma DMARequester) *PPU {
	p := &PPU{sched: sched, irqc: irqc, dma: dma, fb: &FrameBuffer{}}
	sched.Register(scheduler.ClassPPUHDrawToHBlank, p.onHDrawEnd)
	sched.Register(scheduler.ClassPPUHBlankToHDraw, p.onHBlankEnd)
	sched.Register(scheduler.ClassPPULatchDISPSTAT, p.onLatchDISPSTAT)
	sched.Register(scheduler.ClassPPUVideoDMAStop, p.onVideoDMAStop)

	p.regs.bg[2].pa, p.regs.bg[2].pd = 0x100, 0x100
	p.regs.bg[3].pa, p.regs.bg[3].pd = 0x100, 0x100

	p.state = stateHDrawVDraw
	sched.Add(hdrawCycles, scheduler.ClassPPUHDrawToHBlank, 1, 0)
	return p
}

// FrameBuffer returns the single output buffer, rendered into one
// scanline at a time; a full frame is in it once VBlank begins.
func (p *PPU) FrameBuffer() *FrameBuffer { return p.fb }

// onHDrawEnd fires 1007 cycles into a visible or VBlank scanline: ends
// HDraw, begins HBlank, raises the HBlank IRQ/DMA if VCOUNT < 160.
func (p *PPU) onHDrawEnd(uint64, int64) {
	p.regs.setFlag(1<<1, true) // hblank flag

	if int(p.regs.vcount) < visibleLines {
		p.renderScanline(int(p.regs.vcount))
		p.state = stateHBlankVDraw
		p.dma.Request(occasionHBlank)
		if p.regs.hblankIRQEnabled() {
			p.irqc.Raise(irq.HBlank)
		}
	} else {
		p.state = stateHBlankVBlank
	}

	p.sched.Add(hblankCycles, scheduler.ClassPPUHBlankToHDraw, 1, 0)
}

// onHBlankEnd fires at the end of HBlank: increments VCOUNT, clears
// the HBlank flag, and on VCOUNT==160 begins VBlank (raising its IRQ
// and requesting VBlank DMA); VCOUNT wraps 227->0 back into visible
// HDraw.
func (p *PPU) onHBlankEnd(uint64, int64) {
	p.regs.setFlag(1<<1, false)
	p.regs.vcount++

	if int(p.regs.vcount) >= totalLines {
		p.regs.vcount = 0
		p.frame++
		p.latchAffineReferencePoints()
	}

	switch int(p.regs.vcount) {
	case visibleLines:
		p.regs.setFlag(1<<0, true) // vblank flag
		p.dma.Request(occasionVBlank)
		if p.regs.vblankIRQEnabled() {
			p.irqc.Raise(irq.VBlank)
		}
	case visibleLines + 2:
		if p.dma.HasVideoTransferDMA() {
			p.sched.Add(0, scheduler.ClassPPUVideoDMAStop, 2, 0)
		}
	case totalLines - 1:
		p.regs.setFlag(1<<0, false) // vblank flag clears one line before wraparound
	}

	if int(p.regs.vcount) < visibleLines {
		p.state = stateHDrawVDraw
		if p.dma.HasVideoTransferDMA() && int(p.regs.vcount) >= 2 {
			p.dma.Request(occasionVideo)
		}
	} else {
		p.state = stateHDrawVBlank
	}

	p.sched.Add(latchDelay, scheduler.ClassPPULatchDISPSTAT, 0, 0)
	p.sched.Add(hdrawCycles, scheduler.ClassPPUHDrawToHBlank, 1, 0)
}

// onLatchDISPSTAT updates the VCOUNT-match flag/IRQ one cycle after
// VCOUNT changes, via a scheduled event rather than inline with the
// VCOUNT update itself.
func (p *PPU) onLatchDISPSTAT(uint64, int64) {
	matched := p.regs.vcount == p.regs.vcountSetting()
	wasMatched := p.regs.vcountFlag()
	p.regs.setFlag(1<<2, matched)
	if matched && !wasMatched && p.regs.vcountIRQEnabled() {
		p.irqc.Raise(irq.VCount)
	}
}

func (p *PPU) onVideoDMAStop(uint64, int64) {
	p.dma.StopVideoTransferDMA()
}

// latchAffineReferencePoints reloads BG2/BG3's running (x, y) from
// BGxX/BGxY at the start of every frame, when VCOUNT wraps to 0.
func (p *PPU) latchAffineReferencePoints() {
	p.regs.bg[2].x = p.regs.bg[2].refX
	p.regs.bg[2].y = p.regs.bg[2].refY
	p.regs.bg[3].x = p.regs.bg[3].refX
	p.regs.bg[3].y = p.regs.bg[3].refY
}

// VCount exposes the current scanline for save-state/debug use.
func (p *PPU) VCount() int { return int(p.regs.vcount) }

// Frame exposes the frame counter, used by Console to detect
// frame-boundary for the host run loop.
func (p *PPU) Frame() uint64 { return p.frame }

// BGState mirrors one background's decoded register fields plus its
// running affine reference point, which ReadRegister cannot return
// since BGxX/BGxY are write-only on real hardware.
type BGState struct {
	Cnt              uint16
	Hofs, Vofs       uint16
	X, Y             int32
	RefX, RefY       int32
	PA, PB, PC, PD   int16
}

// State is the full PPU snapshot: every register (including the
// write-only affine reference points), the three backing memories,
// and the scanline state machine's position.
type State struct {
	Dispcnt, Dispstat, VCountReg, Greenswap uint16
	BG                                      [4]BGState
	Win0H, Win1H, Win0V, Win1V              uint16
	WinIn, WinOut, Mosaic                   uint16
	BldCnt, BldAlpha, BldY                  uint16

	VRAM [0x18000]byte
	OAM  [0x400]byte
	PRAM [0x400]byte

	Phase int
	Frame uint64
}

// SaveState captures the full PPU snapshot.
func (p *PPU) SaveState() State {
	var s State
	r := &p.regs
	s.Dispcnt, s.Dispstat, s.VCountReg, s.Greenswap = r.dispcnt, r.dispstat, r.vcount, r.greenswap
	for i := range r.bg {
		b := &r.bg[i]
		s.BG[i] = BGState{
			Cnt: b.cnt, Hofs: b.hofs, Vofs: b.vofs,
			X: b.x, Y: b.y, RefX: b.refX, RefY: b.refY,
			PA: b.pa, PB: b.pb, PC: b.pc, PD: b.pd,
		}
	}
	s.Win0H, s.Win1H, s.Win0V, s.Win1V = r.win0h, r.win1h, r.win0v, r.win1v
	s.WinIn, s.WinOut, s.Mosaic = r.winin, r.winout, r.mosaic
	s.BldCnt, s.BldAlpha, s.BldY = r.bldcnt, r.bldalpha, r.bldy
	s.VRAM, s.OAM, s.PRAM = p.vram, p.oam, p.pram
	s.Phase, s.Frame = int(p.state), p.frame
	return s
}

// LoadState restores a State captured by SaveState. The caller is
// responsible for re-scheduling the scanline timing events, since
// those live in the shared scheduler snapshot rather than here.
func (p *PPU) LoadState(s State) {
	r := &p.regs
	r.dispcnt, r.dispstat, r.vcount, r.greenswap = s.Dispcnt, s.Dispstat, s.VCountReg, s.Greenswap
	for i := range r.bg {
		b := s.BG[i]
		r.bg[i] = background{
			cnt: b.Cnt, hofs: b.Hofs, vofs: b.Vofs,
			x: b.X, y: b.Y, refX: b.RefX, refY: b.RefY,
			pa: b.PA, pb: b.PB, pc: b.PC, pd: b.PD,
		}
	}
	r.win0h, r.win1h, r.win0v, r.win1v = s.Win0H, s.Win1H, s.Win0V, s.Win1V
	r.winin, r.winout, r.mosaic = s.WinIn, s.WinOut, s.Mosaic
	r.bldcnt, r.bldalpha, r.bldy = s.BldCnt, s.BldAlpha, s.BldY
	p.vram, p.oam, p.pram = s.VRAM, s.OAM, s.PRAM
	p.state, p.frame = state(s.Phase), s.Frame
}
