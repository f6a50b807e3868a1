// Package console wires every subsystem onto the shared scheduler and
// exposes the run loop a host frontend drives: the single root object
// that owns CPU, bus, PPU, APU, timers, DMA and IRQ controller, and
// steps them all forward on the GBA's event-scheduled cycle axis.
package console

import (
	"fmt"
	"os"

	"github.com/valerio/gbacore/internal/audio"
	"github.com/valerio/gbacore/internal/bus"
	"github.com/valerio/gbacore/internal/cartridge"
	"github.com/valerio/gbacore/internal/cpu"
	"github.com/valerio/gbacore/internal/dma"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
	"github.com/valerio/gbacore/internal/sio"
	"github.com/valerio/gbacore/internal/timer"
	"github.com/valerio/gbacore/internal/video"
)

// cyclesPerFrame is 1232 cycles/scanline * 228 scanlines, the GBA's
// fixed frame period regardless of content.
const cyclesPerFrame = 1232 * 228

// dmaVideoAdapter narrows *dma.Engine to video.DMARequester; the two
// packages use distinct Occasion types so video never needs to import
// dma, only the three values it actually schedules.
type dmaVideoAdapter struct{ engine *dma.Engine }

func (a dmaVideoAdapter) Request(occasion int)        { a.engine.Request(dma.Occasion(occasion)) }
func (a dmaVideoAdapter) HasVideoTransferDMA() bool    { return a.engine.HasVideoTransferDMA() }
func (a dmaVideoAdapter) StopVideoTransferDMA()        { a.engine.StopVideoTransferDMA() }

// Console is the root object: it owns the scheduler and every
// subsystem, and knows how to advance emulation by whole frames.
type Console struct {
	sched *scheduler.Scheduler
	irqc  *irq.Controller
	timers *timer.Controller
	bus   *bus.Bus
	dma   *dma.Engine
	cpu   *cpu.CPU
	ppu   *video.PPU
	apu   *audio.APU
	sio   *sio.Controller
	cart  *cartridge.Cartridge

	keys bus.Keys
}

// New wires every subsystem together in the two-phase New/Attach
// pattern internal/bus and internal/dma established: construct
// leaf-first where there is no cycle, then Attach the handful of
// mutually-dependent pairs (bus<->dma, timers<->apu, ppu<->dma).
func New() *Console {
	sched := scheduler.New()
	irqc := irq.New(sched)
	apu := audio.New(sched)
	timers := timer.New(sched, irqc, apu)
	b := bus.New(sched, irqc, timers)

	dmaEngine := dma.New(b, irqc, sched)
	b.AttachDMA(dmaEngine)

	ppu := video.New(sched, irqc, dmaVideoAdapter{dmaEngine})
	b.AttachPPU(ppu)
	b.AttachAPU(apu)

	sioCtrl := sio.New(sched)
	b.AttachSIO(sioCtrl)

	cpuCore := cpu.New(b, irqc)
	b.AttachPCProbe(cpuCore.PC, cpuCore.ThumbMode)
	b.AttachHaltSink(cpuCore.Halt)

	return &Console{
		sched:  sched,
		irqc:   irqc,
		timers: timers,
		bus:    b,
		dma:    dmaEngine,
		cpu:    cpuCore,
		ppu:    ppu,
		apu:    apu,
		sio:    sioCtrl,
	}
}

// LoadBIOS installs the 16 KiB BIOS image the reset vector executes.
func (c *Console) LoadBIOS(data []byte) error { return c.bus.LoadBIOS(data) }

// LoadROM parses and attaches a cartridge image, then points the CPU
// at the BIOS reset vector (real hardware always starts execution in
// BIOS, which jumps into the cartridge after its startup checks).
func (c *Console) LoadROM(rom []byte, overrideBackup *cartridge.BackupType, hasRTC bool) error {
	cart, err := cartridge.Load(rom, overrideBackup, hasRTC)
	if err != nil {
		return fmt.Errorf("console: load ROM: %w", err)
	}
	cart.AttachScheduler(c.sched)
	c.cart = cart
	c.bus.AttachCartridge(cart)
	c.dma.SetEEPROMSizeHint(func(words int) {
		if e, ok := cart.Backup.(*cartridge.EEPROM); ok {
			e.SetSizeFromDMALength(words)
		}
	})
	c.cpu.RaiseReset()
	return nil
}

// SetKeys updates the polled input state the bus exposes as KEYINPUT.
func (c *Console) SetKeys(k bus.Keys) {
	c.keys = k
	c.bus.SetKeys(k)
}

// Keys returns the most recently set input state, for frontends that
// fold incremental InputEvents onto the current state before calling
// SetKeys.
func (c *Console) Keys() bus.Keys { return c.keys }

// RunFrame executes CPU instructions until the PPU has advanced one
// full 1232*228-cycle frame, the unit every host frontend's render
// loop drives the core by.
func (c *Console) RunFrame() {
	targetFrame := c.ppu.Frame() + 1
	for c.ppu.Frame() < targetFrame {
		c.cpu.Step()
	}
}

// FrameBuffer returns the most recently completed frame's pixels.
func (c *Console) FrameBuffer() *video.FrameBuffer { return c.ppu.FrameBuffer() }

// AudioSamples drains the stereo samples the APU's mixer produced
// since the last call.
func (c *Console) AudioSamples() []audio.Sample { return c.apu.Drain() }

// CPU exposes the core for debuggers/save-state callers.
func (c *Console) CPU() *cpu.CPU { return c.cpu }

// Scheduler exposes the shared event heap for save-state snapshot/restore.
func (c *Console) Scheduler() *scheduler.Scheduler { return c.sched }

// IRQ exposes the interrupt controller for save-state snapshot/restore.
func (c *Console) IRQ() *irq.Controller { return c.irqc }

// Timers exposes the timer controller for save-state snapshot/restore.
func (c *Console) Timers() *timer.Controller { return c.timers }

// Bus exposes the memory bus for save-state snapshot/restore.
func (c *Console) Bus() *bus.Bus { return c.bus }

// DMA exposes the DMA engine for save-state snapshot/restore.
func (c *Console) DMA() *dma.Engine { return c.dma }

// PPU exposes the video unit for save-state snapshot/restore.
func (c *Console) PPU() *video.PPU { return c.ppu }

// APU exposes the audio unit for save-state snapshot/restore.
func (c *Console) APU() *audio.APU { return c.apu }

// Cartridge exposes the loaded cartridge (nil before LoadROM) for
// save-state snapshot/restore of backup memory.
func (c *Console) Cartridge() *cartridge.Cartridge { return c.cart }

// LoadROMFile is a convenience wrapper used by cmd/gbacore.
func LoadROMFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("console: read ROM file: %w", err)
	}
	return data, nil
}
