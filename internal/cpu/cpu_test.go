package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/bus"
	"github.com/valerio/gbacore/internal/cpu"
	"github.com/valerio/gbacore/internal/dma"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
	"github.com/valerio/gbacore/internal/timer"
)

const ewramBase = 0x0200_0000

func newTestCPU() (*cpu.CPU, *bus.Bus) {
	c, b, _ := newTestCPUWithIRQ()
	return c, b
}

// newTestCPUWithIRQ also returns the IRQ controller, so a test can
// request an interrupt source directly.
func newTestCPUWithIRQ() (*cpu.CPU, *bus.Bus, *irq.Controller) {
	sched := scheduler.New()
	irqc := irq.New(sched)
	timers := timer.New(sched, irqc, nil)
	b := bus.New(sched, irqc, timers)
	b.AttachDMA(dma.New(b, irqc, sched))
	c := cpu.New(b, irqc)
	b.AttachPCProbe(c.PC, c.ThumbMode)
	b.AttachHaltSink(c.Halt)
	return c, b, irqc
}

func loadARM(b *bus.Bus, addr uint32, instrs []uint32) {
	for i, instr := range instrs {
		b.WriteWord(addr+uint32(i*4), instr, false)
	}
}

func loadThumb(b *bus.Bus, addr uint32, instrs []uint16) {
	for i, instr := range instrs {
		b.WriteHalf(addr+uint32(i*2), instr, false)
	}
}

func TestARMMovImmediateSetsRegisterAndFlags(t *testing.T) {
	c, b := newTestCPU()
	// MOV R0, #0 (S bit set) -> Z flag
	loadARM(b, ewramBase, []uint32{0xE3B00000})
	c.SetInitialPC(ewramBase)
	c.Step()

	assert.Equal(t, uint32(0), c.Register(0))
	assert.NotEqual(t, uint32(0), c.CPSR()&(1<<30)) // Z flag
}

func TestARMAddWithCarryOutAndZero(t *testing.T) {
	c, b := newTestCPU()
	loadARM(b, ewramBase, []uint32{
		0xE3E00000, // MVN R0, #0      -> R0 = 0xFFFFFFFF
		0xE2900001, // ADDS R0, R0, #1 -> result 0, C set, Z set
	})
	c.SetInitialPC(ewramBase)
	c.Step()
	assert.Equal(t, uint32(0xFFFF_FFFF), c.Register(0))

	c.Step()
	assert.Equal(t, uint32(0), c.Register(0))
	assert.NotEqual(t, uint32(0), c.CPSR()&(1<<29)) // C flag
	assert.NotEqual(t, uint32(0), c.CPSR()&(1<<30)) // Z flag
}

func TestARMBranchJumpsToComputedTarget(t *testing.T) {
	c, b := newTestCPU()
	// B +8 (skip one instruction), then MOV R0,#1 (skipped), MOV R0,#2 (target)
	loadARM(b, ewramBase, []uint32{
		0xEA000000, // B #8
		0xE3A00001, // MOV R0, #1
		0xE3A00002, // MOV R0, #2
	})
	c.SetInitialPC(ewramBase)
	c.Step() // branch
	c.Step() // MOV R0, #2
	assert.Equal(t, uint32(2), c.Register(0))
}

func TestARMBranchAndLinkSetsLR(t *testing.T) {
	c, b := newTestCPU()
	loadARM(b, ewramBase, []uint32{
		0xEB000000, // BL #8
	})
	c.SetInitialPC(ewramBase)
	c.Step()
	assert.Equal(t, uint32(ewramBase+4), c.Register(14))
}

func TestARMBranchExchangeSwitchesToThumb(t *testing.T) {
	c, b := newTestCPU()
	const thumbTarget = ewramBase + 0x100

	loadARM(b, ewramBase, []uint32{
		0xE12FFF11, // BX R1
	})
	loadThumb(b, thumbTarget, []uint16{
		0x2005, // MOV R0, #5
	})

	c.SetRegister(1, thumbTarget|1)
	c.SetInitialPC(ewramBase)
	c.Step() // BX
	assert.True(t, c.ThumbMode())

	c.Step() // MOV R0, #5 (thumb)
	assert.Equal(t, uint32(5), c.Register(0))
}

func TestThumbMoveImmediateAndALUAdd(t *testing.T) {
	c, b := newTestCPU()
	loadThumb(b, ewramBase, []uint16{
		0x2005, // MOV R0, #5
		0x2103, // MOV R1, #3
		0x1840, // ADD R0, R0, R1
	})
	c.SetCPSR(c.CPSR() | (1 << 5)) // enter Thumb state
	c.SetInitialPC(ewramBase)
	c.Step()
	c.Step()
	c.Step()
	assert.Equal(t, uint32(8), c.Register(0))
}

func TestModeSwitchBanksSPAcrossIRQAndSVC(t *testing.T) {
	c, _ := newTestCPU()
	// CPU resets into SVC mode.
	c.SetRegister(13, 0x1000)

	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(cpu.ModeIRQ))
	c.SetRegister(13, 0x2000)
	assert.Equal(t, uint32(0x2000), c.Register(13))

	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(cpu.ModeSVC))
	assert.Equal(t, uint32(0x1000), c.Register(13))
}

func TestIRQExceptionEntrySavesLRAndJumpsToVector(t *testing.T) {
	c, b, irqc := newTestCPUWithIRQ()
	loadARM(b, ewramBase, []uint32{
		0xE1A00000, // MOV R0, R0 (NOP)
	})
	c.SetInitialPC(ewramBase)
	c.SetCPSR(c.CPSR() &^ (1 << 7)) // unmask IRQ

	b.WriteHalf(0x0400_0200, 0x0001, false) // IE: VBlank
	b.WriteHalf(0x0400_0208, 0x0001, false) // IME
	irqc.Raise(irq.VBlank)                  // request VBlank
	b.Step(4)                               // let the one-cycle IRQ latch settle

	c.Step()

	assert.Equal(t, uint32(0x18), c.PC()-8) // PC reads vector+8 in ARM state
	assert.Equal(t, cpu.ModeIRQ, cpu.Mode(c.CPSR()&0x1F))
	assert.Equal(t, uint32(ewramBase+8), c.Register(14))
}
