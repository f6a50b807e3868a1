package cpu

// Bus is the memory/IO port the CPU drives; satisfied by *bus.Bus.
// Every access steps the bus's internal scheduler, so cycle accounting
// falls out of calling these methods rather than being tracked here.
type Bus interface {
	ReadByte(address uint32, sequential bool) byte
	ReadHalf(address uint32, sequential bool) uint16
	ReadWord(address uint32, sequential bool) uint32
	WriteByte(address uint32, value byte, sequential bool)
	WriteHalf(address uint32, value uint16, sequential bool)
	WriteWord(address uint32, value uint32, sequential bool)
	FetchCode(address uint32, width int, sequential bool) uint32
	Idle()
}

// IRQLine reports the IRQ controller's CPU-visible asserted line.
type IRQLine interface {
	Line() bool
}

// pipeline models the two-deep prefetch queue: slot 0 is the next
// instruction to execute, slot 1 is already fetched and becomes slot 0
// on the following Step.
type pipeline struct {
	addr [2]uint32
	op   [2]uint32
	seq  [2]bool
}

// CPU is the ARM7TDMI interpreter: register file, pipeline and the
// two ARM/Thumb dispatch tables selected by CPSR.T.
type CPU struct {
	regs registerFile
	bus  Bus
	irq  IRQLine

	pipe pipeline

	halted    bool
	pcWritten bool
}

// New returns a CPU wired to bus and irq, reset into supervisor mode
// with interrupts masked (the ARM7TDMI reset state).
func New(bus Bus, irq IRQLine) *CPU {
	c := &CPU{bus: bus, irq: irq, regs: newRegisterFile()}
	c.flushPipeline()
	return c
}

// PC returns the raw program counter register (pipeline-ahead value,
// i.e. the address of the third instruction behind the one executing).
func (c *CPU) PC() uint32 { return c.regs.Get(15) }

// ThumbMode reports CPSR.T, used by bus.AttachPCProbe for prefetch
// width decisions.
func (c *CPU) ThumbMode() bool { return c.regs.cpsr.Thumb() }

// instrSize returns 2 in Thumb mode, 4 in ARM mode.
func (c *CPU) instrSize() uint32 {
	if c.regs.cpsr.Thumb() {
		return 2
	}
	return 4
}

// flushPipeline discards the prefetch queue and refills both slots
// from the current PC, used after any write to R15 or a mode/state
// switch.
func (c *CPU) flushPipeline() {
	size := c.instrSize()
	width := 4
	if size == 2 {
		width = 2
	}
	pc := c.regs.Get(15) &^ (size - 1)

	c.regs.Set(15, pc)
	c.pipe.addr[0] = pc
	c.pipe.op[0] = c.bus.FetchCode(pc, width, false)
	c.pipe.seq[0] = false

	c.regs.Set(15, pc+size)
	c.pipe.addr[1] = pc + size
	c.pipe.op[1] = c.bus.FetchCode(pc+size, width, true)
	c.pipe.seq[1] = true

	c.regs.Set(15, pc+2*size)
}

// Step executes the instruction currently sitting in pipeline slot 0.
// While executing, c.regs.Get(15) reads the architectural
// "PC is 2 instructions ahead" value, matching real PC-relative
// operand reads. If the instruction does not itself write PC, Step
// shifts slot 1 into slot 0 and fetches a new instruction behind it;
// otherwise the instruction's own writePC call already reloaded the
// whole pipeline. Finally it samples the IRQ line at the instruction
// boundary, matching the ARM7TDMI's instruction-retire IRQ-sampling point.
func (c *CPU) Step() {
	if c.halted {
		if c.irq.Line() {
			c.halted = false
		} else {
			c.bus.Idle()
			return
		}
	}

	opcode := c.pipe.op[0]
	addr := c.pipe.addr[0]

	c.pcWritten = false
	if c.regs.cpsr.Thumb() {
		c.executeThumb(uint16(opcode), addr)
	} else {
		c.executeARM(opcode, addr)
	}

	if !c.pcWritten {
		size := c.instrSize()
		width := 4
		if size == 2 {
			width = 2
		}
		c.pipe.addr[0], c.pipe.op[0], c.pipe.seq[0] = c.pipe.addr[1], c.pipe.op[1], c.pipe.seq[1]

		fetchAddr := c.regs.Get(15)
		c.pipe.addr[1] = fetchAddr
		c.pipe.op[1] = c.bus.FetchCode(fetchAddr, width, true)
		c.pipe.seq[1] = true
		c.regs.Set(15, fetchAddr+size)
	}

	if !c.regs.cpsr.IRQMask() && c.irq.Line() {
		// The next instruction after the one that just completed is at
		// addr+size; the ARM7TDMI's IRQ entry always saves that address
		// +4 into LR_irq, regardless of which state was interrupted.
		c.enterException(vectorIRQ, ModeIRQ, true, addr+c.instrSize()+4)
	}
}

// Halt parks the CPU (HALTCNT write) until the next IRQ line assertion.
func (c *CPU) Halt() { c.halted = true }

// writePC sets R15 to value and reloads the pipeline, the common tail
// of every instruction that writes to the program counter.
func (c *CPU) writePC(value uint32) {
	size := c.instrSize()
	c.regs.Set(15, value&^(size-1))
	c.flushPipeline()
	c.pcWritten = true
}

const (
	vectorReset  uint32 = 0x00
	vectorUndef  uint32 = 0x04
	vectorSWI    uint32 = 0x08
	vectorPrefetchAbort uint32 = 0x0C
	vectorDataAbort     uint32 = 0x10
	vectorIRQ    uint32 = 0x18
	vectorFIQ    uint32 = 0x1C
)

// enterException implements the ARM7TDMI's exception-entry sequence:
// bank CPSR into the target mode's SPSR, switch mode, mask IRQ (and
// FIQ for reset/FIQ), clear T, set LR, load PC from vector. returnAddr
// is the value the caller has already computed for LR, per the
// ARM7TDMI's per-exception return-address table.
func (c *CPU) enterException(vector uint32, mode Mode, maskOnly bool, returnAddr uint32) {
	oldCPSR := c.regs.cpsr

	c.regs.SetMode(mode)
	c.regs.setSPSR(oldCPSR)
	c.regs.Set(14, returnAddr)

	c.regs.cpsr = c.regs.cpsr.withIRQMask(true)
	if !maskOnly {
		c.regs.cpsr = c.regs.cpsr.withFIQMask(true)
	}
	c.regs.cpsr = c.regs.cpsr.withThumb(false)

	c.writePC(vector)
}

// RaiseReset runs the ARM7TDMI's power-on/reset sequence.
func (c *CPU) RaiseReset() {
	c.regs = newRegisterFile()
	c.flushPipeline()
}

// SetInitialPC seeds R15 and reloads the pipeline; used by the console
// root object to point execution at the cartridge entry point (or the
// BIOS reset vector) before the first Step.
func (c *CPU) SetInitialPC(address uint32) {
	c.regs.Set(15, address)
	c.flushPipeline()
}

// Register reads one of the 16 current (possibly banked) general
// registers, a read-only inspection hook for debugging and save-states.
func (c *CPU) Register(n int) uint32 { return c.regs.Get(n) }

// SetRegister writes one of the 16 current general registers; used by
// save-state restore. Writing R15 does not reload the pipeline — callers
// restoring a snapshot must call SetInitialPC afterward instead.
func (c *CPU) SetRegister(n int, value uint32) { c.regs.Set(n, value) }

// CPSR returns the current program status register.
func (c *CPU) CPSR() uint32 { return uint32(c.regs.cpsr) }

// SetCPSR restores CPSR from a save-state, banking registers if the
// mode field differs from the current mode.
func (c *CPU) SetCPSR(value uint32) { c.regs.SetMode(PSR(value).Mode()); c.regs.cpsr = PSR(value) }

// Halted reports whether the CPU is parked awaiting an IRQ.
func (c *CPU) Halted() bool { return c.halted }

// SetHalted forces the halt flag, used by save-state restore to put
// the CPU back into the exact wait state it was snapshotted in.
func (c *CPU) SetHalted(h bool) { c.halted = h }

// State is the full banked register file, serialized verbatim by
// internal/savestate rather than reconstructed from CPSR/mode
// switches, since a saved mode's shadow banks must survive a restore
// even while CPSR briefly names a different current mode.
type State struct {
	R    [16]uint32
	Bank [bankCount][7]uint32
	CPSR uint32
	SPSR [bankCount]uint32
	Halted bool
}

// SaveState dumps every banked register and both status registers.
func (c *CPU) SaveState() State {
	var s State
	s.R = c.regs.r
	s.Bank = c.regs.bank
	s.CPSR = uint32(c.regs.cpsr)
	for i, p := range c.regs.spsr {
		s.SPSR[i] = uint32(p)
	}
	s.Halted = c.halted
	return s
}

// LoadState restores a State captured by SaveState and reloads the
// pipeline from the restored R15/CPSR.Thumb.
func (c *CPU) LoadState(s State) {
	c.regs.r = s.R
	c.regs.bank = s.Bank
	c.regs.cpsr = PSR(s.CPSR)
	for i, v := range s.SPSR {
		c.regs.spsr[i] = PSR(v)
	}
	c.halted = s.Halted
	c.flushPipeline()
}
