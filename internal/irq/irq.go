// Package irq implements the GBA interrupt controller: IE/IF/IME plus
// the one-cycle-delayed latch of both register writes and the CPU's
// IRQ line.
package irq

import (
	"log/slog"

	"github.com/valerio/gbacore/internal/scheduler"
)

// Source identifies one of the interrupt lines OR-ed into IF.
type Source int

const (
	VBlank Source = iota
	HBlank
	VCount
	Timer0
	Timer1
	Timer2
	Timer3
	Serial
	DMA0
	DMA1
	DMA2
	DMA3
	Keypad
	GamePak
)

var sourceBit = [...]uint16{
	VBlank:  1 << 0,
	HBlank:  1 << 1,
	VCount:  1 << 2,
	Timer0:  1 << 3,
	Timer1:  1 << 4,
	Timer2:  1 << 5,
	Timer3:  1 << 6,
	Serial:  1 << 7,
	DMA0:    1 << 8,
	DMA1:    1 << 9,
	DMA2:    1 << 10,
	DMA3:    1 << 11,
	Keypad:  1 << 12,
	GamePak: 1 << 13,
}

// KeypadCondition selects how KEYCNT's selected keys combine to raise
// the keypad interrupt: AND requires every selected key pressed, OR
// fires on any one of them.
type KeypadCondition int

const (
	KeypadOR KeypadCondition = iota
	KeypadAND
)

// Controller holds IE, IF and IME plus the pending (not yet latched)
// write values, and the CPU-visible line state.
type Controller struct {
	sched *scheduler.Scheduler

	ie  uint16
	iff uint16
	ime bool

	// line is the one-cycle-delayed sampled value of (IE&IF)!=0 && IME,
	// which is what the CPU actually observes at instruction boundaries.
	line bool

	pendingIE  uint16
	pendingIF  uint16
	pendingIME bool
	writePend  bool
}

// New creates a controller wired to sched; register writes and raises
// take effect through the scheduler events registered here.
func New(sched *scheduler.Scheduler) *Controller {
	c := &Controller{sched: sched}
	sched.Register(scheduler.ClassIRQUpdateIEIF, c.applyPendingWrite)
	sched.Register(scheduler.ClassIRQUpdateLine, c.updateLine)
	return c
}

// IE returns the current (already latched) interrupt-enable register.
func (c *Controller) IE() uint16 { return c.ie }

// IF returns the current (already latched) interrupt-request register.
func (c *Controller) IF() uint16 { return c.iff }

// IME returns the current (already latched) master enable bit.
func (c *Controller) IME() bool { return c.ime }

// Line reports the CPU-visible IRQ line: whether the CPU should take
// the IRQ exception at the next instruction boundary. This is a
// one-cycle-delayed function of (IE&IF)!=0 && IME, not the live value.
func (c *Controller) Line() bool { return c.line }

// Raise OR-s source's bit into the pending IF image and schedules the
// one-cycle latch, matching the reference's write-delay behavior for
// IF: IF shows the request one cycle after it happens, and Line
// follows one cycle after that.
func (c *Controller) Raise(source Source) {
	c.pendingIF |= sourceBit[source]
	c.schedulePendingWrite()
}

// WriteIE stages a write to IE; applied one cycle later.
func (c *Controller) WriteIE(value uint16) {
	c.pendingIE = value
	c.pendingIF = c.iff
	c.schedulePendingWrite()
}

// WriteIF clears (write-one-to-clear) the named bits of IF; applied
// one cycle later.
func (c *Controller) WriteIF(value uint16) {
	c.pendingIE = c.ie
	c.pendingIF = c.iff &^ value
	c.schedulePendingWrite()
}

// WriteIME stages a write to IME; applied one cycle later.
func (c *Controller) WriteIME(enabled bool) {
	c.pendingIME = enabled
	c.schedulePendingWrite()
}

func (c *Controller) schedulePendingWrite() {
	if !c.writePend {
		c.writePend = true
		c.sched.Add(1, scheduler.ClassIRQUpdateIEIF, 0, 0)
	}
}

func (c *Controller) applyPendingWrite(uint64, int64) {
	c.writePend = false
	c.ie = c.pendingIE
	c.iff = c.pendingIF
	c.ime = c.pendingIME
	c.pendingIF = c.iff
	c.pendingIE = c.ie
	c.pendingIME = c.ime
	c.sched.Add(1, scheduler.ClassIRQUpdateLine, 0, 0)
}

func (c *Controller) updateLine(uint64, int64) {
	wasAsserted := c.line
	c.line = c.ime && (c.ie&c.iff) != 0
	if c.line && !wasAsserted {
		slog.Debug("irq: line asserted", "ie", c.ie, "if", c.iff)
	}
}

// State is the register-level snapshot a save state needs; the
// pending-write latch is not carried (a save taken mid-latch is
// indistinguishable from one taken a cycle later, since the pending
// values always equal the committed ones outside of that one cycle).
type State struct {
	IE, IF uint16
	IME    bool
	Line   bool
}

// SaveState captures IE/IF/IME and the sampled CPU-visible line.
func (c *Controller) SaveState() State {
	return State{IE: c.ie, IF: c.iff, IME: c.ime, Line: c.line}
}

// LoadState restores a State captured by SaveState.
func (c *Controller) LoadState(s State) {
	c.ie, c.iff, c.ime, c.line = s.IE, s.IF, s.IME, s.Line
	c.pendingIE, c.pendingIF, c.pendingIME = s.IE, s.IF, s.IME
	c.writePend = false
}
