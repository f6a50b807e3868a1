package irq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
)

func TestRaiseSetsIFBitOneCycleLater(t *testing.T) {
	sched := scheduler.New()
	c := irq.New(sched)

	c.WriteIME(true)
	c.WriteIE(1 << 0) // VBlank
	sched.AddCycles(2)

	c.Raise(irq.VBlank)
	assert.Equal(t, uint16(0), c.IF(), "write must not be visible the same cycle")

	sched.AddCycles(1)
	assert.Equal(t, uint16(1), c.IF())
}

func TestLineAssertedOnlyAfterIEIFAndIME(t *testing.T) {
	sched := scheduler.New()
	c := irq.New(sched)

	c.WriteIE(1 << 3) // Timer0
	c.WriteIME(true)
	sched.AddCycles(2)

	c.Raise(irq.Timer0)
	sched.AddCycles(1) // IE/IF latch
	assert.False(t, c.Line(), "line updates one cycle after IE/IF latch")

	sched.AddCycles(1) // line latch
	assert.True(t, c.Line())
}

func TestWriteOneToClearIF(t *testing.T) {
	sched := scheduler.New()
	c := irq.New(sched)

	c.WriteIE(0xFFFF)
	c.WriteIME(true)
	sched.AddCycles(2)

	c.Raise(irq.VBlank)
	c.Raise(irq.HBlank)
	sched.AddCycles(1)
	assert.Equal(t, uint16(0b11), c.IF())

	c.WriteIF(0b01)
	sched.AddCycles(1)
	assert.Equal(t, uint16(0b10), c.IF())
}

func TestNoLineWithoutIME(t *testing.T) {
	sched := scheduler.New()
	c := irq.New(sched)

	c.WriteIE(0xFFFF)
	c.WriteIME(false)
	sched.AddCycles(2)

	c.Raise(irq.VBlank)
	sched.AddCycles(2)
	assert.False(t, c.Line())
}
