package timer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
	"github.com/valerio/gbacore/internal/timer"
)

func setup() (*scheduler.Scheduler, *irq.Controller, *timer.Controller) {
	sched := scheduler.New()
	irqc := irq.New(sched)
	tc := timer.New(sched, irqc, nil)
	return sched, irqc, tc
}

// Reload = R, enabling produces an overflow exactly (0x10000-R)<<shift
// cycles later.
func TestOverflowTimingMatchesFormula(t *testing.T) {
	sched, _, tc := setup()

	const reload = 0xFFF0
	tc.WriteReload(0, reload)
	sched.AddCycles(1)
	tc.WriteControl(0, 1<<7) // enable, prescaler /1
	sched.AddCycles(1)

	expected := uint64(0x10000-reload) << 0
	sched.AddCycles(int64(expected) - 1)
	assert.Equal(t, uint16(0xFFFF), tc.ReadCounter(0))

	sched.AddCycles(1)
	assert.Equal(t, uint16(reload), tc.ReadCounter(0))
}

func TestCascadeChainProducesMonotoneCounter(t *testing.T) {
	sched, _, tc := setup()

	for ch := 1; ch < 4; ch++ {
		tc.WriteReload(ch, 0)
		sched.AddCycles(1)
		tc.WriteControl(ch, (1<<7)|(1<<2)) // enable + cascade
		sched.AddCycles(1)
	}
	tc.WriteReload(0, 0)
	sched.AddCycles(1)
	tc.WriteControl(0, 1<<7) // enable, no cascade, prescaler /1
	sched.AddCycles(1)

	// Channel 0 counts from 0 and overflows once every 65536 cycles.
	// After 65536 cycles it has wrapped back to 0 and channel 1 has
	// incremented once.
	sched.AddCycles(65536)
	assert.Equal(t, uint16(0), tc.ReadCounter(0))
	assert.Equal(t, uint16(1), tc.ReadCounter(1))
}

func TestReadCounterAccountsForElapsedCycles(t *testing.T) {
	sched, _, tc := setup()

	tc.WriteReload(0, 0)
	sched.AddCycles(1)
	tc.WriteControl(0, (1<<7)|1) // enable, prescaler /64
	sched.AddCycles(1)

	sched.AddCycles(128)
	assert.Equal(t, uint16(2), tc.ReadCounter(0))
}
