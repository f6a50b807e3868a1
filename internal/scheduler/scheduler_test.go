package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapOrdersByTimestamp(t *testing.T) {
	s := New()
	var fired []string
	s.Register(ClassTimerOverflow, func(userData uint64, _ int64) {
		fired = append(fired, string(rune('A'+userData)))
	})

	s.Add(30, ClassTimerOverflow, 0, 2)
	s.Add(10, ClassTimerOverflow, 0, 0)
	s.Add(20, ClassTimerOverflow, 0, 1)

	s.AddCycles(100)
	assert.Equal(t, []string{"A", "B", "C"}, fired)
}

func TestSamePrioritySamePriorityFiresInInsertionOrder(t *testing.T) {
	s := New()
	var fired []uint64
	s.Register(ClassDMAActivate, func(userData uint64, _ int64) {
		fired = append(fired, userData)
	})

	s.Add(5, ClassDMAActivate, 0, 1)
	s.Add(5, ClassDMAActivate, 0, 2)
	s.Add(5, ClassDMAActivate, 0, 3)

	s.AddCycles(5)
	assert.Equal(t, []uint64{1, 2, 3}, fired)
}

func TestLowerPriorityFiresFirstAtSameTimestamp(t *testing.T) {
	s := New()
	var fired []string
	s.Register(ClassTimerWriteControl, func(uint64, int64) { fired = append(fired, "write") })
	s.Register(ClassTimerOverflow, func(uint64, int64) { fired = append(fired, "overflow") })

	// Both scheduled for the same cycle; the control write (priority 1)
	// must be observed before the overflow (priority 2).
	s.Add(10, ClassTimerOverflow, 2, 0)
	s.Add(10, ClassTimerWriteControl, 1, 0)

	s.AddCycles(10)
	assert.Equal(t, []string{"write", "overflow"}, fired)
}

func TestCancelRemovesEvent(t *testing.T) {
	s := New()
	fired := false
	s.Register(ClassAPUMixer, func(uint64, int64) { fired = true })

	e := s.Add(10, ClassAPUMixer, 0, 0)
	s.Cancel(e)
	s.AddCycles(20)
	assert.False(t, fired)
}

func TestAddCyclesAdvancesNow(t *testing.T) {
	s := New()
	s.AddCycles(123)
	assert.Equal(t, uint64(123), s.Now())
}

func TestSentinelDoesNotFireBeforeMaxTimestamp(t *testing.T) {
	s := New()
	// Cancel nothing; just push now far enough that only the sentinel
	// remains reachable and confirm it never fires below MaxUint64.
	assert.NotPanics(t, func() { s.AddCycles(1_000_000) })
}

func TestEventByUIDFindsLiveEvent(t *testing.T) {
	s := New()
	e := s.Add(50, ClassIRQUpdateLine, 0, 0)
	found := s.EventByUID(e.UID())
	require.NotNil(t, found)
	assert.Equal(t, e.UID(), found.UID())
}

func TestRestoreRelinksByUID(t *testing.T) {
	s := New()
	s.Register(ClassTimerOverflow, func(uint64, int64) {})
	e := s.Add(40, ClassTimerOverflow, 0, 7)
	savedUID := e.UID()

	snap := s.Snapshot()
	s2 := New()
	s2.Register(ClassTimerOverflow, func(uint64, int64) {})
	s2.Restore(s.Now(), snap)

	found := s2.EventByUID(savedUID)
	require.NotNil(t, found)
	assert.Equal(t, uint64(40), found.Timestamp())
}

func TestMaxEventsPanicsOnOverflow(t *testing.T) {
	s := New()
	s.Register(ClassDMAActivate, func(uint64, int64) {})
	assert.Panics(t, func() {
		for i := 0; i < maxEvents; i++ {
			s.Add(uint64(i+1), ClassDMAActivate, 0, 0)
		}
	})
}
