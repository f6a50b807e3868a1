// Package scheduler implements the single time axis every gbacore
// subsystem synchronizes against: a fixed-capacity min-heap of
// timestamped callbacks, keyed by (timestamp, priority) with a UID
// tie-break.
package scheduler

import "fmt"

// maxEvents bounds the heap the way the reference scheduler does: a
// handful of subsystems (PPU, APU, 4 timers, 4 DMA channels, IRQ,
// EEPROM) each keep at most one or two events live at once.
const maxEvents = 64

// Class identifies which registered callback an event invokes. Unlike
// a closure-per-event design, a class lets save states serialize
// "timer 2 overflow" as a small integer and re-link it to the owning
// subsystem by UID after a load.
type Class uint16

const (
	// ClassEndOfQueue guards the tail of the heap; it is never meant
	// to fire and its callback panics if it ever does.
	ClassEndOfQueue Class = iota

	ClassIRQUpdateIEIF
	ClassIRQUpdateLine

	ClassTimerOverflow
	ClassTimerWriteReload
	ClassTimerWriteControl

	ClassDMAActivate

	ClassPPUHDrawToHBlank
	ClassPPUHBlankToHDraw
	ClassPPULatchDISPSTAT
	ClassPPUVideoDMAStop

	ClassAPUSequencer
	ClassAPUMixer

	ClassEEPROMReady
	ClassSIOTransferDone

	classCount
)

// Callback is invoked with the event's user data and a cycles-late
// count. The scheduler sets now to the event's own timestamp before
// each call, so the count it passes is always 0.
type Callback func(userData uint64, cyclesLate int64)

// Event is a handle into the heap. The zero value is not valid; only
// handles returned by Add should be passed to Cancel.
type Event struct {
	handle    int
	key       uint64
	uid       uint64
	userData  uint64
	class     Class
	timestamp uint64
}

// UID returns the event's stable identity for save-state re-linking.
func (e *Event) UID() uint64 { return e.uid }

// Timestamp returns the absolute cycle this event is due.
func (e *Event) Timestamp() uint64 { return e.timestamp }

// Scheduler owns the heap storage and the callback table.
type Scheduler struct {
	heap      [maxEvents]*Event
	size      int
	now       uint64
	nextUID   uint64
	callbacks [classCount]Callback
}

// New constructs a scheduler with every slot preallocated (the "raw
// new/delete for event nodes" design note: allocate once, swap-to-end
// on cancellation, never free).
func New() *Scheduler {
	s := &Scheduler{}
	for i := range s.heap {
		s.heap[i] = &Event{handle: i}
	}
	s.Register(ClassEndOfQueue, func(uint64, int64) {
		panic("scheduler: reached end of queue sentinel")
	})
	s.Reset()
	return s
}

// Reset empties the heap and re-installs the sentinel tail event.
func (s *Scheduler) Reset() {
	s.size = 0
	s.now = 0
	s.nextUID = 1
	s.Add(^uint64(0), ClassEndOfQueue, 0, 0)
}

// Register binds a callback to a class. Every component registers its
// classes before adding events; an event whose class has no callback
// makes AddCycles panic when it comes due.
func (s *Scheduler) Register(class Class, cb Callback) {
	s.callbacks[class] = cb
}

// Now returns the scheduler's current absolute cycle count.
func (s *Scheduler) Now() uint64 { return s.now }

// NextTimestamp returns the due time of the head of the heap, i.e.
// the next cycle at which AddCycles must stop to dispatch.
func (s *Scheduler) NextTimestamp() uint64 {
	return s.heap[0].timestamp
}

// RemainingCycles returns how many cycles can be advanced before the
// next event fires.
func (s *Scheduler) RemainingCycles() int64 {
	return int64(s.NextTimestamp() - s.now)
}

// Add inserts an event due at now+delay, tagged with class/priority
// (0..3) and an opaque user_data word, and returns a stable handle.
func (s *Scheduler) Add(delay uint64, class Class, priority uint8, userData uint64) *Event {
	if s.size >= maxEvents {
		panic("scheduler: reached maximum number of events")
	}
	if priority > 3 {
		panic("scheduler: priority must be between 0 and 3")
	}

	n := s.size
	s.size++
	event := s.heap[n]
	event.timestamp = s.now + delay
	event.key = (event.timestamp << 2) | uint64(priority)
	event.uid = s.nextUID
	s.nextUID++
	event.userData = userData
	event.class = class

	p := parent(n)
	for n != 0 && s.less(n, p) {
		s.swap(n, p)
		n = p
		p = parent(n)
	}
	return event
}

// Cancel removes a previously added event. Safe to call with an event
// that has already fired only if the caller has not reused the handle.
func (s *Scheduler) Cancel(e *Event) {
	s.remove(e.handle)
}

// EventByUID performs the linear scan the save-state loader needs to
// re-link a deserialized event back to a live handle.
func (s *Scheduler) EventByUID(uid uint64) *Event {
	for i := 0; i < s.size; i++ {
		if s.heap[i].uid == uid {
			return s.heap[i]
		}
	}
	return nil
}

// AddCycles advances now by n cycles, dispatching every event whose
// timestamp falls at or before the new now, in heap order, before
// returning. This is the only way time moves forward in the core.
func (s *Scheduler) AddCycles(n int64) {
	target := s.now + uint64(n)
	s.step(target)
	s.now = target
}

func (s *Scheduler) step(target uint64) {
	for s.size > 0 && s.heap[0].timestamp <= target {
		event := s.heap[0]
		s.now = event.timestamp
		cb := s.callbacks[event.class]
		if cb == nil {
			panic(fmt.Sprintf("scheduler: unhandled event class %d", event.class))
		}
		userData := event.userData
		cb(userData, 0)
		s.remove(event.handle)
	}
}

// Snapshot captures every live event for save-state serialization as a
// (key, uid, user_data, class) tuple.
type Snapshot struct {
	Key      uint64
	UID      uint64
	UserData uint64
	Class    Class
}

// Snapshot returns the heap contents (excluding nothing; the sentinel
// is included so Restore's skip-logic matches the reference loader).
func (s *Scheduler) Snapshot() []Snapshot {
	out := make([]Snapshot, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = Snapshot{
			Key:      s.heap[i].key,
			UID:      s.heap[i].uid,
			UserData: s.heap[i].userData,
			Class:    s.heap[i].class,
		}
	}
	return out
}

// Restore rebuilds the heap from a snapshot taken at savedNow. The
// sentinel (ClassEndOfQueue) entry created by Reset is left alone;
// every other entry is re-Added relative to the current now and its
// UID is forced back to the stored value so owning subsystems that
// cached a UID can find their event again via EventByUID.
func (s *Scheduler) Restore(savedNow uint64, events []Snapshot) {
	s.Reset()
	s.now = savedNow
	maxUID := s.nextUID
	for _, ev := range events {
		if ev.Class == ClassEndOfQueue {
			continue
		}
		timestamp := ev.Key >> 2
		priority := uint8(ev.Key & 3)
		delay := timestamp - savedNow
		added := s.Add(delay, ev.Class, priority, ev.UserData)
		added.uid = ev.UID
		if ev.UID >= maxUID {
			maxUID = ev.UID + 1
		}
	}
	s.nextUID = maxUID
}

func parent(n int) int     { return (n - 1) / 2 }
func leftChild(n int) int  { return n*2 + 1 }
func rightChild(n int) int { return n*2 + 2 }

// less orders heap slots by key, then by UID so that events with equal
// keys fire in insertion order.
func (s *Scheduler) less(i, j int) bool {
	a, b := s.heap[i], s.heap[j]
	return a.key < b.key || (a.key == b.key && a.uid < b.uid)
}

func (s *Scheduler) swap(i, j int) {
	s.heap[i], s.heap[j] = s.heap[j], s.heap[i]
	s.heap[i].handle = i
	s.heap[j].handle = j
}

func (s *Scheduler) remove(n int) {
	s.size--
	s.swap(n, s.size)

	p := parent(n)
	if n != 0 && s.less(n, p) {
		for n != 0 && s.less(n, p) {
			s.swap(n, p)
			n = p
			p = parent(n)
		}
		return
	}
	s.heapify(n)
}

func (s *Scheduler) heapify(n int) {
	l, r := leftChild(n), rightChild(n)
	if l < s.size && s.less(l, n) {
		s.swap(l, n)
		s.heapify(l)
	}
	if r < s.size && s.less(r, n) {
		s.swap(r, n)
		s.heapify(r)
	}
}
