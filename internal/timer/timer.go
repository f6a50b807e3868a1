// Package timer implements the four cascadable GBA hardware timers:
// prescaled counters, cascade chaining, buffered control/reload writes
// applied one cycle later, and overflow events that notify the IRQ
// controller and the APU's FIFO consumers.
package timer

import (
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
)

var prescalerShift = [4]uint{0, 6, 8, 10}
var prescalerMask = [4]uint64{0, 0x3F, 0xFF, 0x3FF}

// OverflowSink receives timer-0/1 overflow notifications so the APU
// can shift a byte out of the matching DMA FIFO.
type OverflowSink interface {
	OnTimerOverflow(channel int)
}

type pending struct {
	reload  uint16
	control uint16
}

type channel struct {
	id int

	reload  uint16
	counter uint16

	frequency uint8
	cascade   bool
	interrupt bool
	enable    bool

	shift uint
	mask  uint64

	running         bool
	timestampStart  uint64
	overflowEvent   *scheduler.Event
	pendingReload   pending
	haveReloadWrite bool
	haveCtrlWrite   bool
}

// Controller owns all four channels and is wired to the scheduler,
// IRQ controller and APU FIFO consumer at construction.
type Controller struct {
	sched    *scheduler.Scheduler
	irqc     *irq.Controller
	fifoSink OverflowSink

	channels [4]channel
}

// New constructs the four timers, registering their scheduled events.
func New(sched *scheduler.Scheduler, irqc *irq.Controller, fifoSink OverflowSink) *Controller {
	c := &Controller{sched: sched, irqc: irqc, fifoSink: fifoSink}
	for i := range c.channels {
		c.channels[i].id = i
	}
	sched.Register(scheduler.ClassTimerOverflow, c.onOverflow)
	sched.Register(scheduler.ClassTimerWriteReload, c.onReloadWritten)
	sched.Register(scheduler.ClassTimerWriteControl, c.onControlWritten)
	return c
}

// ReadCounter returns the live counter value of channel id, accounting
// for elapsed cycles if the channel is currently running.
func (c *Controller) ReadCounter(id int) uint16 {
	ch := &c.channels[id]
	counter := ch.counter
	if ch.running {
		counter += uint16(c.counterDelta(ch))
	}
	return counter
}

// ReadControl returns the packed TMxCNT_H control value.
func (c *Controller) ReadControl(id int) uint16 {
	ch := &c.channels[id]
	v := uint16(ch.frequency)
	if ch.cascade {
		v |= 1 << 2
	}
	if ch.interrupt {
		v |= 1 << 6
	}
	if ch.enable {
		v |= 1 << 7
	}
	return v
}

// WriteReload stages a reload-register write, applied one cycle later
// at priority 1: reload writes precede control writes scheduled the
// same cycle.
func (c *Controller) WriteReload(id int, value uint16) {
	ch := &c.channels[id]
	ch.pendingReload.reload = value
	ch.haveReloadWrite = true
	c.sched.Add(1, scheduler.ClassTimerWriteReload, 1, uint64(id))
}

// WriteControl stages a control-register write, applied one cycle
// later at priority 2.
func (c *Controller) WriteControl(id int, value uint16) {
	ch := &c.channels[id]
	ch.pendingReload.control = value
	ch.haveCtrlWrite = true
	c.sched.Add(1, scheduler.ClassTimerWriteControl, 2, uint64(id))
}

func (c *Controller) counterDelta(ch *channel) uint64 {
	return (c.sched.Now() - ch.timestampStart) >> ch.shift
}

func (c *Controller) onReloadWritten(userData uint64, _ int64) {
	ch := &c.channels[userData]
	if ch.haveReloadWrite {
		ch.reload = ch.pendingReload.reload
		ch.haveReloadWrite = false
	}
}

func (c *Controller) onControlWritten(userData uint64, _ int64) {
	ch := &c.channels[userData]
	if !ch.haveCtrlWrite {
		return
	}
	ch.haveCtrlWrite = false
	value := ch.pendingReload.control

	wasEnabled := ch.enable
	if ch.running {
		c.stopChannel(ch)
	}

	ch.frequency = uint8(value & 3)
	ch.interrupt = value&(1<<6) != 0
	ch.enable = value&(1<<7) != 0
	if ch.id != 0 {
		ch.cascade = value&(1<<2) != 0
	}
	ch.shift = prescalerShift[ch.frequency]
	ch.mask = prescalerMask[ch.frequency]

	if !ch.enable {
		return
	}

	prescalerOffset := int64(c.sched.Now()) & int64(ch.mask)

	switch {
	case wasEnabled:
		if !ch.cascade {
			c.startChannel(ch, prescalerOffset)
		}
	case ch.cascade:
		ch.counter = ch.reload
	case ch.counter == 0xFFFF && prescalerOffset == 0:
		c.startChannel(ch, 0)
	default:
		ch.counter = ch.reload
		c.startChannel(ch, prescalerOffset)
	}
}

func (c *Controller) startChannel(ch *channel, cycleOffset int64) {
	cycles := int64((uint32(0x10000)-uint32(ch.counter))<<ch.shift) - cycleOffset
	ch.running = true
	ch.timestampStart = c.sched.Now() - uint64(cycleOffset)
	ch.overflowEvent = c.sched.Add(uint64(cycles), scheduler.ClassTimerOverflow, 0, uint64(ch.id))
}

func (c *Controller) stopChannel(ch *channel) {
	ch.counter += uint16(c.counterDelta(ch))
	if ch.counter >= 0xFFFF { // wrapped past 0x10000 as a uint16 already truncated
		c.reloadCascadeAndIRQ(ch)
	}
	if ch.overflowEvent != nil {
		c.sched.Cancel(ch.overflowEvent)
		ch.overflowEvent = nil
	}
	ch.running = false
}

func (c *Controller) reloadCascadeAndIRQ(ch *channel) {
	ch.counter = ch.reload

	if ch.interrupt {
		c.irqc.Raise(timerIRQSource(ch.id))
	}
	if ch.id <= 1 && c.fifoSink != nil {
		c.fifoSink.OnTimerOverflow(ch.id)
	}
	if ch.id != 3 {
		next := &c.channels[ch.id+1]
		if next.enable && next.cascade {
			next.counter++
			if next.counter == 0 {
				c.reloadCascadeAndIRQ(next)
			}
		}
	}
}

func (c *Controller) onOverflow(userData uint64, _ int64) {
	ch := &c.channels[userData]
	c.reloadCascadeAndIRQ(ch)
	c.startChannel(ch, 0)
}

// ChannelState is one timer's full internal state, including the
// buffered-write latches and the overflow event's UID so a save state
// can re-link it against the scheduler snapshot restored alongside it.
type ChannelState struct {
	Reload, Counter             uint16
	Frequency                   uint8
	Cascade, Interrupt, Enable  bool
	Running                     bool
	TimestampStart              uint64
	OverflowEventUID            uint64
	PendingReload, PendingCtrl  uint16
	HaveReloadWrite, HaveCtrlWrite bool
}

// SaveState captures all four channels.
func (c *Controller) SaveState() [4]ChannelState {
	var out [4]ChannelState
	for i := range c.channels {
		ch := &c.channels[i]
		s := ChannelState{
			Reload:          ch.reload,
			Counter:         ch.counter,
			Frequency:       ch.frequency,
			Cascade:         ch.cascade,
			Interrupt:       ch.interrupt,
			Enable:          ch.enable,
			Running:         ch.running,
			TimestampStart:  ch.timestampStart,
			PendingReload:   ch.pendingReload.reload,
			PendingCtrl:     ch.pendingReload.control,
			HaveReloadWrite: ch.haveReloadWrite,
			HaveCtrlWrite:   ch.haveCtrlWrite,
		}
		if ch.overflowEvent != nil {
			s.OverflowEventUID = ch.overflowEvent.UID()
		}
		out[i] = s
	}
	return out
}

// LoadState restores all four channels. Call after scheduler.Restore
// so EventByUID can re-link each channel's pending overflow event.
func (c *Controller) LoadState(states [4]ChannelState, sched *scheduler.Scheduler) {
	for i := range c.channels {
		ch := &c.channels[i]
		s := states[i]
		ch.reload = s.Reload
		ch.counter = s.Counter
		ch.frequency = s.Frequency
		ch.cascade = s.Cascade
		ch.interrupt = s.Interrupt
		ch.enable = s.Enable
		ch.running = s.Running
		ch.timestampStart = s.TimestampStart
		ch.shift = prescalerShift[ch.frequency]
		ch.mask = prescalerMask[ch.frequency]
		ch.pendingReload = pending{reload: s.PendingReload, control: s.PendingCtrl}
		ch.haveReloadWrite = s.HaveReloadWrite
		ch.haveCtrlWrite = s.HaveCtrlWrite
		ch.overflowEvent = nil
		if s.Running {
			ch.overflowEvent = sched.EventByUID(s.OverflowEventUID)
		}
	}
}

func timerIRQSource(id int) irq.Source {
	switch id {
	case 0:
		return irq.Timer0
	case 1:
		return irq.Timer1
	case 2:
		return irq.Timer2
	default:
		return irq.Timer3
	}
}
