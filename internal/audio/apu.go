// Package audio implements the GBA APU: four PSG channels, the two
// DMA sound FIFOs, the mixer (which emits samples at the
// SOUNDBIAS-selected rate; it does not resample to a host output rate)
// and the MP2K HLE state. It
// satisfies bus.APURegisters and timer.OverflowSink, grounded on
// src/nba/src/hw/apu's channel/sequencer split for the overall shape
// and on a Game Boy PSG's envelope/sweep/duty state machines for the
// four tone/noise channels (stereo output and FIFO mixing are new
// here, since the GBA has no Game Boy equivalent).
package audio

import (
	"github.com/valerio/gbacore/internal/addr"
	"github.com/valerio/gbacore/internal/audio/mp2k"
	"github.com/valerio/gbacore/internal/scheduler"
)

const sequencerPeriod = 32768 // cycles between 512 Hz sequencer steps (16.78MHz/512)

// Sample is one stereo output frame, left/right in [-1, 1].
type Sample struct {
	L, R float32
}

// APU owns the four PSG channels, two FIFOs, the mixer and the
// optional MP2K HLE decoder.
type APU struct {
	sched *scheduler.Scheduler

	square1, square2 squareChannel
	wave             waveChannel
	noise            noiseChannel

	fifoA, fifoB fifo

	soundcntL, soundcntH, soundcntX uint16
	soundbias                       uint16

	sequencerStep int

	outputRate  int64
	mixerPeriod int64
	mixerEvent  *scheduler.Event

	samples    []Sample
	sampleCap  int

	mp2k *mp2k.State
}

// MP2K exposes the HLE state. Neither the APU nor Console consults it:
// audio always renders through the PSG/FIFO mixer.
func (a *APU) MP2K() *mp2k.State { return a.mp2k }

// New constructs an APU wired to sched, with the mixer producing
// samples at the default 32768 Hz bias rate until SOUNDBIAS changes it.
func New(sched *scheduler.Scheduler) *APU {
	a := &APU{sched: sched, sampleCap: 4096}
	a.square1.sweepCapable = true
	sched.Register(scheduler.ClassAPUSequencer, a.onSequencerStep)
	sched.Register(scheduler.ClassAPUMixer, a.onMixerTick)
	a.soundbias = 0x200
	a.setOutputRate(32768)
	a.mp2k = mp2k.NewState()
	sched.Add(sequencerPeriod, scheduler.ClassAPUSequencer, 2, 0)
	return a
}

func (a *APU) setOutputRate(rate int64) {
	a.outputRate = rate
	a.mixerPeriod = cyclesPerSecond / rate
	if a.mixerEvent != nil {
		a.sched.Cancel(a.mixerEvent)
	}
	a.mixerEvent = a.sched.Add(uint64(a.mixerPeriod), scheduler.ClassAPUMixer, 3, 0)
}

const cyclesPerSecond = 1 << 24 // 16.777216 MHz, the GBA's exact crystal-derived clock

// Drain returns and clears the buffered stereo samples produced since
// the last call, for the host audio device to consume.
func (a *APU) Drain() []Sample {
	out := a.samples
	a.samples = nil
	return out
}

// OnTimerOverflow implements timer.OverflowSink: a timer 0/1 overflow
// shifts one byte out of whichever FIFO(s) are clocked by that channel.
func (a *APU) OnTimerOverflow(channel int) {
	dmaSelA := int((a.soundcntH >> 10) & 1)
	dmaSelB := int((a.soundcntH >> 14) & 1)
	if dmaSelA == channel {
		a.fifoA.shiftOut()
	}
	if dmaSelB == channel {
		a.fifoB.shiftOut()
	}
}

// FIFOsNeedingDMA reports which of FIFO A/B (by DMA occasion) should
// be refilled, used by Console to wire dma.Engine.Request calls.
func (a *APU) FIFOsNeedingDMA() (needA, needB bool) {
	return a.fifoA.count <= 16, a.fifoB.count <= 16
}

func (a *APU) onSequencerStep(uint64, int64) {
	// Length counters clock on steps 0,2,4,6; envelope on 7; sweep on
	// 2,6, matching the standard Game Boy-derived 8-step 512 Hz frame
	// sequence the GBA's PSG inherits.
	step := a.sequencerStep
	if step%2 == 0 {
		a.square1.clockLength()
		a.square2.clockLength()
		a.wave.clockLength()
		a.noise.clockLength()
	}
	if step == 7 {
		a.square1.clockEnvelope()
		a.square2.clockEnvelope()
		a.noise.clockEnvelope()
	}
	if step == 2 || step == 6 {
		a.square1.clockSweep()
	}
	a.sequencerStep = (step + 1) % 8
	a.sched.Add(sequencerPeriod, scheduler.ClassAPUSequencer, 2, 0)
}

func (a *APU) onMixerTick(uint64, int64) {
	s := a.mixSample()
	if len(a.samples) < a.sampleCap {
		a.samples = append(a.samples, s)
	}
	a.mixerEvent = a.sched.Add(uint64(a.mixerPeriod), scheduler.ClassAPUMixer, 3, 0)
}

// ReadRegister implements bus.APURegisters.
func (a *APU) ReadRegister(offset uint32) uint16 {
	switch {
	case offset == addr.SOUND1CNT_L:
		return a.square1.readSweep()
	case offset == addr.SOUND1CNT_H:
		return a.square1.readDutyEnv()
	case offset == addr.SOUND1CNT_X:
		return a.square1.readFreq()
	case offset == addr.SOUND2CNT_L:
		return a.square2.readDutyEnv()
	case offset == addr.SOUND2CNT_H:
		return a.square2.readFreq()
	case offset == addr.SOUND3CNT_L:
		return a.wave.readBankCnt()
	case offset == addr.SOUND3CNT_H:
		return a.wave.readLenVol()
	case offset == addr.SOUND3CNT_X:
		return a.wave.readFreq()
	case offset == addr.SOUND4CNT_L:
		return a.noise.readLenEnv()
	case offset == addr.SOUND4CNT_H:
		return a.noise.readFreq()
	case offset == addr.SOUNDCNT_L:
		return a.soundcntL
	case offset == addr.SOUNDCNT_H:
		return a.soundcntH
	case offset == addr.SOUNDCNT_X:
		return a.readSoundCntX()
	case offset == addr.SOUNDBIAS:
		return a.soundbias
	case offset >= addr.WAVE_RAM && offset < addr.WAVE_RAM+16:
		return a.wave.readRAM(offset - addr.WAVE_RAM)
	}
	return 0
}

// WriteRegister implements bus.APURegisters.
func (a *APU) WriteRegister(offset uint32, value uint16) {
	switch {
	case offset == addr.SOUND1CNT_L:
		a.square1.writeSweep(value)
	case offset == addr.SOUND1CNT_H:
		a.square1.writeDutyEnv(value)
	case offset == addr.SOUND1CNT_X:
		a.square1.writeFreq(value)
	case offset == addr.SOUND2CNT_L:
		a.square2.writeDutyEnv(value)
	case offset == addr.SOUND2CNT_H:
		a.square2.writeFreq(value)
	case offset == addr.SOUND3CNT_L:
		a.wave.writeBankCnt(value)
	case offset == addr.SOUND3CNT_H:
		a.wave.writeLenVol(value)
	case offset == addr.SOUND3CNT_X:
		a.wave.writeFreq(value)
	case offset == addr.SOUND4CNT_L:
		a.noise.writeLenEnv(value)
	case offset == addr.SOUND4CNT_H:
		a.noise.writeFreq(value)
	case offset == addr.SOUNDCNT_L:
		a.soundcntL = value
	case offset == addr.SOUNDCNT_H:
		a.writeSoundCntH(value)
	case offset == addr.SOUNDCNT_X:
		a.soundcntX = (a.soundcntX & 0xF) | (value & 0x80)
	case offset == addr.SOUNDBIAS:
		a.soundbias = value
		a.setOutputRate(biasRates[(value>>14)&0x3])
	case offset >= addr.WAVE_RAM && offset < addr.WAVE_RAM+16:
		a.wave.writeRAM(offset-addr.WAVE_RAM, value)
	case offset == addr.FIFO_A, offset == addr.FIFO_A+2:
		a.fifoA.push16(value)
	case offset == addr.FIFO_B, offset == addr.FIFO_B+2:
		a.fifoB.push16(value)
	}
}

var biasRates = [4]int64{32768, 65536, 131072, 262144}

func (a *APU) readSoundCntX() uint16 {
	var v uint16
	if a.square1.enabled {
		v |= 1
	}
	if a.square2.enabled {
		v |= 2
	}
	if a.wave.enabled {
		v |= 4
	}
	if a.noise.enabled {
		v |= 8
	}
	return v | (a.soundcntX & 0x80)
}

// State is the full APU snapshot: the four PSG channels, both FIFOs,
// the mixer/sequencer registers and the sequencer's step counter. The
// mixer/sequencer scheduler events are re-created at the currently
// configured period rather than re-linked by UID, since missing one
// sequencer tick across a save/load boundary is inaudible and far
// simpler than threading two more UIDs through every save state.
type State struct {
	Square1, Square2 SquareState
	Wave             WaveState
	Noise            NoiseState
	FIFOA, FIFOB     FIFOState
	SoundcntL, SoundcntH, SoundcntX uint16
	Soundbias        uint16
	SequencerStep    int
	OutputRate       int64
}

// SaveState captures the full APU snapshot.
func (a *APU) SaveState() State {
	return State{
		Square1: a.square1.saveState(), Square2: a.square2.saveState(),
		Wave: a.wave.saveState(), Noise: a.noise.saveState(),
		FIFOA: a.fifoA.saveState(), FIFOB: a.fifoB.saveState(),
		SoundcntL: a.soundcntL, SoundcntH: a.soundcntH, SoundcntX: a.soundcntX,
		Soundbias: a.soundbias, SequencerStep: a.sequencerStep, OutputRate: a.outputRate,
	}
}

// LoadState restores a State captured by SaveState and re-arms the
// mixer at its saved output rate.
func (a *APU) LoadState(s State) {
	a.square1.loadState(s.Square1)
	a.square2.loadState(s.Square2)
	a.wave.loadState(s.Wave)
	a.noise.loadState(s.Noise)
	a.fifoA.loadState(s.FIFOA)
	a.fifoB.loadState(s.FIFOB)
	a.soundcntL, a.soundcntH, a.soundcntX = s.SoundcntL, s.SoundcntH, s.SoundcntX
	a.soundbias = s.Soundbias
	a.sequencerStep = s.SequencerStep
	a.setOutputRate(s.OutputRate)
}

func (a *APU) writeSoundCntH(value uint16) {
	a.soundcntH = value
	if value&(1<<11) != 0 {
		a.fifoA.reset()
	}
	if value&(1<<15) != 0 {
		a.fifoB.reset()
	}
}
