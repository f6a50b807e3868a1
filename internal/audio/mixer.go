package audio

// psgVolumeScale maps SOUNDCNT_H bits 0-1 to the PSG master volume
// fraction (25/50/100%, the fourth encoding is reserved and treated
// as 100%).
var psgVolumeScale = [4]float64{0.25, 0.5, 1.0, 1.0}

func clamp1(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// mixSample renders one stereo frame at the mixer's current dt,
// combining the four PSG channels (scaled by per-side enable bits and
// the PSG master volume) with the two FIFO latches (scaled by their
// own volume bit and enable bits).
func (a *APU) mixSample() Sample {
	dt := 1.0 / float64(a.outputRate)

	s1 := a.square1.sample(dt)
	s2 := a.square2.sample(dt)
	s3 := a.wave.sample(dt)
	s4 := a.noise.sample(dt)

	enableRight := a.soundcntL & 0xF
	enableLeft := (a.soundcntL >> 4) & 0xF
	masterRight := float64((a.soundcntL&0x7)+1) / 8
	masterLeft := float64(((a.soundcntL>>4)&0x7)+1) / 8

	var psgL, psgR float64
	chans := [4]float64{s1, s2, s3, s4}
	for i, s := range chans {
		if enableLeft&(1<<uint(i)) != 0 {
			psgL += s
		}
		if enableRight&(1<<uint(i)) != 0 {
			psgR += s
		}
	}

	scale := psgVolumeScale[a.soundcntH&0x3]
	psgL *= scale * masterLeft
	psgR *= scale * masterRight

	fifoAVol := 1.0
	if a.soundcntH&(1<<2) == 0 {
		fifoAVol = 0.5
	}
	fifoBVol := 1.0
	if a.soundcntH&(1<<3) == 0 {
		fifoBVol = 0.5
	}

	fa := float64(a.fifoA.latch) / 128.0 * fifoAVol
	fb := float64(a.fifoB.latch) / 128.0 * fifoBVol

	var left, right float64
	left, right = psgL, psgR
	if a.soundcntH&(1<<9) != 0 {
		left += fa
	}
	if a.soundcntH&(1<<8) != 0 {
		right += fa
	}
	if a.soundcntH&(1<<13) != 0 {
		left += fb
	}
	if a.soundcntH&(1<<12) != 0 {
		right += fb
	}

	return Sample{L: clamp1(float32(left / 4)), R: clamp1(float32(right / 4))}
}
