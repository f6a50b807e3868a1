// Package mp2k holds the pieces of an optional HLE (high-level
// emulation) path for games built on Nintendo's MP2K (m4a) sound
// engine: the engine's 4-bit differential ADPCM decoder and a
// detection flag. It does not scan RAM for the engine and does not
// render audio; sound always goes through the DMA FIFO/timer path.
package mp2k

// adpcmTable is the 4-bit differential step LUT the MP2K engine's
// compressed sample format uses; index 0 is silence, indices climb
// geometrically to approximate a log step size.
var adpcmTable = [16]int8{
	0, 1, 2, 4, 8, 16, 32, 64,
	-128, -64, -32, -16, -8, -4, -2, -1,
}

// Decoder reconstructs a PCM stream from MP2K's compressed track
// data: one running predictor per track, advanced one nibble per
// output sample.
type Decoder struct {
	predictor int8
}

// NewDecoder returns a decoder with a zeroed predictor, matching the
// engine's per-track reset state.
func NewDecoder() *Decoder { return &Decoder{} }

// Reset zeroes the running predictor, called when a track restarts.
func (d *Decoder) Reset() { d.predictor = 0 }

// DecodeNibble folds one 4-bit differential sample into the running
// predictor and returns the reconstructed signed 8-bit PCM sample.
func (d *Decoder) DecodeNibble(nibble byte) int8 {
	delta := adpcmTable[nibble&0xF]
	sum := int(d.predictor) + int(delta)
	switch {
	case sum > 127:
		sum = 127
	case sum < -128:
		sum = -128
	}
	d.predictor = int8(sum)
	return d.predictor
}

// DecodeBlock decodes a packed byte stream (two nibbles per byte, low
// nibble first) into PCM samples.
func (d *Decoder) DecodeBlock(packed []byte) []int8 {
	out := make([]int8, 0, len(packed)*2)
	for _, b := range packed {
		out = append(out, d.DecodeNibble(b&0xF))
		out = append(out, d.DecodeNibble(b>>4))
	}
	return out
}

// MagicHeader is the four-byte tag the engine's main mixer structure
// starts with in RAM. No code in this module searches memory for it.
const MagicHeader = 0x68736D53 // "Smsh" read little-endian, m4a's PROC table sentinel

// State holds the HLE detection flag and up to 16 per-track decoders.
// Console does not poll IsActive; audio renders through the DMA/FIFO
// path whatever the flag says.
type State struct {
	detected bool
	tracks   [16]*Decoder
}

// NewState returns an HLE state with no tracks yet detected.
func NewState() *State {
	return &State{}
}

// MarkDetected sets the detection flag that IsActive reports.
func (s *State) MarkDetected() { s.detected = true }

// IsActive reports whether the HLE path should be used instead of the
// DMA FIFO mixer.
func (s *State) IsActive() bool { return s.detected }

// Track lazily allocates and returns the decoder for track i (0-15).
func (s *State) Track(i int) *Decoder {
	if s.tracks[i] == nil {
		s.tracks[i] = NewDecoder()
	}
	return s.tracks[i]
}
