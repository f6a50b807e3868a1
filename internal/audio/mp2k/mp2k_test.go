package mp2k_test

import (
	"testing"

	"github.com/valerio/gbacore/internal/audio/mp2k"
)

func TestDecodeNibbleClampsToInt8Range(t *testing.T) {
	d := mp2k.NewDecoder()
	for i := 0; i < 10; i++ {
		d.DecodeNibble(7) // +64 each step, should saturate at 127
	}
	if got := d.DecodeNibble(0); got != 127 {
		t.Fatalf("predictor = %d, want saturated at 127", got)
	}
}

func TestResetZeroesPredictor(t *testing.T) {
	d := mp2k.NewDecoder()
	d.DecodeNibble(7)
	d.Reset()
	if got := d.DecodeNibble(0); got != 0 {
		t.Fatalf("after Reset, DecodeNibble(0) = %d, want 0", got)
	}
}

func TestDecodeBlockProducesTwoSamplesPerByte(t *testing.T) {
	d := mp2k.NewDecoder()
	out := d.DecodeBlock([]byte{0x10, 0x00})
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
}

func TestStateTracksDetection(t *testing.T) {
	s := mp2k.NewState()
	if s.IsActive() {
		t.Fatal("new state should not be active")
	}
	s.MarkDetected()
	if !s.IsActive() {
		t.Fatal("expected active after MarkDetected")
	}
}

func TestTrackLazilyAllocatesAndIsStable(t *testing.T) {
	s := mp2k.NewState()
	a := s.Track(3)
	b := s.Track(3)
	if a != b {
		t.Fatal("Track(3) should return the same decoder instance on repeated calls")
	}
}
