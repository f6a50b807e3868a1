package cpu

import "testing"

func TestLSRByZeroImmediateMeansLSRBy32(t *testing.T) {
	result, carry := shiftLSR(0x8000_0001, 0, false, true)
	if result != 0 {
		t.Fatalf("LSR #32 of a nonzero value should be 0, got %#x", result)
	}
	if !carry {
		t.Fatalf("LSR #32 carry-out should be bit 31 of the input")
	}
}

func TestASRByZeroImmediateMeansASRBy32(t *testing.T) {
	result, carry := shiftASR(0x8000_0000, 0, false, true)
	if result != 0xFFFF_FFFF {
		t.Fatalf("ASR #32 of a negative value should sign-extend to all 1s, got %#x", result)
	}
	if !carry {
		t.Fatalf("ASR #32 carry-out should be the sign bit")
	}
}

func TestRORByZeroMeansRRX(t *testing.T) {
	result, carry := shiftROR(0x0000_0001, 0, true, true)
	if result != 0x8000_0000 {
		t.Fatalf("RRX should rotate the old carry into bit 31, got %#x", result)
	}
	if !carry {
		t.Fatalf("RRX carry-out should be the input's bit 0")
	}
}

func TestLSLByThirtyTwoIsZeroWithCarryFromBitZero(t *testing.T) {
	result, carry := shiftLSL(0x0000_0003, 32, false)
	if result != 0 {
		t.Fatalf("LSL #32 should be 0, got %#x", result)
	}
	if !carry {
		t.Fatalf("LSL #32 carry-out should be the input's bit 0")
	}
}

func TestAddWithCarryDetectsSignedOverflow(t *testing.T) {
	_, _, overflow := addWithCarry(0x7FFF_FFFF, 1, false)
	if !overflow {
		t.Fatalf("adding 1 to INT32_MAX should signal signed overflow")
	}
}

func TestSubWithCarryNoBorrowSetsCarry(t *testing.T) {
	_, carry, _ := subWithCarry(5, 3, true)
	if !carry {
		t.Fatalf("SUB with no borrow should set the carry flag per ARM's inverted-borrow convention")
	}
}
