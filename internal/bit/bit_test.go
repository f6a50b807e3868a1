package bit_test

import (
	"testing"

	"github.com/valerio/gbacore/internal/bit"
)

func TestCombine16(t *testing.T) {
	if got := bit.Combine16(0x1234, 0x5678); got != 0x12345678 {
		t.Fatalf("Combine16 = %#x, want 0x12345678", got)
	}
}

func TestCombine8(t *testing.T) {
	if got := bit.Combine8(0x12, 0x34); got != 0x1234 {
		t.Fatalf("Combine8 = %#x, want 0x1234", got)
	}
}

func TestIsSet(t *testing.T) {
	if !bit.IsSet(1<<5, 5) {
		t.Fatal("expected bit 5 set")
	}
	if bit.IsSet(1<<5, 4) {
		t.Fatal("expected bit 4 clear")
	}
}

func TestSetClear(t *testing.T) {
	v := bit.Set(0, 3)
	if v != 0x8 {
		t.Fatalf("Set = %#x, want 0x8", v)
	}
	if bit.Clear(v, 3) != 0 {
		t.Fatal("Clear did not clear bit 3")
	}
}

func TestSignExtend(t *testing.T) {
	if got := bit.SignExtend(0xFFF, 12); got != -1 {
		t.Fatalf("SignExtend = %d, want -1", got)
	}
	if got := bit.SignExtend(0x7FF, 12); got != 0x7FF {
		t.Fatalf("SignExtend = %d, want 0x7FF", got)
	}
}

func TestField(t *testing.T) {
	if got := bit.Field(0xABCD1234, 8, 15); got != 0x12 {
		t.Fatalf("Field = %#x, want 0x12", got)
	}
}

func TestRotateRight32(t *testing.T) {
	if got := bit.RotateRight32(0x1, 1); got != 0x80000000 {
		t.Fatalf("RotateRight32 = %#x, want 0x80000000", got)
	}
	if got := bit.RotateRight32(0x1234, 0); got != 0x1234 {
		t.Fatalf("RotateRight32 with amount 0 should be a no-op, got %#x", got)
	}
}

func TestCarryAdd32(t *testing.T) {
	if !bit.CarryAdd32(0xFFFFFFFF, 1, 0) {
		t.Fatal("expected carry out")
	}
	if bit.CarryAdd32(1, 1, 0) {
		t.Fatal("expected no carry")
	}
}
