package mgbalog_test

import (
	"testing"

	"github.com/valerio/gbacore/internal/bus/mgbalog"
)

func writeString(p *mgbalog.Port, s string) {
	b := []byte(s)
	b = append(b, 0)
	for i := 0; i+1 < len(b); i += 2 {
		p.WriteHalf(uint32(i), uint16(b[i])|uint16(b[i+1])<<8)
	}
	if len(b)%2 == 1 {
		p.WriteHalf(uint32(len(b)-1), uint16(b[len(b)-1]))
	}
}

func TestDisabledPortIgnoresSend(t *testing.T) {
	p := mgbalog.New()
	if got := p.ReadHalf(0x180); got != 0 {
		t.Fatalf("ReadHalf(ENABLE) = %#x, want 0 while disabled", got)
	}
}

func TestEnableRequiresMagicValue(t *testing.T) {
	p := mgbalog.New()
	p.WriteHalf(0x180, 0x1234)
	if got := p.ReadHalf(0x180); got != 0 {
		t.Fatalf("port armed with wrong magic, ReadHalf = %#x", got)
	}

	p.WriteHalf(0x180, 0xC0DE)
	if got := p.ReadHalf(0x180); got != 0x1DEA {
		t.Fatalf("ReadHalf(ENABLE) = %#x, want 0x1DEA once armed", got)
	}
}

func TestSendFlushesBufferedMessage(t *testing.T) {
	p := mgbalog.New()
	p.WriteHalf(0x180, 0xC0DE)
	writeString(p, "hi")
	p.WriteHalf(0x100, uint16(mgbalog.LevelInfo))

	if got := p.ReadHalf(0x00); got != 0 {
		t.Fatalf("buffer not cleared after flush, ReadHalf(0) = %#x", got)
	}
}

func TestLevelString(t *testing.T) {
	cases := map[mgbalog.Level]string{
		mgbalog.LevelFatal: "FATAL",
		mgbalog.LevelError: "ERROR",
		mgbalog.LevelWarn:  "WARN",
		mgbalog.LevelInfo:  "INFO",
		mgbalog.LevelDebug: "DEBUG",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Fatalf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
