package video_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/addr"
	"github.com/valerio/gbacore/internal/dma"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
	"github.com/valerio/gbacore/internal/video"
)

type dmaAdapter struct{ e *dma.Engine }

func (a dmaAdapter) Request(occasion int)      { a.e.Request(dma.Occasion(occasion)) }
func (a dmaAdapter) HasVideoTransferDMA() bool { return a.e.HasVideoTransferDMA() }
func (a dmaAdapter) StopVideoTransferDMA()     {}

type fakeBus struct{}

func (fakeBus) ReadHalf(uint32, bool) uint16   { return 0 }
func (fakeBus) ReadWord(uint32, bool) uint32   { return 0 }
func (fakeBus) WriteHalf(uint32, uint16, bool) {}
func (fakeBus) WriteWord(uint32, uint32, bool) {}
func (fakeBus) Step(int64)                     {}

func newTestPPU() (*video.PPU, *scheduler.Scheduler) {
	sched := scheduler.New()
	irqc := irq.New(sched)
	e := dma.New(fakeBus{}, irqc, sched)
	p := video.New(sched, irqc, dmaAdapter{e})
	return p, sched
}

func TestVCountIncrementsAcrossOneScanline(t *testing.T) {
	p, sched := newTestPPU()
	assert.Equal(t, 0, p.VCount())
	sched.AddCycles(1232)
	assert.Equal(t, 1, p.VCount())
}

func TestVCountReachesVBlankAt160(t *testing.T) {
	p, sched := newTestPPU()
	sched.AddCycles(1232 * 160)
	assert.Equal(t, 160, p.VCount())
	assert.NotZero(t, p.ReadRegister(addr.DISPSTAT)&1, "VBlank flag should be set once VCOUNT reaches 160")
}

func TestFrameCounterAdvancesAfterFullFrame(t *testing.T) {
	p, sched := newTestPPU()
	sched.AddCycles(1232 * 228)
	assert.Equal(t, uint64(1), p.Frame())
	assert.Equal(t, 0, p.VCount())
}

func TestBitmapMode3WritesDirectColor(t *testing.T) {
	p, sched := newTestPPU()
	p.WriteRegister(addr.DISPCNT, 0x0403) // mode 3, BG2 enable
	p.WriteVRAM(0, 0xFF)
	p.WriteVRAM(1, 0x7F) // pixel (0,0) = 0x7FFF white

	sched.AddCycles(1232) // render scanline 0 at HDraw->HBlank transition

	assert.Equal(t, uint16(0x7FFF), p.FrameBuffer().Pixel(0, 0))
}

func TestDISPSTATWriteOnlyAffectsEnableBits(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(addr.DISPSTAT, 0xFFFF)
	v := p.ReadRegister(addr.DISPSTAT)
	assert.Zero(t, v&0x1, "vblank flag bit is PPU-owned and must not be settable by a register write")
	assert.NotZero(t, v&0x8, "vblank IRQ enable bit should take the written value")
}
