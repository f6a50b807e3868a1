// Package video implements the GBA PPU: the scanline state machine,
// the tiled/affine/bitmap background engine, the sprite engine,
// windowing and the blend compositor. It satisfies bus.PPURegisters so
// the bus can route I/O/VRAM/OAM/PRAM access straight through,
// grounded on src/nba/src/hw/ppu/ppu.cpp's event split and on a Game
// Boy PPU's scanline-driven package shape for naming and FrameBuffer
// conventions.
package video

const (
	ScreenWidth  = 240
	ScreenHeight = 160

	cyclesPerPixel  = 4
	pixelsPerLine   = 308
	cyclesPerLine   = pixelsPerLine * cyclesPerPixel // 1232
	visibleLines    = 160
	totalLines      = 228
	hdrawCycles     = 1007
	hblankCycles    = 225
	latchDelay      = 1
)

// FrameBuffer holds one rendered frame as 15-bit BGR555 values packed
// into uint16s, the GBA's native pixel format; device adapters expand
// to host RGBA at presentation time.
type FrameBuffer struct {
	pixels [ScreenWidth * ScreenHeight]uint16
}

// Pixel reads the color at (x, y).
func (f *FrameBuffer) Pixel(x, y int) uint16 { return f.pixels[y*ScreenWidth+x] }

// Set writes the color at (x, y).
func (f *FrameBuffer) Set(x, y int, color uint16) { f.pixels[y*ScreenWidth+x] = color }

// Slice exposes the backing array for device adapters that blit whole
// rows at a time.
func (f *FrameBuffer) Slice() []uint16 { return f.pixels[:] }
