// Package term implements device.Inspector on top of tcell: a
// read-only register dump and VRAM tile-density viewer. No input is
// routed into the emulated console and no debugger wire protocol is
// implemented; this is a passive inspection panel, not a second
// playable frontend.
package term

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/gbacore/internal/console"
)

const (
	tileBytes = 32 // bytes per 8x8 4bpp tile, used to bucket VRAM into a density grid
	tileGridW = 32
	tileGridH = 24
)

// shadeRamp mirrors the half-block trick's spirit but for density
// rather than color: a tile with more non-zero bytes renders darker.
var shadeRamp = []rune{' ', '░', '▒', '▓', '█'}

// Inspector implements device.Inspector.
type Inspector struct {
	screen tcell.Screen
	cons   *console.Console
}

// New constructs an uninitialized inspector; call Attach before use.
func New() *Inspector { return &Inspector{} }

// Attach implements device.Inspector.
func (t *Inspector) Attach(c *console.Console) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("term: new screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("term: init screen: %w", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	t.screen = screen
	t.cons = c
	return nil
}

// Render draws the CPU register bank, CPSR flags, PPU scanline/frame
// counters and a VRAM tile-density grid.
func (t *Inspector) Render() error {
	t.screen.Clear()
	t.drawRegisters(0, 0)
	t.drawPPUStatus(0, 19)
	t.drawTileDensity(40, 0)
	t.screen.Show()
	return nil
}

func (t *Inspector) drawRegisters(col, row int) {
	cpu := t.cons.CPU()
	for i := 0; i < 16; i++ {
		line := fmt.Sprintf("R%-2d = %08X", i, cpu.Register(i))
		t.puts(col, row+i, line)
	}
	cpsr := cpu.CPSR()
	flags := fmt.Sprintf("CPSR = %08X  N=%d Z=%d C=%d V=%d T=%d",
		cpsr, bit(cpsr, 31), bit(cpsr, 30), bit(cpsr, 29), bit(cpsr, 28), bit(cpsr, 5))
	t.puts(col, row+16, flags)
	t.puts(col, row+17, fmt.Sprintf("PC   = %08X  Halted=%v", cpu.PC(), cpu.Halted()))
}

func bit(v uint32, n uint) uint32 { return (v >> n) & 1 }

func (t *Inspector) drawPPUStatus(col, row int) {
	ppu := t.cons.PPU()
	t.puts(col, row, fmt.Sprintf("VCount = %3d   Frame = %d", ppu.VCount(), ppu.Frame()))
}

// drawTileDensity buckets VRAM's background charblocks into a
// tileGridW x tileGridH grid and shades each cell by how many of its
// 32 bytes are non-zero, a coarse at-a-glance "is tile data present
// here" view rather than a pixel-accurate tile decoder.
func (t *Inspector) drawTileDensity(col, row int) {
	snap := t.cons.PPU().SaveState()
	vram := snap.VRAM[:]
	tilesPerRow := tileGridW
	for ty := 0; ty < tileGridH; ty++ {
		for tx := 0; tx < tilesPerRow; tx++ {
			offset := (ty*tilesPerRow + tx) * tileBytes
			if offset+tileBytes > len(vram) {
				continue
			}
			nonZero := 0
			for _, b := range vram[offset : offset+tileBytes] {
				if b != 0 {
					nonZero++
				}
			}
			level := nonZero * (len(shadeRamp) - 1) / tileBytes
			t.screen.SetContent(col+tx, row+ty, shadeRamp[level], nil, tcell.StyleDefault)
		}
	}
}

func (t *Inspector) puts(col, row int, s string) {
	for i, r := range s {
		t.screen.SetContent(col+i, row, r, nil, tcell.StyleDefault)
	}
}

// Poll implements device.Inspector: the inspector has no game-input
// role; Ctrl-C or 'q' is a quit request, other keys are ignored and a
// resize redraws the screen.
func (t *Inspector) Poll() (bool, error) {
	for t.screen.HasPendingEvent() {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				return true, nil
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
	return false, nil
}

// Cleanup implements device.Inspector.
func (t *Inspector) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}
