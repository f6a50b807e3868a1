package video

// bgPixel is one background layer's contribution to a screen column:
// its resolved 15-bit color and whether it is the backdrop (transparent).
type bgPixel struct {
	color  uint16
	opaque bool
}

func (p *PPU) paletteColor(base int, index int) uint16 {
	off := (base + index*2) & 0x3FF
	return uint16(p.pram[off]) | uint16(p.pram[off+1])<<8
}

// renderScanline fills bgLine[0..3] and spriteLineBuf for y, then
// hands off to the compositor to resolve windows/blending into fb.
func (p *PPU) renderScanline(y int) {
	if p.regs.forcedBlank() {
		for x := 0; x < ScreenWidth; x++ {
			p.fb.Set(x, y, 0x7FFF)
		}
		return
	}

	mode := p.regs.bgMode()

	for i := 0; i < 4; i++ {
		for x := range p.bgLine[i] {
			p.bgLine[i][x] = bgPixel{}
		}
	}

	switch mode {
	case 0:
		for i := 0; i < 4; i++ {
			if p.regs.bgEnabled(i) {
				p.renderText(i, y)
			}
		}
	case 1:
		if p.regs.bgEnabled(0) {
			p.renderText(0, y)
		}
		if p.regs.bgEnabled(1) {
			p.renderText(1, y)
		}
		if p.regs.bgEnabled(2) {
			p.renderAffine(2, y)
		}
	case 2:
		if p.regs.bgEnabled(2) {
			p.renderAffine(2, y)
		}
		if p.regs.bgEnabled(3) {
			p.renderAffine(3, y)
		}
	case 3:
		if p.regs.bgEnabled(2) {
			p.renderBitmapDirect(y)
		}
	case 4:
		if p.regs.bgEnabled(2) {
			p.renderBitmapPalette(y)
		}
	case 5:
		if p.regs.bgEnabled(2) {
			p.renderBitmapSmall(y)
		}
	}

	p.advanceAffine(2)
	p.advanceAffine(3)

	p.renderSprites(y)
	p.compositeScanline(y)
}

// advanceAffine steps BG2/BG3's running reference point by one line's
// worth of (pb, pd).
func (p *PPU) advanceAffine(bg int) {
	b := &p.regs.bg[bg]
	b.x += int32(b.pb)
	b.y += int32(b.pd)
}

var textScreenDims = [4][2]int{
	{256, 256}, {512, 256}, {256, 512}, {512, 512},
}

// renderText draws one scanline of a tiled (non-affine) background,
// handling 4bpp/8bpp tiles and the four text screen sizes.
func (p *PPU) renderText(bg int, y int) {
	b := &p.regs.bg[bg]
	dims := textScreenDims[b.screenSize()]

	scrollY := (y + int(b.vofs)) % dims[1]
	tileRow := scrollY / 8
	fineY := scrollY % 8

	for x := 0; x < ScreenWidth; x++ {
		scrollX := (x + int(b.hofs)) % dims[0]
		tileCol := scrollX / 8
		fineX := scrollX % 8

		screenBlock := 0
		localCol, localRow := tileCol, tileRow
		if dims[0] == 512 && tileCol >= 32 {
			screenBlock += 1
			localCol -= 32
		}
		if dims[1] == 512 && tileRow >= 32 {
			if dims[0] == 512 {
				screenBlock += 2
			} else {
				screenBlock += 1
			}
			localRow -= 32
		}

		mapBase := b.screenBase() + uint32(screenBlock)*0x800
		entryAddr := mapBase + uint32(localRow*32+localCol)*2
		entry := uint16(p.vram[entryAddr&0x1FFFF]) | uint16(p.vram[(entryAddr+1)&0x1FFFF])<<8

		tileIndex := entry & 0x3FF
		hflip := entry&(1<<10) != 0
		vflip := entry&(1<<11) != 0
		palette := int((entry >> 12) & 0xF)

		px, py := fineX, fineY
		if hflip {
			px = 7 - px
		}
		if vflip {
			py = 7 - py
		}

		var colorIdx int
		var palBase int
		if b.is256Color() {
			tileAddr := b.charBase() + uint32(tileIndex)*64 + uint32(py*8+px)
			colorIdx = int(p.vram[tileAddr&0x1FFFF])
			palBase = 0
		} else {
			tileAddr := b.charBase() + uint32(tileIndex)*32 + uint32(py*4+px/2)
			raw := p.vram[tileAddr&0x1FFFF]
			if px&1 == 0 {
				colorIdx = int(raw & 0xF)
			} else {
				colorIdx = int(raw >> 4)
			}
			palBase = palette * 32
		}

		if colorIdx == 0 {
			continue
		}
		p.bgLine[bg][x] = bgPixel{color: p.paletteColor(palBase, colorIdx), opaque: true}
	}
}

var affineScreenDim = [4]int{128, 256, 512, 1024}

// renderAffine draws one scanline of an affine (rotation/scaling)
// background: 8bpp tiles only, with optional wraparound.
func (p *PPU) renderAffine(bg int, y int) {
	b := &p.regs.bg[bg]
	dim := affineScreenDim[b.screenSize()]
	tilesPerRow := dim / 8

	ox, oy := b.x, b.y
	for x := 0; x < ScreenWidth; x++ {
		px := ox + int32(x)*int32(b.pa)
		py := oy + int32(x)*int32(b.pc)

		srcX := int(px >> 8)
		srcY := int(py >> 8)

		if b.wraparound() {
			srcX = ((srcX % dim) + dim) % dim
			srcY = ((srcY % dim) + dim) % dim
		} else if srcX < 0 || srcX >= dim || srcY < 0 || srcY >= dim {
			continue
		}

		tileCol, tileRow := srcX/8, srcY/8
		fineX, fineY := srcX%8, srcY%8

		mapAddr := b.screenBase() + uint32(tileRow*tilesPerRow+tileCol)
		tileIndex := p.vram[mapAddr&0x1FFFF]

		tileAddr := b.charBase() + uint32(tileIndex)*64 + uint32(fineY*8+fineX)
		colorIdx := int(p.vram[tileAddr&0x1FFFF])
		if colorIdx == 0 {
			continue
		}
		p.bgLine[bg][x] = bgPixel{color: p.paletteColor(0, colorIdx), opaque: true}
	}
}

// renderBitmapDirect implements mode 3: a single 240x160 16bpp frame,
// one pixel per VRAM halfword, no palette indirection.
func (p *PPU) renderBitmapDirect(y int) {
	for x := 0; x < ScreenWidth; x++ {
		off := uint32(y*ScreenWidth+x) * 2
		color := uint16(p.vram[off]) | uint16(p.vram[off+1])<<8
		p.bgLine[2][x] = bgPixel{color: color & 0x7FFF, opaque: true}
	}
}

// renderBitmapPalette implements mode 4: 240x160 8bpp indices into the
// BG palette, double-buffered by DISPCNT's frame-select bit.
func (p *PPU) renderBitmapPalette(y int) {
	base := p.regs.frameSelect()
	for x := 0; x < ScreenWidth; x++ {
		idx := p.vram[(base+uint32(y*ScreenWidth+x))&0x1FFFF]
		if idx == 0 {
			continue
		}
		p.bgLine[2][x] = bgPixel{color: p.paletteColor(0, int(idx)), opaque: true}
	}
}

// renderBitmapSmall implements mode 5: a 160x128 16bpp frame drawn at
// the top-left of the 240x160 output, double-buffered.
func (p *PPU) renderBitmapSmall(y int) {
	const w, h = 160, 128
	if y >= h {
		return
	}
	base := p.regs.frameSelect()
	for x := 0; x < w; x++ {
		off := base + uint32(y*w+x)*2
		color := uint16(p.vram[off&0x1FFFF]) | uint16(p.vram[(off+1)&0x1FFFF])<<8
		p.bgLine[2][x] = bgPixel{color: color & 0x7FFF, opaque: true}
	}
}
