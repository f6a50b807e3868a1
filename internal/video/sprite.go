package video

// spritePixel is one OBJ layer contribution to a screen column.
type spritePixel struct {
	color       uint16
	opaque      bool
	priority    int
	semiTrans   bool
	windowOnly  bool // OBJ-window sprite: contributes to the window mask only
}

// objShapeSize maps (shape, size) to (width, height) in pixels, the
// fixed lookup table every sprite decoder uses.
var objShapeSize = [3][4][2]int{
	0: {{8, 8}, {16, 16}, {32, 32}, {64, 64}},
	1: {{16, 8}, {32, 8}, {32, 16}, {64, 32}},
	2: {{8, 16}, {8, 32}, {16, 32}, {32, 64}},
}

// renderSprites prepares the OBJ line buffer for scanline y. Real
// hardware double-buffers this a line ahead of compositing; here it is
// simply recomputed per call since the interpreter core has no reason
// to pipeline it further.
func (p *PPU) renderSprites(y int) {
	for x := range p.spriteLineBuf {
		p.spriteLineBuf[x] = spritePixel{priority: 4}
	}
	if !p.regs.objEnabled() && !p.regs.objWinEnabled() {
		return
	}

	for i := 0; i < 128; i++ {
		base := i * 8
		attr0 := uint16(p.oam[base]) | uint16(p.oam[base+1])<<8
		attr1 := uint16(p.oam[base+2]) | uint16(p.oam[base+3])<<8
		attr2 := uint16(p.oam[base+4]) | uint16(p.oam[base+5])<<8

		objMode := int((attr0 >> 10) & 0x3)
		if objMode == 3 {
			continue // prohibited
		}
		affine := attr0&(1<<8) != 0
		doubleSize := affine && attr0&(1<<9) != 0
		if !affine && attr0&(1<<9) != 0 {
			continue // disabled
		}

		shape := int((attr0 >> 14) & 0x3)
		if shape == 3 {
			continue
		}
		size := int((attr1 >> 14) & 0x3)
		w, h := objShapeSize[shape][size][0], objShapeSize[shape][size][1]

		boundW, boundH := w, h
		if doubleSize {
			boundW, boundH = w*2, h*2
		}

		objY := int(attr0 & 0xFF)
		if objY >= 160 {
			objY -= 256
		}
		if y < objY || y >= objY+boundH {
			continue
		}

		objX := int(attr1 & 0x1FF)
		if objX >= 240 {
			objX -= 512
		}

		priority := int((attr2 >> 10) & 0x3)
		tileIndex := int(attr2 & 0x3FF)
		palette := int((attr2 >> 12) & 0xF)
		is256 := attr0&(1<<13) != 0

		rowInBox := y - objY

		var srcX, srcY int
		if affine {
			group := int((attr1 >> 9) & 0x1F)
			pa, pb, pc, pd := p.affineGroup(group)

			cx, cy := boundW/2, boundH/2
			ocx, ocy := w/2, h/2
			dx, dy := -cx, rowInBox-cy

			for col := 0; col < boundW; col++ {
				tx := (pa*int32(dx) + pb*int32(dy)) >> 8
				ty := (pc*int32(dx) + pd*int32(dy)) >> 8
				srcX = ocx + int(tx)
				srcY = ocy + int(ty)
				dx++

				screenX := objX + col
				if screenX < 0 || screenX >= ScreenWidth {
					continue
				}
				if srcX < 0 || srcX >= w || srcY < 0 || srcY >= h {
					continue
				}
				p.plotSpritePixel(screenX, srcX, srcY, tileIndex, palette, is256, priority, objMode)
			}
			continue
		}

		hflip := attr1&(1<<12) != 0
		vflip := attr1&(1<<13) != 0
		srcY = rowInBox
		if vflip {
			srcY = h - 1 - rowInBox
		}

		for col := 0; col < w; col++ {
			screenX := objX + col
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			srcX = col
			if hflip {
				srcX = w - 1 - col
			}
			p.plotSpritePixel(screenX, srcX, srcY, tileIndex, palette, is256, priority, objMode)
		}
	}
}

// affineGroup reads one of the 32 affine parameter groups interleaved
// into OAM's unused attr3 fields (group g's pa/pb/pc/pd live in the
// fourth halfword of OAM objects g*4+0..3).
func (p *PPU) affineGroup(g int) (pa, pb, pc, pd int32) {
	read := func(obj int) int32 {
		off := obj*8 + 6
		return int32(int16(uint16(p.oam[off]) | uint16(p.oam[off+1])<<8))
	}
	return read(g*4 + 0), read(g*4 + 1), read(g*4 + 2), read(g*4 + 3)
}

func (p *PPU) plotSpritePixel(screenX, srcX, srcY, tileIndex, palette int, is256 bool, priority, objMode int) {
	var colorIdx int
	tilesPerRow := 32
	if p.regs.objCharMapping1D() {
		if is256 {
			tilesPerRow = 16
		} else {
			tilesPerRow = 32
		}
	}

	tileX, tileY := srcX/8, srcY/8
	fineX, fineY := srcX%8, srcY%8

	var tileOffset int
	if p.regs.objCharMapping1D() {
		var tileStride int
		if is256 {
			tileStride = 2
		} else {
			tileStride = 1
		}
		tileOffset = tileIndex + (tileY*tilesPerRow+tileX)*tileStride
	} else {
		tileOffset = tileIndex + tileY*32 + tileX
	}

	const objBase = 0x10000
	if is256 {
		addr := uint32(objBase + tileOffset*64 + fineY*8 + fineX)
		colorIdx = int(p.vram[addr&0x1FFFF])
	} else {
		addr := uint32(objBase + tileOffset*32 + fineY*4 + fineX/2)
		raw := p.vram[addr&0x1FFFF]
		if fineX&1 == 0 {
			colorIdx = int(raw & 0xF)
		} else {
			colorIdx = int(raw >> 4)
		}
	}

	if colorIdx == 0 {
		return
	}

	cur := &p.spriteLineBuf[screenX]
	if objMode == 2 {
		cur.windowOnly = true
		return
	}
	if priority >= cur.priority && cur.opaque {
		// Lower OAM index wins ties, matching real sprite scan order.
		return
	}

	var color uint16
	if is256 {
		color = p.paletteColor(0x200, colorIdx)
	} else {
		color = p.paletteColor(0x200, palette*16+colorIdx)
	}

	*cur = spritePixel{
		color:      color,
		opaque:     true,
		priority:   priority,
		semiTrans:  objMode == 1,
		windowOnly: cur.windowOnly,
	}
}
