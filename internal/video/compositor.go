package video

// windowMask is the five enable bits (BG0..BG3, OBJ) plus the blend
// enable bit that apply to a pixel, resolved by the windowing rules
// before layer selection happens.
type windowMask struct {
	bg      [4]bool
	obj     bool
	effect  bool
}

func maskFromBits(bits uint16) windowMask {
	return windowMask{
		bg:     [4]bool{bits&1 != 0, bits&2 != 0, bits&4 != 0, bits&8 != 0},
		obj:    bits&(1<<4) != 0,
		effect: bits&(1<<5) != 0,
	}
}

func inRange(v, lo, hi int) bool {
	if lo <= hi {
		return v >= lo && v < hi
	}
	return v >= lo || v < hi
}

// windowAt resolves which of WIN0/WIN1/OBJ-window/outside applies to
// (x, y), in priority order WIN0 > WIN1 > OBJ-window > outside.
func (p *PPU) windowAt(x, y int) windowMask {
	r := &p.regs
	if !r.anyWindowEnabled() {
		return windowMask{bg: [4]bool{true, true, true, true}, obj: true, effect: true}
	}

	if r.winEnabled(0) {
		x1, x2 := int(r.win0h>>8), int(r.win0h&0xFF)
		y1, y2 := int(r.win0v>>8), int(r.win0v&0xFF)
		if inRange(x, x1, x2) && inRange(y, y1, y2) {
			return maskFromBits(r.winin)
		}
	}
	if r.winEnabled(1) {
		x1, x2 := int(r.win1h>>8), int(r.win1h&0xFF)
		y1, y2 := int(r.win1v>>8), int(r.win1v&0xFF)
		if inRange(x, x1, x2) && inRange(y, y1, y2) {
			return maskFromBits(r.winin >> 8)
		}
	}
	if r.objWinEnabled() && p.spriteLineBuf[x].windowOnly {
		return maskFromBits(r.winout >> 8)
	}
	return maskFromBits(r.winout)
}

// layerPick names which layer (0-3 = BG, 4 = OBJ, 5 = backdrop) won a
// compositing slot, plus its resolved color.
type layerPick struct {
	layer int
	color uint16
}

// compositeScanline resolves windows, picks the top two visible
// layers per pixel and applies BLDCNT's blend effect, writing the
// result into the frame buffer.
func (p *PPU) compositeScanline(y int) {
	backdrop := p.paletteColor(0, 0)
	effect := (p.regs.bldcnt >> 6) & 0x3
	target1 := p.regs.bldcnt & 0x3F
	target2 := (p.regs.bldcnt >> 8) & 0x3F

	for x := 0; x < ScreenWidth; x++ {
		win := p.windowAt(x, y)

		var picks [2]layerPick
		n := 0

		spr := p.spriteLineBuf[x]
		if spr.opaque && win.obj {
			picks[n] = layerPick{layer: 4, color: spr.color}
			n++
		}

		bestBG, bestBGPriority := -1, 5
		for i := 0; i < 4; i++ {
			if !p.bgLine[i][x].opaque || !win.bg[i] {
				continue
			}
			prio := p.regs.bg[i].priority()
			if prio < bestBGPriority {
				bestBG, bestBGPriority = i, prio
			}
		}

		if n == 0 {
			if bestBG >= 0 {
				picks[0] = layerPick{layer: bestBG, color: p.bgLine[bestBG][x].color}
				n = 1
			}
		} else if bestBG >= 0 {
			// OBJ already holds slot 0; BG beats it into slot 1 unless the
			// OBJ's own priority is numerically lower (OBJ wins ties).
			if bestBGPriority < spr.priority {
				picks[0], picks[1] = layerPick{layer: bestBG, color: p.bgLine[bestBG][x].color}, picks[0]
			} else {
				picks[n] = layerPick{layer: bestBG, color: p.bgLine[bestBG][x].color}
			}
			n = 2
		}

		if n < 2 {
			picks[n] = layerPick{layer: 5, color: backdrop}
			n++
		}

		top := picks[0]
		color := top.color

		if win.effect {
			topIsTarget1 := target1&(1<<uint(top.layer)) != 0
			if spr.opaque && spr.semiTrans && top.layer == 4 && n > 1 && target2&(1<<uint(picks[1].layer)) != 0 {
				color = p.blendAlpha(top.color, picks[1].color)
			} else if topIsTarget1 {
				switch effect {
				case 1: // alpha blend
					if n > 1 && target2&(1<<uint(picks[1].layer)) != 0 {
						color = p.blendAlpha(top.color, picks[1].color)
					}
				case 2:
					color = p.blendFade(top.color, 0x7FFF) // brighten toward white
				case 3:
					color = p.blendFade(top.color, 0x0000) // darken toward black
				}
			}
		}

		p.fb.Set(x, y, color)
	}
}

func channels(c uint16) (r, g, b int) {
	return int(c & 0x1F), int((c >> 5) & 0x1F), int((c >> 10) & 0x1F)
}

func pack(r, g, b int) uint16 {
	return uint16(r&0x1F) | uint16(g&0x1F)<<5 | uint16(b&0x1F)<<10
}

func saturate5(v int) int {
	if v > 31 {
		return 31
	}
	if v < 0 {
		return 0
	}
	return v
}

func (p *PPU) blendAlpha(top, bottom uint16) uint16 {
	eva := int(p.regs.bldalpha & 0x1F)
	evb := int((p.regs.bldalpha >> 8) & 0x1F)
	tr, tg, tb := channels(top)
	br, bg, bb := channels(bottom)
	return pack(
		saturate5((tr*eva+br*evb+8)>>4),
		saturate5((tg*eva+bg*evb+8)>>4),
		saturate5((tb*eva+bb*evb+8)>>4),
	)
}

func (p *PPU) blendFade(color, target uint16) uint16 {
	evy := int(p.regs.bldy & 0x1F)
	cr, cg, cb := channels(color)
	tr, tg, tb := channels(target)
	return pack(
		saturate5(cr+(((tr-cr)*evy)>>4)),
		saturate5(cg+(((tg-cg)*evy)>>4)),
		saturate5(cb+(((tb-cb)*evy)>>4)),
	)
}
