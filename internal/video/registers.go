package video

import "github.com/valerio/gbacore/internal/addr"

// background holds one BGxCNT's decoded fields plus the four scroll/
// scale registers relevant to it (HOFS/VOFS for text backgrounds,
// X/Y/PA/PB/PC/PD for the two affine ones).
type background struct {
	cnt uint16

	hofs, vofs uint16

	// Affine state (BG2/BG3 only). x/y are the reference point latched
	// when VCOUNT wraps to 0 and advanced by (pb, pd) each line; pa/pb/pc/pd are the
	// raw 8.8 fixed point registers.
	x, y             int32
	refX, refY       int32
	pa, pb, pc, pd   int16
}

func (b *background) priority() int    { return int(b.cnt & 0x3) }
func (b *background) charBase() uint32 { return uint32((b.cnt>>2)&0x3) * 0x4000 }
func (b *background) mosaic() bool     { return b.cnt&(1<<6) != 0 }
func (b *background) is256Color() bool { return b.cnt&(1<<7) != 0 }
func (b *background) screenBase() uint32 {
	return uint32((b.cnt>>8)&0x1F) * 0x800
}
func (b *background) wraparound() bool { return b.cnt&(1<<13) != 0 }
func (b *background) screenSize() int  { return int((b.cnt >> 14) & 0x3) }

// registers is the raw I/O-register backing store for the PPU, laid
// out the way DISPCNT..BLDY appear in the memory map rather than as
// one struct-per-concern, matching how the bus addresses them.
type registers struct {
	dispcnt  uint16
	dispstat uint16
	vcount   uint16
	greenswap uint16

	bg [4]background

	win0h, win1h uint16
	win0v, win1v uint16
	winin, winout uint16
	mosaic        uint16

	bldcnt   uint16
	bldalpha uint16
	bldy     uint16
}

func (r *registers) bgMode() int         { return int(r.dispcnt & 0x7) }
func (r *registers) frameSelect() uint32 {
	if r.dispcnt&(1<<4) != 0 {
		return 0xA000
	}
	return 0
}
func (r *registers) objCharMapping1D() bool { return r.dispcnt&(1<<6) != 0 }
func (r *registers) forcedBlank() bool     { return r.dispcnt&(1<<7) != 0 }
func (r *registers) bgEnabled(i int) bool  { return r.dispcnt&(1<<(8+uint(i))) != 0 }
func (r *registers) objEnabled() bool      { return r.dispcnt&(1<<12) != 0 }
func (r *registers) winEnabled(i int) bool { return r.dispcnt&(1<<(13+uint(i))) != 0 }
func (r *registers) objWinEnabled() bool   { return r.dispcnt&(1<<15) != 0 }
func (r *registers) anyWindowEnabled() bool {
	return r.winEnabled(0) || r.winEnabled(1) || r.objWinEnabled()
}

func (r *registers) vblankFlag() bool { return r.dispstat&(1<<0) != 0 }
func (r *registers) hblankFlag() bool { return r.dispstat&(1<<1) != 0 }
func (r *registers) vcountFlag() bool { return r.dispstat&(1<<2) != 0 }
func (r *registers) vblankIRQEnabled() bool { return r.dispstat&(1<<3) != 0 }
func (r *registers) hblankIRQEnabled() bool { return r.dispstat&(1<<4) != 0 }
func (r *registers) vcountIRQEnabled() bool { return r.dispstat&(1<<5) != 0 }
func (r *registers) vcountSetting() uint16  { return (r.dispstat >> 8) & 0xFF }

func (r *registers) setFlag(mask uint16, set bool) {
	if set {
		r.dispstat |= mask
	} else {
		r.dispstat &^= mask
	}
}

// ReadRegister implements bus.PPURegisters.
func (p *PPU) ReadRegister(offset uint32) uint16 {
	r := &p.regs
	switch offset {
	case addr.DISPCNT:
		return r.dispcnt
	case addr.DISPSTAT:
		return r.dispstat
	case addr.VCOUNT:
		return r.vcount
	case addr.BG0CNT:
		return r.bg[0].cnt
	case addr.BG1CNT:
		return r.bg[1].cnt
	case addr.BG2CNT:
		return r.bg[2].cnt
	case addr.BG3CNT:
		return r.bg[3].cnt
	case addr.WIN0H:
		return r.win0h
	case addr.WIN1H:
		return r.win1h
	case addr.WIN0V:
		return r.win0v
	case addr.WIN1V:
		return r.win1v
	case addr.WININ:
		return r.winin
	case addr.WINOUT:
		return r.winout
	case addr.MOSAIC:
		return r.mosaic
	case addr.BLDCNT:
		return r.bldcnt
	case addr.BLDALPHA:
		return r.bldalpha
	case addr.BLDY:
		return r.bldy
	default:
		// Write-only registers (scroll, affine, BLDY high byte) read as
		// the last opcode fetch on real hardware; modeled as 0 here since
		// the bus's open-bus fallback already covers unmapped regions.
		return 0
	}
}

// WriteRegister implements bus.PPURegisters.
func (p *PPU) WriteRegister(offset uint32, value uint16) {
	r := &p.regs
	switch offset {
	case addr.DISPCNT:
		r.dispcnt = value
	case addr.DISPSTAT:
		// VBlank/HBlank/VCount flags (bits 0-2) are PPU-owned, not
		// writable; only the enable bits and VCOUNT setting stick.
		r.dispstat = (r.dispstat & 0x7) | (value &^ 0x7)
	case addr.BG0CNT:
		r.bg[0].cnt = value
	case addr.BG1CNT:
		r.bg[1].cnt = value
	case addr.BG2CNT:
		r.bg[2].cnt = value
	case addr.BG3CNT:
		r.bg[3].cnt = value
	case addr.BG0HOFS:
		r.bg[0].hofs = value
	case addr.BG0VOFS:
		r.bg[0].vofs = value
	case addr.BG1HOFS:
		r.bg[1].hofs = value
	case addr.BG1VOFS:
		r.bg[1].vofs = value
	case addr.BG2HOFS:
		r.bg[2].hofs = value
	case addr.BG2VOFS:
		r.bg[2].vofs = value
	case addr.BG3HOFS:
		r.bg[3].hofs = value
	case addr.BG3VOFS:
		r.bg[3].vofs = value
	case addr.BG2PA:
		r.bg[2].pa = int16(value)
	case addr.BG2PB:
		r.bg[2].pb = int16(value)
	case addr.BG2PC:
		r.bg[2].pc = int16(value)
	case addr.BG2PD:
		r.bg[2].pd = int16(value)
	case addr.BG3PA:
		r.bg[3].pa = int16(value)
	case addr.BG3PB:
		r.bg[3].pb = int16(value)
	case addr.BG3PC:
		r.bg[3].pc = int16(value)
	case addr.BG3PD:
		r.bg[3].pd = int16(value)
	case addr.BG2X, addr.BG2X + 2:
		p.writeAffineRef(&r.bg[2].refX, offset-addr.BG2X, value)
	case addr.BG2Y, addr.BG2Y + 2:
		p.writeAffineRef(&r.bg[2].refY, offset-addr.BG2Y, value)
	case addr.BG3X, addr.BG3X + 2:
		p.writeAffineRef(&r.bg[3].refX, offset-addr.BG3X, value)
	case addr.BG3Y, addr.BG3Y + 2:
		p.writeAffineRef(&r.bg[3].refY, offset-addr.BG3Y, value)
	case addr.WIN0H:
		r.win0h = value
	case addr.WIN1H:
		r.win1h = value
	case addr.WIN0V:
		r.win0v = value
	case addr.WIN1V:
		r.win1v = value
	case addr.WININ:
		r.winin = value
	case addr.WINOUT:
		r.winout = value
	case addr.MOSAIC:
		r.mosaic = value
	case addr.BLDCNT:
		r.bldcnt = value
	case addr.BLDALPHA:
		r.bldalpha = value
	case addr.BLDY:
		r.bldy = value
	}
}

// writeAffineRef handles the low/high halfword of a 32-bit BGxX/BGxY
// reference-point register (28-bit signed, sign-extended to 32).
func (p *PPU) writeAffineRef(field *int32, halfOffset uint32, value uint16) {
	raw := uint32(*field) & 0xFFFFFFFF
	if halfOffset == 0 {
		raw = raw&0xFFFF0000 | uint32(value)
	} else {
		raw = raw&0x0000FFFF | uint32(value)<<16
	}
	raw <<= 4
	*field = int32(raw) >> 4
}

// ReadOAM/WriteOAM/ReadVRAM/WriteVRAM/ReadPRAM/WritePRAM implement the
// remaining bus.PPURegisters methods against the PPU's own backing
// memories (the bus only keeps its own copies as a fallback when no
// PPU is attached).

func (p *PPU) ReadOAM(offset uint32) byte     { return p.oam[offset&0x3FF] }
func (p *PPU) WriteOAM(offset uint32, v byte) { p.oam[offset&0x3FF] = v }

func (p *PPU) ReadVRAM(offset uint32) byte {
	offset &= 0x1FFFF
	if offset >= 0x18000 {
		offset -= 0x8000
	}
	return p.vram[offset]
}

func (p *PPU) WriteVRAM(offset uint32, v byte) {
	offset &= 0x1FFFF
	if offset >= 0x18000 {
		offset -= 0x8000
	}
	p.vram[offset] = v
}

func (p *PPU) ReadPRAM(offset uint32) byte     { return p.pram[offset&0x3FF] }
func (p *PPU) WritePRAM(offset uint32, v byte) { p.pram[offset&0x3FF] = v }
