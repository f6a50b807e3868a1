package cpu

// thumbHandler executes one fully-decoded Thumb instruction.
type thumbHandler func(c *CPU, opcode uint16, addr uint32)

// thumbTable is indexed by instr[15:6], a 1024-entry table built once
// at init by classifying each pattern into one of the 19 Thumb
// instruction formats (core/arm/instr_thumb.hpp).
var thumbTable [1024]thumbHandler

func init() {
	for i := 0; i < 1024; i++ {
		thumbTable[i] = classifyThumb(uint16(i))
	}
}

func classifyThumb(index uint16) thumbHandler {
	top6 := (index >> 4) & 0x3F // instr[15:10]
	mid4 := index & 0xF         // instr[9:6]

	switch {
	case top6&0x3E == 0x06:
		// 00011xx -> add/subtract
		return execThumbAddSubtract
	case top6&0x38 == 0x00:
		// 000xxxx (excluding the add/subtract carve-out above) -> move shifted register
		return execThumbMoveShifted
	case top6&0x38 == 0x08:
		// 001xxxx -> move/compare/add/subtract immediate
		return execThumbImmediateOp
	case top6 == 0x10:
		// 010000 -> ALU operations
		return execThumbALU
	case top6 == 0x11:
		// 010001 -> hi register operations / branch exchange
		return execThumbHiRegBX
	case top6&0x3E == 0x12:
		// 01001x -> PC-relative load
		return execThumbPCRelativeLoad
	case top6&0x3C == 0x14 && mid4&0x8 == 0:
		// 0101xx0 -> load/store with register offset
		return execThumbLoadStoreReg
	case top6&0x3C == 0x14 && mid4&0x8 != 0:
		// 0101xx1 -> load/store sign-extended byte/halfword
		return execThumbLoadStoreSignExt
	case top6&0x38 == 0x18:
		// 011xxx -> load/store with immediate offset
		return execThumbLoadStoreImm
	case top6&0x3C == 0x20:
		// 1000xx -> load/store halfword
		return execThumbLoadStoreHalf
	case top6&0x3C == 0x24:
		// 1001xx -> SP-relative load/store
		return execThumbSPRelative
	case top6&0x3C == 0x28:
		// 1010xx -> load address
		return execThumbLoadAddress
	case top6 == 0x2C:
		// 101100 -> add offset to SP
		return execThumbAddSPOffset
	case top6&0x3D == 0x2D:
		// 1011x10x with bits10:9=10 -> push/pop
		return execThumbPushPop
	case top6&0x3C == 0x30:
		// 1100xx -> multiple load/store
		return execThumbMultipleLoadStore
	case top6&0x3C == 0x34:
		// 1101xx -> conditional branch / software interrupt / undefined
		// (the cond nibble's low bits live in mid4; resolved at
		// execution time, not table classification).
		return execThumbCondBranchOrSWI
	case top6&0x3E == 0x38:
		// 11100x -> unconditional branch
		return execThumbUncondBranch
	case top6&0x3C == 0x3C:
		// 1111xx -> long branch with link
		return execThumbLongBranchLink
	default:
		return execThumbUndefined
	}
}

func (c *CPU) executeThumb(opcode uint16, addr uint32) {
	index := opcode >> 6
	thumbTable[index](c, opcode, addr)
}

func execThumbUndefined(c *CPU, opcode uint16, addr uint32) {
	c.enterException(vectorUndef, ModeUND, true, addr+2)
}

// --- Format 1: move shifted register --------------------------------------

func execThumbMoveShifted(c *CPU, opcode uint16, addr uint32) {
	op := (opcode >> 11) & 0x3
	amount := uint32((opcode >> 6) & 0x1F)
	rs := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)

	value := c.regs.Get(rs)
	var result uint32
	var carry bool
	switch op {
	case 0:
		result, carry = shiftLSL(value, amount, c.regs.cpsr.C())
	case 1:
		result, carry = shiftLSR(value, amount, c.regs.cpsr.C(), true)
	case 2:
		result, carry = shiftASR(value, amount, c.regs.cpsr.C(), true)
	}
	c.regs.Set(rd, result)
	n, z := nzFlags(result)
	c.regs.cpsr = (c.regs.cpsr &^ 0xF000_0000) | flagsPSR(n, z, carry, c.regs.cpsr.V())
}

// --- Format 2: add/subtract --------------------------------------------------

func execThumbAddSubtract(c *CPU, opcode uint16, addr uint32) {
	immediateOp := opcode&(1<<10) != 0
	subtract := opcode&(1<<9) != 0
	rs := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)

	var operand uint32
	if immediateOp {
		operand = uint32((opcode >> 6) & 0x7)
	} else {
		operand = c.regs.Get(int((opcode >> 6) & 0x7))
	}

	op1 := c.regs.Get(rs)
	var result uint32
	var carry, overflow bool
	if subtract {
		result, carry, overflow = subWithCarry(op1, operand, true)
	} else {
		result, carry, overflow = addWithCarry(op1, operand, false)
	}
	c.regs.Set(rd, result)
	n, z := nzFlags(result)
	c.regs.cpsr = (c.regs.cpsr &^ 0xF000_0000) | flagsPSR(n, z, carry, overflow)
}

// --- Format 3: move/compare/add/subtract immediate ----------------------------

func execThumbImmediateOp(c *CPU, opcode uint16, addr uint32) {
	op := (opcode >> 11) & 0x3
	rd := int((opcode >> 8) & 0x7)
	imm := uint32(opcode & 0xFF)

	op1 := c.regs.Get(rd)
	var result uint32
	var carry, overflow bool
	writesResult := true
	switch op {
	case 0: // MOV
		result, carry, overflow = imm, c.regs.cpsr.C(), c.regs.cpsr.V()
	case 1: // CMP
		result, carry, overflow = subWithCarry(op1, imm, true)
		writesResult = false
	case 2: // ADD
		result, carry, overflow = addWithCarry(op1, imm, false)
	case 3: // SUB
		result, carry, overflow = subWithCarry(op1, imm, true)
	}
	n, z := nzFlags(result)
	c.regs.cpsr = (c.regs.cpsr &^ 0xF000_0000) | flagsPSR(n, z, carry, overflow)
	if writesResult {
		c.regs.Set(rd, result)
	}
}

// --- Format 4: ALU operations -----------------------------------------------

func execThumbALU(c *CPU, opcode uint16, addr uint32) {
	op := (opcode >> 6) & 0xF
	rs := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)

	op1 := c.regs.Get(rd)
	op2 := c.regs.Get(rs)
	carryIn := c.regs.cpsr.C()

	var result uint32
	carry, overflow := carryIn, c.regs.cpsr.V()
	writesResult := true

	switch op {
	case 0x0: // AND
		result = op1 & op2
	case 0x1: // EOR
		result = op1 ^ op2
	case 0x2: // LSL
		result, carry = shiftLSL(op1, op2&0xFF, carryIn)
		c.bus.Idle()
	case 0x3: // LSR
		result, carry = shiftLSR(op1, op2&0xFF, carryIn, false)
		c.bus.Idle()
	case 0x4: // ASR
		result, carry = shiftASR(op1, op2&0xFF, carryIn, false)
		c.bus.Idle()
	case 0x5: // ADC
		result, carry, overflow = addWithCarry(op1, op2, carryIn)
	case 0x6: // SBC
		result, carry, overflow = subWithCarry(op1, op2, carryIn)
	case 0x7: // ROR
		result, carry = shiftROR(op1, op2&0xFF, carryIn, false)
		c.bus.Idle()
	case 0x8: // TST
		result, writesResult = op1&op2, false
	case 0x9: // NEG
		result, carry, overflow = subWithCarry(0, op2, true)
	case 0xA: // CMP
		result, carry, overflow = subWithCarry(op1, op2, true)
		writesResult = false
	case 0xB: // CMN
		result, carry, overflow = addWithCarry(op1, op2, false)
		writesResult = false
	case 0xC: // ORR
		result = op1 | op2
	case 0xD: // MUL
		result = op1 * op2
		c.bus.Idle()
	case 0xE: // BIC
		result = op1 &^ op2
	case 0xF: // MVN
		result = ^op2
	}

	n, z := nzFlags(result)
	c.regs.cpsr = (c.regs.cpsr &^ 0xF000_0000) | flagsPSR(n, z, carry, overflow)
	if writesResult {
		c.regs.Set(rd, result)
	}
}

// --- Format 5: hi register operations / branch exchange ----------------------

func execThumbHiRegBX(c *CPU, opcode uint16, addr uint32) {
	op := (opcode >> 8) & 0x3
	h1 := opcode&(1<<7) != 0
	h2 := opcode&(1<<6) != 0
	rs := int((opcode>>3)&0x7) + boolToReg(h2)
	rd := int(opcode&0x7) + boolToReg(h1)

	op1 := c.regs.Get(rd)
	if rd == 15 {
		op1 = (op1 &^ 1) // PC read as-is; already ahead per Get(15)
	}
	op2 := c.regs.Get(rs)

	switch op {
	case 0: // ADD
		result := op1 + op2
		if rd == 15 {
			c.writePC(result)
		} else {
			c.regs.Set(rd, result)
		}
	case 1: // CMP
		result, carry, overflow := subWithCarry(op1, op2, true)
		n, z := nzFlags(result)
		c.regs.cpsr = (c.regs.cpsr &^ 0xF000_0000) | flagsPSR(n, z, carry, overflow)
	case 2: // MOV
		if rd == 15 {
			c.writePC(op2)
		} else {
			c.regs.Set(rd, op2)
		}
	case 3: // BX (and BLX in later revisions, not modeled)
		c.regs.cpsr = c.regs.cpsr.withThumb(op2&1 != 0)
		c.writePC(op2)
	}
}

func boolToReg(b bool) int {
	if b {
		return 8
	}
	return 0
}

// --- Format 6: PC-relative load -----------------------------------------------

func execThumbPCRelativeLoad(c *CPU, opcode uint16, addr uint32) {
	rd := int((opcode >> 8) & 0x7)
	imm := uint32(opcode&0xFF) << 2
	base := (c.regs.Get(15) &^ 3) + imm
	value := c.bus.ReadWord(base, false)
	c.bus.Idle()
	c.regs.Set(rd, value)
}

// --- Format 7/8: load/store with register offset ------------------------------

func execThumbLoadStoreReg(c *CPU, opcode uint16, addr uint32) {
	load := opcode&(1<<11) != 0
	byteAccess := opcode&(1<<10) != 0
	ro := int((opcode >> 6) & 0x7)
	rb := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)

	transferAddr := c.regs.Get(rb) + c.regs.Get(ro)
	if load {
		var value uint32
		if byteAccess {
			value = uint32(c.bus.ReadByte(transferAddr, false))
		} else {
			value = c.bus.ReadWord(transferAddr&^3, false)
		}
		c.bus.Idle()
		c.regs.Set(rd, value)
	} else {
		if byteAccess {
			c.bus.WriteByte(transferAddr, byte(c.regs.Get(rd)), false)
		} else {
			c.bus.WriteWord(transferAddr&^3, c.regs.Get(rd), false)
		}
	}
}

func execThumbLoadStoreSignExt(c *CPU, opcode uint16, addr uint32) {
	hFlag := opcode&(1<<11) != 0
	signExtend := opcode&(1<<10) != 0
	ro := int((opcode >> 6) & 0x7)
	rb := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)

	transferAddr := c.regs.Get(rb) + c.regs.Get(ro)
	switch {
	case !signExtend && !hFlag: // STRH
		c.bus.WriteHalf(transferAddr, uint16(c.regs.Get(rd)), false)
	case !signExtend && hFlag: // LDRH
		value := uint32(c.bus.ReadHalf(transferAddr, false))
		c.bus.Idle()
		c.regs.Set(rd, value)
	case signExtend && !hFlag: // LDSB
		value := uint32(int32(int8(c.bus.ReadByte(transferAddr, false))))
		c.bus.Idle()
		c.regs.Set(rd, value)
	default: // LDSH
		value := uint32(int32(int16(c.bus.ReadHalf(transferAddr, false))))
		c.bus.Idle()
		c.regs.Set(rd, value)
	}
}

// --- Format 9: load/store with immediate offset -------------------------------

func execThumbLoadStoreImm(c *CPU, opcode uint16, addr uint32) {
	byteAccess := opcode&(1<<12) != 0
	load := opcode&(1<<11) != 0
	imm := uint32((opcode >> 6) & 0x1F)
	rb := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)

	var transferAddr uint32
	if byteAccess {
		transferAddr = c.regs.Get(rb) + imm
	} else {
		transferAddr = c.regs.Get(rb) + imm*4
	}

	if load {
		var value uint32
		if byteAccess {
			value = uint32(c.bus.ReadByte(transferAddr, false))
		} else {
			value = c.bus.ReadWord(transferAddr&^3, false)
		}
		c.bus.Idle()
		c.regs.Set(rd, value)
	} else {
		if byteAccess {
			c.bus.WriteByte(transferAddr, byte(c.regs.Get(rd)), false)
		} else {
			c.bus.WriteWord(transferAddr&^3, c.regs.Get(rd), false)
		}
	}
}

// --- Format 10: load/store halfword ------------------------------------------

func execThumbLoadStoreHalf(c *CPU, opcode uint16, addr uint32) {
	load := opcode&(1<<11) != 0
	imm := uint32((opcode>>6)&0x1F) * 2
	rb := int((opcode >> 3) & 0x7)
	rd := int(opcode & 0x7)
	transferAddr := c.regs.Get(rb) + imm

	if load {
		value := uint32(c.bus.ReadHalf(transferAddr, false))
		c.bus.Idle()
		c.regs.Set(rd, value)
	} else {
		c.bus.WriteHalf(transferAddr, uint16(c.regs.Get(rd)), false)
	}
}

// --- Format 11: SP-relative load/store -----------------------------------------

func execThumbSPRelative(c *CPU, opcode uint16, addr uint32) {
	load := opcode&(1<<11) != 0
	rd := int((opcode >> 8) & 0x7)
	imm := uint32(opcode&0xFF) << 2
	transferAddr := c.regs.Get(13) + imm

	if load {
		value := c.bus.ReadWord(transferAddr&^3, false)
		c.bus.Idle()
		c.regs.Set(rd, value)
	} else {
		c.bus.WriteWord(transferAddr&^3, c.regs.Get(rd), false)
	}
}

// --- Format 12: load address ------------------------------------------------

func execThumbLoadAddress(c *CPU, opcode uint16, addr uint32) {
	spSource := opcode&(1<<11) != 0
	rd := int((opcode >> 8) & 0x7)
	imm := uint32(opcode&0xFF) << 2

	var base uint32
	if spSource {
		base = c.regs.Get(13)
	} else {
		base = c.regs.Get(15) &^ 3
	}
	c.regs.Set(rd, base+imm)
}

// --- Format 13: add offset to SP -----------------------------------------------

func execThumbAddSPOffset(c *CPU, opcode uint16, addr uint32) {
	negative := opcode&(1<<7) != 0
	imm := uint32(opcode&0x7F) << 2
	if negative {
		c.regs.Set(13, c.regs.Get(13)-imm)
	} else {
		c.regs.Set(13, c.regs.Get(13)+imm)
	}
}

// --- Format 14: push/pop registers --------------------------------------------

func execThumbPushPop(c *CPU, opcode uint16, addr uint32) {
	load := opcode&(1<<11) != 0
	includeExtra := opcode&(1<<8) != 0
	list := uint8(opcode & 0xFF)

	count := 0
	for i := 0; i < 8; i++ {
		if list&(1<<i) != 0 {
			count++
		}
	}
	if includeExtra {
		count++
	}

	sp := c.regs.Get(13)
	if load { // POP
		cursor := sp
		firstAccess := true
		for i := 0; i < 8; i++ {
			if list&(1<<i) == 0 {
				continue
			}
			c.regs.Set(i, c.bus.ReadWord(cursor, !firstAccess))
			cursor += 4
			firstAccess = false
		}
		if includeExtra {
			c.writePC(c.bus.ReadWord(cursor, !firstAccess) &^ 1)
			cursor += 4
		}
		c.bus.Idle()
		c.regs.Set(13, cursor)
	} else { // PUSH
		cursor := sp - uint32(count)*4
		c.regs.Set(13, cursor)
		firstAccess := true
		for i := 0; i < 8; i++ {
			if list&(1<<i) == 0 {
				continue
			}
			c.bus.WriteWord(cursor, c.regs.Get(i), !firstAccess)
			cursor += 4
			firstAccess = false
		}
		if includeExtra {
			c.bus.WriteWord(cursor, c.regs.Get(14), !firstAccess)
		}
	}
}

// --- Format 15: multiple load/store --------------------------------------------

func execThumbMultipleLoadStore(c *CPU, opcode uint16, addr uint32) {
	load := opcode&(1<<11) != 0
	rb := int((opcode >> 8) & 0x7)
	list := uint8(opcode & 0xFF)

	count := 0
	for i := 0; i < 8; i++ {
		if list&(1<<i) != 0 {
			count++
		}
	}

	base := c.regs.Get(rb)
	cursor := base
	firstAccess := true
	for i := 0; i < 8; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if load {
			c.regs.Set(i, c.bus.ReadWord(cursor, !firstAccess))
		} else {
			c.bus.WriteWord(cursor, c.regs.Get(i), !firstAccess)
		}
		cursor += 4
		firstAccess = false
	}
	if load {
		c.bus.Idle()
	}
	c.regs.Set(rb, base+uint32(count)*4)
}

// --- Format 16: conditional branch / software interrupt ------------------------

func execThumbCondBranchOrSWI(c *CPU, opcode uint16, addr uint32) {
	cond := Condition((opcode >> 8) & 0xF)
	switch cond {
	case CondNV: // cond=1111: SWI, not "never" in this encoding slot
		c.enterException(vectorSWI, ModeSVC, true, addr+2)
		return
	case CondAL: // cond=1110: reserved/undefined in this encoding slot
		c.enterException(vectorUndef, ModeUND, true, addr+2)
		return
	}
	if !c.regs.cpsr.checkCondition(cond) {
		return
	}
	offset := int32(int8(opcode&0xFF)) * 2
	c.writePC(uint32(int32(addr) + 4 + offset))
}

// --- Format 18: unconditional branch --------------------------------------------

func execThumbUncondBranch(c *CPU, opcode uint16, addr uint32) {
	offset := (int32(opcode&0x7FF) << 21) >> 20 // sign-extend 11-bit, *2
	c.writePC(uint32(int32(addr) + 4 + offset))
}

// --- Format 19: long branch with link -------------------------------------------

func execThumbLongBranchLink(c *CPU, opcode uint16, addr uint32) {
	low := opcode&(1<<11) != 0
	offset11 := uint32(opcode & 0x7FF)

	if !low {
		hi := (int32(offset11) << 21) >> 9 // sign-extend into bits 22:12, *not yet added to PC*
		c.regs.Set(14, uint32(int32(addr)+4+hi))
		return
	}

	lr := c.regs.Get(14)
	next := addr + 2
	target := lr + offset11*2
	c.regs.Set(14, next|1)
	c.writePC(target)
}
