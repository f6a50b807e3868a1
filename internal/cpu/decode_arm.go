package cpu

// armHandler executes one fully-decoded ARM instruction. addr is the
// address the instruction was fetched from (needed for PC-relative
// branch targets and exception return addresses).
type armHandler func(c *CPU, opcode uint32, addr uint32)

// armTable is indexed by (instr[27:20] << 4) | instr[7:4], a 4096-entry
// table built once at package init by classifying each of the 4096
// possible index patterns into one of the instruction categories
// below, mirroring how real ARM decoders collapse the same bit space
// nba's tablegen enumerates exhaustively.
var armTable [4096]armHandler

func init() {
	for i := 0; i < 4096; i++ {
		armTable[i] = classifyARM(uint32(i))
	}
}

// classifyARM maps one (bits27_20<<4)|bits7_4 index to a handler,
// following the standard ARMv4 encoding space partition (see
// core/arm/instr_arm.hpp's category ordering, most specific first).
// b is bits[27:20], c is bits[7:4] of the full opcode.
func classifyARM(index uint32) armHandler {
	b := (index >> 4) & 0xFF
	c := index & 0xF

	switch {
	case b>>2 == 0 && c == 0x9:
		// bits27:22=000000, bits7:4=1001 -> MUL/MLA
		return execMultiply
	case b>>3 == 1 && c == 0x9:
		// bits27:23=00001 -> MULL/MLAL
		return execMultiplyLong
	case b>>3 == 2 && b&0x3 == 0 && c == 0x9:
		// bits27:23=00010, bits21:20=00, bits7:4=1001 -> SWP
		return execSwap
	case b == 0x12 && c == 0x1:
		// fixed BX encoding (cond)0001_0010_1111_1111_1111_0001_rm
		return execBranchExchange
	case b>>5 == 0 && c&0x9 == 0x9 && c&0x6 != 0:
		// bits27:25=000, bit4=1,bit7=1, SH field != 00 -> halfword/signed transfer
		return execHalfwordTransfer
	case b>>6 == 0:
		// bits27:26=00 -> data processing, or PSR transfer in disguise
		// (execDataProcessing redirects when the opcode/S-bit shape
		// matches MRS/MSR rather than TST/TEQ/CMP/CMN).
		return execDataProcessing
	case b>>6 == 1 && !(c&0x1 == 1 && b&0x20 != 0):
		// bits27:26=01, excluding the register-shift-by-register
		// "undefined instruction" sub-space (bit25=1 and bit4=1)
		return execSingleDataTransfer
	case b>>5 == 4:
		// bits27:25=100 -> LDM/STM
		return execBlockDataTransfer
	case b>>5 == 5:
		// bits27:25=101 -> B/BL
		return execBranch
	case b>>4 == 0xF:
		// bits27:24=1111 -> SWI
		return execSoftwareInterrupt
	default:
		return execUndefined
	}
}

func (c *CPU) executeARM(opcode uint32, addr uint32) {
	cond := Condition((opcode >> 28) & 0xF)
	if !c.regs.cpsr.checkCondition(cond) {
		return
	}
	index := ((opcode >> 16) & 0xFF0) | ((opcode >> 4) & 0xF)
	armTable[index](c, opcode, addr)
}

// --- Data processing -------------------------------------------------

const (
	opAND = 0x0
	opEOR = 0x1
	opSUB = 0x2
	opRSB = 0x3
	opADD = 0x4
	opADC = 0x5
	opSBC = 0x6
	opRSC = 0x7
	opTST = 0x8
	opTEQ = 0x9
	opCMP = 0xA
	opCMN = 0xB
	opORR = 0xC
	opMOV = 0xD
	opBIC = 0xE
	opMVN = 0xF
)

func execDataProcessing(c *CPU, opcode uint32, addr uint32) {
	opc := (opcode >> 21) & 0xF
	setFlags := opcode&(1<<20) != 0

	// TST/TEQ/CMP/CMN architecturally always set flags; the same
	// opcode slot with S=0 is instead a PSR transfer instruction.
	if opc >= opTST && opc <= opCMN && !setFlags {
		if opcode&(1<<21) == 0 {
			execMRS(c, opcode, addr)
		} else {
			execMSR(c, opcode, addr)
		}
		return
	}

	immediate := opcode&(1<<25) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)

	var operand2 uint32
	var shiftCarry bool
	carryIn := c.regs.cpsr.C()

	if immediate {
		imm := opcode & 0xFF
		rotate := ((opcode >> 8) & 0xF) * 2
		if rotate == 0 {
			// Unlike the register ROR #0 case (RRX), a literal rotate of
			// 0 in the immediate operand just means "no rotation".
			operand2, shiftCarry = imm, carryIn
		} else {
			operand2, shiftCarry = shiftROR(imm, rotate, carryIn, false)
		}
	} else {
		rm := c.regs.Get(int(opcode & 0xF))
		shiftType := ShiftType((opcode >> 5) & 0x3)
		if opcode&(1<<4) != 0 {
			// Register-specified shift amount: PC (if used as Rm) reads
			// as addr+12 in this one case because of the extra cycle.
			if opcode&0xF == 15 {
				rm += 4
			}
			rs := c.regs.Get(int((opcode>>8)&0xF)) & 0xFF
			c.bus.Idle()
			operand2, shiftCarry = barrelShift(shiftType, rm, rs, carryIn, false)
		} else {
			shiftAmount := (opcode >> 7) & 0x1F
			operand2, shiftCarry = barrelShift(shiftType, rm, shiftAmount, carryIn, true)
		}
	}

	op1 := c.regs.Get(rn)

	var result uint32
	var carryOut, overflow bool
	writesResult := true

	switch opc {
	case opAND:
		result, carryOut = op1&operand2, shiftCarry
	case opEOR:
		result, carryOut = op1^operand2, shiftCarry
	case opSUB:
		result, carryOut, overflow = subWithCarry(op1, operand2, true)
	case opRSB:
		result, carryOut, overflow = subWithCarry(operand2, op1, true)
	case opADD:
		result, carryOut, overflow = addWithCarry(op1, operand2, false)
	case opADC:
		result, carryOut, overflow = addWithCarry(op1, operand2, carryIn)
	case opSBC:
		result, carryOut, overflow = subWithCarry(op1, operand2, carryIn)
	case opRSC:
		result, carryOut, overflow = subWithCarry(operand2, op1, carryIn)
	case opTST:
		result, carryOut, writesResult = op1&operand2, shiftCarry, false
	case opTEQ:
		result, carryOut, writesResult = op1^operand2, shiftCarry, false
	case opCMP:
		result, carryOut, overflow = subWithCarry(op1, operand2, true)
		writesResult = false
	case opCMN:
		result, carryOut, overflow = addWithCarry(op1, operand2, false)
		writesResult = false
	case opORR:
		result, carryOut = op1|operand2, shiftCarry
	case opMOV:
		result, carryOut = operand2, shiftCarry
	case opBIC:
		result, carryOut = op1&^operand2, shiftCarry
	case opMVN:
		result, carryOut = ^operand2, shiftCarry
	}

	if setFlags {
		if rd == 15 {
			// Restoring SPSR into CPSR on a flag-setting write to PC is
			// how ARM code returns from exceptions.
			c.regs.cpsr = c.regs.SPSR()
		} else {
			n, z := nzFlags(result)
			c.regs.cpsr = (c.regs.cpsr &^ 0xF000_0000) | flagsPSR(n, z, carryOut, overflow)
		}
	}

	if writesResult {
		if rd == 15 {
			c.writePC(result)
		} else {
			c.regs.Set(rd, result)
		}
	}
}

// --- Multiply ----------------------------------------------------------

func execMultiply(c *CPU, opcode uint32, addr uint32) {
	accumulate := opcode&(1<<21) != 0
	setFlags := opcode&(1<<20) != 0
	rd := int((opcode >> 16) & 0xF)
	rn := int((opcode >> 12) & 0xF)
	rs := int((opcode >> 8) & 0xF)
	rm := int(opcode & 0xF)

	result := c.regs.Get(rm) * c.regs.Get(rs)
	if accumulate {
		result += c.regs.Get(rn)
	}
	c.regs.Set(rd, result)
	if setFlags {
		n, z := nzFlags(result)
		c.regs.cpsr = (c.regs.cpsr &^ 0xE000_0000) | flagsPSR(n, z, c.regs.cpsr.C(), c.regs.cpsr.V())
	}
	c.bus.Idle()
}

func execMultiplyLong(c *CPU, opcode uint32, addr uint32) {
	signedOp := opcode&(1<<22) != 0
	accumulate := opcode&(1<<21) != 0
	setFlags := opcode&(1<<20) != 0
	rdHi := int((opcode >> 16) & 0xF)
	rdLo := int((opcode >> 12) & 0xF)
	rs := int((opcode >> 8) & 0xF)
	rm := int(opcode & 0xF)

	var result uint64
	if signedOp {
		result = uint64(int64(int32(c.regs.Get(rm))) * int64(int32(c.regs.Get(rs))))
	} else {
		result = uint64(c.regs.Get(rm)) * uint64(c.regs.Get(rs))
	}
	if accumulate {
		result += uint64(c.regs.Get(rdHi))<<32 | uint64(c.regs.Get(rdLo))
	}
	c.regs.Set(rdLo, uint32(result))
	c.regs.Set(rdHi, uint32(result>>32))
	if setFlags {
		n := result&(1<<63) != 0
		z := result == 0
		c.regs.cpsr = (c.regs.cpsr &^ 0xC000_0000) | flagsPSR(n, z, c.regs.cpsr.C(), c.regs.cpsr.V())
	}
	c.bus.Idle()
	c.bus.Idle()
}

// --- Single data swap ----------------------------------------------------

func execSwap(c *CPU, opcode uint32, addr uint32) {
	byteSwap := opcode&(1<<22) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)
	rm := int(opcode & 0xF)
	base := c.regs.Get(rn)

	if byteSwap {
		old := c.bus.ReadByte(base, false)
		c.bus.WriteByte(base, byte(c.regs.Get(rm)), false)
		c.regs.Set(rd, uint32(old))
	} else {
		old := c.bus.ReadWord(base, false)
		c.bus.WriteWord(base, c.regs.Get(rm), false)
		c.regs.Set(rd, old)
	}
	c.bus.Idle()
}

// --- Branch and branch-exchange ------------------------------------------

func execBranch(c *CPU, opcode uint32, addr uint32) {
	link := opcode&(1<<24) != 0
	offset := int32(opcode&0xFF_FFFF) << 8 >> 6 // sign-extend 24-bit, *4
	target := uint32(int32(addr) + 8 + offset)
	if link {
		c.regs.Set(14, addr+4)
	}
	c.writePC(target)
}

func execBranchExchange(c *CPU, opcode uint32, addr uint32) {
	rm := int(opcode & 0xF)
	target := c.regs.Get(rm)
	c.regs.cpsr = c.regs.cpsr.withThumb(target&1 != 0)
	c.writePC(target)
}

// --- PSR transfer ----------------------------------------------------------

func execMRS(c *CPU, opcode uint32, addr uint32) {
	rd := int((opcode >> 12) & 0xF)
	useSPSR := opcode&(1<<22) != 0
	if useSPSR {
		c.regs.Set(rd, uint32(c.regs.SPSR()))
	} else {
		c.regs.Set(rd, uint32(c.regs.cpsr))
	}
}

func execMSR(c *CPU, opcode uint32, addr uint32) {
	useSPSR := opcode&(1<<22) != 0
	var value uint32
	if opcode&(1<<25) != 0 {
		imm := opcode & 0xFF
		rotate := ((opcode >> 8) & 0xF) * 2
		value, _ = shiftROR(imm, rotate, false, true)
	} else {
		value = c.regs.Get(int(opcode & 0xF))
	}

	flagsOnly := opcode&(1<<16) == 0
	var mask uint32 = 0xFFFF_FFFF
	if flagsOnly {
		mask = 0xF000_0000
	}

	if useSPSR {
		c.regs.setSPSR(PSR((uint32(c.regs.SPSR()) &^ mask) | (value & mask)))
	} else {
		newCPSR := PSR((uint32(c.regs.cpsr) &^ mask) | (value & mask))
		if !flagsOnly {
			c.regs.SetMode(newCPSR.Mode())
		}
		c.regs.cpsr = (c.regs.cpsr &^ PSR(mask)) | (newCPSR & PSR(mask))
	}
}

// --- Software interrupt / undefined ---------------------------------------

func execSoftwareInterrupt(c *CPU, opcode uint32, addr uint32) {
	c.enterException(vectorSWI, ModeSVC, true, addr+4)
}

func execUndefined(c *CPU, opcode uint32, addr uint32) {
	c.enterException(vectorUndef, ModeUND, true, addr+4)
}
