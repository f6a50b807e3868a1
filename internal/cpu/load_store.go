package cpu

// execSingleDataTransfer implements LDR/STR (word and byte), both
// immediate and shifted-register offset forms.
func execSingleDataTransfer(c *CPU, opcode uint32, addr uint32) {
	immediateOffset := opcode&(1<<25) == 0
	preIndex := opcode&(1<<24) != 0
	addOffset := opcode&(1<<23) != 0
	byteAccess := opcode&(1<<22) != 0
	writeback := opcode&(1<<21) != 0
	load := opcode&(1<<20) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)

	var offset uint32
	if immediateOffset {
		offset = opcode & 0xFFF
	} else {
		rm := c.regs.Get(int(opcode & 0xF))
		shiftType := ShiftType((opcode >> 5) & 0x3)
		shiftAmount := (opcode >> 7) & 0x1F
		offset, _ = barrelShift(shiftType, rm, shiftAmount, c.regs.cpsr.C(), true)
	}

	base := c.regs.Get(rn)
	var transferAddr uint32
	if preIndex {
		if addOffset {
			transferAddr = base + offset
		} else {
			transferAddr = base - offset
		}
	} else {
		transferAddr = base
	}

	if load {
		var value uint32
		if byteAccess {
			value = uint32(c.bus.ReadByte(transferAddr, false))
		} else {
			raw := c.bus.ReadWord(transferAddr&^3, false)
			rot := (transferAddr & 3) * 8
			value, _ = shiftROR(raw, rot, false, true)
			if rot == 0 {
				value = raw
			}
		}
		c.bus.Idle()
		if rd == 15 {
			c.writePC(value &^ 3)
		} else {
			c.regs.Set(rd, value)
		}
	} else {
		value := c.regs.Get(rd)
		if rd == 15 {
			value += 4 // STR PC reads as addr+12 rather than +8
		}
		if byteAccess {
			c.bus.WriteByte(transferAddr, byte(value), false)
		} else {
			c.bus.WriteWord(transferAddr&^3, value, false)
		}
	}

	if !preIndex {
		if addOffset {
			transferAddr = base + offset
		} else {
			transferAddr = base - offset
		}
		c.regs.Set(rn, transferAddr)
	} else if writeback {
		c.regs.Set(rn, transferAddr)
	}
}

// execHalfwordTransfer implements LDRH/STRH/LDRSB/LDRSH.
func execHalfwordTransfer(c *CPU, opcode uint32, addr uint32) {
	preIndex := opcode&(1<<24) != 0
	addOffset := opcode&(1<<23) != 0
	immediateOffset := opcode&(1<<22) != 0
	writeback := opcode&(1<<21) != 0
	load := opcode&(1<<20) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)
	sh := (opcode >> 5) & 0x3

	var offset uint32
	if immediateOffset {
		offset = ((opcode >> 4) & 0xF0) | (opcode & 0xF)
	} else {
		offset = c.regs.Get(int(opcode & 0xF))
	}

	base := c.regs.Get(rn)
	var transferAddr uint32
	if preIndex {
		if addOffset {
			transferAddr = base + offset
		} else {
			transferAddr = base - offset
		}
	} else {
		transferAddr = base
	}

	if load {
		var value uint32
		switch sh {
		case 1: // unsigned halfword
			value = uint32(c.bus.ReadHalf(transferAddr, false))
		case 2: // signed byte
			value = uint32(int32(int8(c.bus.ReadByte(transferAddr, false))))
		case 3: // signed halfword
			value = uint32(int32(int16(c.bus.ReadHalf(transferAddr, false))))
		}
		c.bus.Idle()
		if rd == 15 {
			c.writePC(value)
		} else {
			c.regs.Set(rd, value)
		}
	} else {
		c.bus.WriteHalf(transferAddr, uint16(c.regs.Get(rd)), false)
	}

	if !preIndex {
		if addOffset {
			transferAddr = base + offset
		} else {
			transferAddr = base - offset
		}
		c.regs.Set(rn, transferAddr)
	} else if writeback {
		c.regs.Set(rn, transferAddr)
	}
}

// execBlockDataTransfer implements LDM/STM, including the user-bank
// and CPSR-restoring "S bit" forms used by exception return sequences.
func execBlockDataTransfer(c *CPU, opcode uint32, addr uint32) {
	preIndex := opcode&(1<<24) != 0
	addOffset := opcode&(1<<23) != 0
	userBankOrRestoreCPSR := opcode&(1<<22) != 0
	writeback := opcode&(1<<21) != 0
	load := opcode&(1<<20) != 0
	rn := int((opcode >> 16) & 0xF)
	list := uint16(opcode & 0xFFFF)

	count := 0
	for i := 0; i < 16; i++ {
		if list&(1<<i) != 0 {
			count++
		}
	}
	if count == 0 {
		count = 16 // empty-list edge case: still transfers R15 worth of space
	}

	base := c.regs.Get(rn)
	var start uint32
	if addOffset {
		start = base
	} else {
		start = base - uint32(count)*4
	}

	restoreCPSR := userBankOrRestoreCPSR && load && list&(1<<15) != 0
	useUserBank := userBankOrRestoreCPSR && !restoreCPSR

	addrCursor := start
	if (addOffset && preIndex) || (!addOffset && !preIndex) {
		addrCursor += 4
	}

	firstAccess := true
	for i := 0; i < 16; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		seq := !firstAccess
		if load {
			value := c.bus.ReadWord(addrCursor, seq)
			if useUserBank && i >= 8 && i <= 14 {
				// Writes go to the USR bank regardless of current mode.
				c.regs.bank[bankNone][bankSlot(i)] = value
				if bankFor(c.regs.cpsr.Mode()) == bankNone {
					c.regs.Set(i, value)
				}
			} else if i == 15 {
				c.writePC(value &^ 3)
				if restoreCPSR {
					c.regs.cpsr = c.regs.SPSR()
				}
			} else {
				c.regs.Set(i, value)
			}
		} else {
			value := c.regs.Get(i)
			if i == 15 {
				value += 4
			}
			c.bus.WriteWord(addrCursor, value, seq)
		}
		addrCursor += 4
		firstAccess = false
	}

	if load {
		c.bus.Idle()
	}

	if writeback {
		if addOffset {
			c.regs.Set(rn, base+uint32(count)*4)
		} else {
			c.regs.Set(rn, base-uint32(count)*4)
		}
	}
}
