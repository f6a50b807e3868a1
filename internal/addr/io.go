// Package addr enumerates the GBA I/O register offsets (relative to
// 0x0400_0000) and the memory map region bases used throughout the core.
package addr

// Memory map region bases (§3 of the spec).
const (
	BIOSBase    uint32 = 0x0000_0000
	BIOSEnd     uint32 = 0x0000_3FFF
	EWRAMBase   uint32 = 0x0200_0000
	EWRAMEnd    uint32 = 0x0203_FFFF
	IWRAMBase   uint32 = 0x0300_0000
	IWRAMEnd    uint32 = 0x0300_7FFF
	IOBase      uint32 = 0x0400_0000
	IOEnd       uint32 = 0x0400_03FE
	PRAMBase    uint32 = 0x0500_0000
	PRAMEnd     uint32 = 0x0500_03FF
	VRAMBase    uint32 = 0x0600_0000
	VRAMEnd     uint32 = 0x0601_7FFF
	VRAMMirror  uint32 = 0x0600_0000 + 0x18000
	OAMBase     uint32 = 0x0700_0000
	OAMEnd      uint32 = 0x0700_03FF
	PakBase     uint32 = 0x0800_0000
	PakEnd      uint32 = 0x0DFF_FFFF
	BackupBase  uint32 = 0x0E00_0000
	BackupEnd   uint32 = 0x0E00_FFFF
	MGBALogBase uint32 = 0x04FF_F600
	MGBALogEnd  uint32 = 0x04FF_F780
)

// Display registers.
const (
	DISPCNT  uint32 = 0x000
	DISPSTAT uint32 = 0x004
	VCOUNT   uint32 = 0x006
	BG0CNT   uint32 = 0x008
	BG1CNT   uint32 = 0x00A
	BG2CNT   uint32 = 0x00C
	BG3CNT   uint32 = 0x00E
	BG0HOFS  uint32 = 0x010
	BG0VOFS  uint32 = 0x012
	BG1HOFS  uint32 = 0x014
	BG1VOFS  uint32 = 0x016
	BG2HOFS  uint32 = 0x018
	BG2VOFS  uint32 = 0x01A
	BG3HOFS  uint32 = 0x01C
	BG3VOFS  uint32 = 0x01E
	BG2PA    uint32 = 0x020
	BG2PB    uint32 = 0x022
	BG2PC    uint32 = 0x024
	BG2PD    uint32 = 0x026
	BG2X     uint32 = 0x028
	BG2Y     uint32 = 0x02C
	BG3PA    uint32 = 0x030
	BG3PB    uint32 = 0x032
	BG3PC    uint32 = 0x034
	BG3PD    uint32 = 0x036
	BG3X     uint32 = 0x038
	BG3Y     uint32 = 0x03C
	WIN0H    uint32 = 0x040
	WIN1H    uint32 = 0x042
	WIN0V    uint32 = 0x044
	WIN1V    uint32 = 0x046
	WININ    uint32 = 0x048
	WINOUT   uint32 = 0x04A
	MOSAIC   uint32 = 0x04C
	BLDCNT   uint32 = 0x050
	BLDALPHA uint32 = 0x052
	BLDY     uint32 = 0x054
)

// Sound registers.
const (
	SOUND1CNT_L uint32 = 0x060
	SOUND1CNT_H uint32 = 0x062
	SOUND1CNT_X uint32 = 0x064
	SOUND2CNT_L uint32 = 0x068
	SOUND2CNT_H uint32 = 0x06C
	SOUND3CNT_L uint32 = 0x070
	SOUND3CNT_H uint32 = 0x072
	SOUND3CNT_X uint32 = 0x074
	SOUND4CNT_L uint32 = 0x078
	SOUND4CNT_H uint32 = 0x07C
	SOUNDCNT_L  uint32 = 0x080
	SOUNDCNT_H  uint32 = 0x082
	SOUNDCNT_X  uint32 = 0x084
	SOUNDBIAS   uint32 = 0x088
	WAVE_RAM    uint32 = 0x090 // 16 bytes, 0x090..0x09F
	FIFO_A      uint32 = 0x0A0
	FIFO_B      uint32 = 0x0A4
)

// DMA registers (base of channel 0; channels are spaced 0xC apart).
const (
	DMA0SAD    uint32 = 0x0B0
	DMA0DAD    uint32 = 0x0B4
	DMA0CNT_L  uint32 = 0x0B8
	DMA0CNT_H  uint32 = 0x0BA
	DMAChannel uint32 = 0x0C // stride between channels
)

// Timer registers (base of timer 0; channels are spaced 4 apart).
const (
	TM0CNT_L  uint32 = 0x100
	TM0CNT_H  uint32 = 0x102
	TM3CNT_H  uint32 = 0x10E
	TMChannel uint32 = 0x4
)

// Serial / keypad / interrupt registers.
const (
	SIODATA32_L uint32 = 0x120
	SIODATA32_H uint32 = 0x122
	SIOMULTI0   uint32 = 0x120
	SIOMULTI1   uint32 = 0x122
	SIOMULTI2   uint32 = 0x124
	SIOMULTI3   uint32 = 0x126
	SIOCNT      uint32 = 0x128
	SIOMLT_SEND uint32 = 0x12A
	SIODATA8    uint32 = 0x12A // alias of SIOMLT_SEND in normal mode
	KEYINPUT    uint32 = 0x130
	KEYCNT      uint32 = 0x132
	RCNT        uint32 = 0x134
	JOYCNT      uint32 = 0x140
	JOY_RECV_L  uint32 = 0x150
	JOY_RECV_H  uint32 = 0x152
	JOY_TRANS_L uint32 = 0x154
	JOY_TRANS_H uint32 = 0x156
	JOYSTAT     uint32 = 0x158
	IE          uint32 = 0x200
	IF          uint32 = 0x202
	WAITCNT     uint32 = 0x204
	IME         uint32 = 0x208
	POSTFLG     uint32 = 0x300
	HALTCNT     uint32 = 0x301
)

// GPIO port used by cartridges with an RTC/solar-sensor device, memory
// mapped at the top of the ROM region when present.
const (
	GPIODataOffset uint32 = 0xC4
	GPIODirOffset  uint32 = 0xC6
	GPIOCntOffset  uint32 = 0xC8
)
