package gpio

// rtcPin names the three serial lines multiplexed onto the GPIO port,
// matching source/emulator/cartridge/gpio/rtc.{hpp,cpp}'s Port enum.
type rtcPin int

const (
	pinSCK rtcPin = iota
	pinSIO
	pinCS
)

type rtcState int

const (
	rtcCommand rtcState = iota
	rtcReceiving
	rtcSending
)

type rtcRegister int

const (
	regForceReset rtcRegister = 0
	regDateTime   rtcRegister = 2
	regForceIRQ   rtcRegister = 3
	regControl    rtcRegister = 4
	regTime       rtcRegister = 6
	regFree       rtcRegister = 7
)

var rtcArgCount = [8]int{0, 0, 7, 0, 1, 0, 3, 0}

// DateTime is the BCD-free internal representation of the clock the
// frontend (or a fixed test clock) supplies; callers convert from
// wall-clock time at attach time and the RTC never advances it itself
// (real hardware has its own crystal; the core only serves reads).
type DateTime struct {
	Year, Month, Day, DayOfWeek, Hour, Minute, Second uint8
}

// RTC implements the GBA real-time clock's command/address/data
// bit-serial protocol over the GPIO port, grounded on
// source/emulator/cartridge/gpio/rtc.cpp.
type RTC struct {
	directionOf func(pin int) PortDirection

	currentBit, currentByte int
	reg                     rtcRegister
	data                    uint8
	buffer                  [7]uint8

	sck, sio, cs int
	state        rtcState

	controlUnknown, controlIRQ, mode24h, poweroff bool

	clock DateTime
}

// NewRTC returns a reset RTC. directionOf must report the current pin
// direction configuration from the owning Port.
func NewRTC(directionOf func(pin int) PortDirection) *RTC {
	r := &RTC{directionOf: directionOf}
	r.Reset()
	return r
}

// Reset restores power-on state.
func (r *RTC) Reset() {
	r.currentBit, r.currentByte = 0, 0
	r.data = 0
	r.buffer = [7]uint8{}
	r.sck, r.sio, r.cs = 0, 0, 0
	r.state = rtcCommand
	r.controlUnknown, r.controlIRQ, r.mode24h, r.poweroff = false, false, false, false
	r.clock = DateTime{Month: 1, Day: 1}
}

// SetClock installs the date/time the RTC reports on a DateTime/Time read.
func (r *RTC) SetClock(dt DateTime) { r.clock = dt }

func (r *RTC) readSIOBit() bool {
	if r.sio != 0 {
		r.data |= 1 << uint(r.currentBit)
	} else {
		r.data &^= 1 << uint(r.currentBit)
	}
	r.currentBit++
	if r.currentBit == 8 {
		r.currentBit = 0
		return true
	}
	return false
}

// ReadPort implements gpio.Device.
func (r *RTC) ReadPort() uint8 {
	if r.state == rtcSending {
		return uint8(r.sio) << uint(pinSIO)
	}
	return 1
}

// WritePort implements gpio.Device.
func (r *RTC) WritePort(value uint8) {
	oldSCK, oldCS := r.sck, r.cs

	if r.directionOf(int(pinCS)) == PortOut {
		r.cs = int((value >> uint(pinCS)) & 1)
	}
	if r.directionOf(int(pinSCK)) == PortOut {
		r.sck = int((value >> uint(pinSCK)) & 1)
	}
	if r.directionOf(int(pinSIO)) == PortOut {
		r.sio = int((value >> uint(pinSIO)) & 1)
	}

	if oldCS == 0 && r.cs != 0 {
		r.state = rtcCommand
		r.currentBit, r.currentByte = 0, 0
	}

	if r.cs == 0 || !(oldSCK == 0 && r.sck != 0) {
		return
	}

	switch r.state {
	case rtcCommand:
		r.receiveCommand()
	case rtcReceiving:
		r.receiveBuffer()
	case rtcSending:
		r.transmitBuffer()
	}
}

func (r *RTC) receiveCommand() {
	if !r.readSIOBit() {
		return
	}

	if r.data>>4 == 6 {
		// bit-reversed ("REV") command encoding, see source rtc.cpp.
		v := r.data
		v = (v << 4) | (v >> 4)
		v = ((v & 0x33) << 2) | ((v & 0xCC) >> 2)
		v = ((v & 0x55) << 1) | ((v & 0xAA) >> 1)
		r.data = v
	} else if r.data&15 != 6 {
		return
	}

	r.reg = rtcRegister((r.data >> 4) & 7)
	r.currentBit, r.currentByte = 0, 0

	if r.data&0x80 != 0 {
		r.readRegister()
		if rtcArgCount[r.reg] > 0 {
			r.state = rtcSending
		} else {
			r.state = rtcCommand
		}
	} else if rtcArgCount[r.reg] > 0 {
		r.state = rtcReceiving
	} else {
		r.writeRegister()
		r.state = rtcCommand
	}
}

func (r *RTC) receiveBuffer() {
	if r.currentByte < rtcArgCount[r.reg] && r.readSIOBit() {
		r.buffer[r.currentByte] = r.data
		r.currentByte++
		if r.currentByte == rtcArgCount[r.reg] {
			r.writeRegister()
			r.state = rtcCommand
		}
	}
}

func (r *RTC) transmitBuffer() {
	r.sio = int(r.buffer[r.currentByte] & 1)
	r.buffer[r.currentByte] >>= 1
	r.currentBit++
	if r.currentBit == 8 {
		r.currentBit = 0
		r.currentByte++
		if r.currentByte == rtcArgCount[r.reg] {
			r.state = rtcCommand
		}
	}
}

func (r *RTC) readRegister() {
	switch r.reg {
	case regControl:
		var v uint8
		if r.controlUnknown {
			v |= 2
		}
		if r.controlIRQ {
			v |= 8
		}
		if r.mode24h {
			v |= 64
		}
		if r.poweroff {
			v |= 128
		}
		r.buffer[0] = v
	case regDateTime:
		r.buffer = [7]uint8{r.clock.Year, r.clock.Month, r.clock.Day, r.clock.DayOfWeek, r.clock.Hour, r.clock.Minute, r.clock.Second}
	case regTime:
		r.buffer[0], r.buffer[1], r.buffer[2] = r.clock.Hour, r.clock.Minute, r.clock.Second
	}
}

func (r *RTC) writeRegister() {
	switch r.reg {
	case regControl:
		v := r.buffer[0]
		r.controlUnknown = v&2 != 0
		r.controlIRQ = v&8 != 0
		r.mode24h = v&64 != 0
		r.poweroff = v&128 != 0
	case regDateTime:
		r.clock = DateTime{r.buffer[0], r.buffer[1], r.buffer[2], r.buffer[3], r.buffer[4], r.buffer[5], r.buffer[6]}
	case regTime:
		r.clock.Hour, r.clock.Minute, r.clock.Second = r.buffer[0], r.buffer[1], r.buffer[2]
	case regForceReset:
		r.Reset()
	}
}
