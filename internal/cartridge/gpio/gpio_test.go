package gpio

import "testing"

type fakeDevice struct {
	written uint8
	toRead  uint8
}

func (f *fakeDevice) ReadPort() uint8      { return f.toRead }
func (f *fakeDevice) WritePort(value uint8) { f.written = value }

func TestReadDataGatedByControlRegister(t *testing.T) {
	dev := &fakeDevice{toRead: 0x5}
	p := NewPort(dev)

	if got := p.ReadData(); got != 0 {
		t.Fatalf("ReadData before enabling reads = %#x, want 0", got)
	}

	p.WriteControl(1)
	if got := p.ReadData(); got != 0x5 {
		t.Fatalf("ReadData after enabling reads = %#x, want 0x5", got)
	}
}

func TestWriteDataAlwaysReachesDevice(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPort(dev)
	p.WriteData(0x3)
	if dev.written != 0x3 {
		t.Fatalf("device.written = %#x, want 0x3", dev.written)
	}
}

func TestWriteDirectionSetsPerPinMode(t *testing.T) {
	p := NewPort(&fakeDevice{})
	p.WriteDirection(0b101)
	if p.Direction(0) != PortOut {
		t.Fatal("pin 0 should be Out")
	}
	if p.Direction(1) != PortIn {
		t.Fatal("pin 1 should be In")
	}
	if p.Direction(2) != PortOut {
		t.Fatal("pin 2 should be Out")
	}
}

// bitBangByte clocks one byte into the RTC LSB-first, matching the
// order RTC.readSIOBit reassembles it in.
func bitBangByte(r *RTC, allOut func(int) PortDirection, v uint8) {
	for bit := 0; bit < 8; bit++ {
		sio := uint8(0)
		if v&(1<<uint(bit)) != 0 {
			sio = 1
		}
		r.WritePort((sio << uint(pinSIO)) | (1 << uint(pinCS)))
		r.WritePort((sio << uint(pinSIO)) | (1 << uint(pinSCK)) | (1 << uint(pinCS)))
	}
}

func allOut(int) PortDirection { return PortOut }

func readByte(r *RTC) uint8 {
	var v uint8
	for bit := 0; bit < 8; bit++ {
		r.WritePort(1 << uint(pinCS))                         // SCK low, CS held high
		r.WritePort((1 << uint(pinSCK)) | (1 << uint(pinCS))) // SCK low->high: transmitBuffer drives the next bit onto sio
		if r.ReadPort()&(1<<uint(pinSIO)) != 0 {
			v |= 1 << uint(bit)
		}
	}
	return v
}

func TestRTCDateTimeRoundTrip(t *testing.T) {
	r := NewRTC(allOut)
	r.WritePort(0)                 // CS low
	r.WritePort(1 << uint(pinCS)) // CS rising edge resets protocol state

	want := DateTime{Year: 24, Month: 6, Day: 15, DayOfWeek: 3, Hour: 12, Minute: 30, Second: 45}
	r.SetClock(want)

	// read command: reg=regDateTime(2), read flag (bit7=1), low nibble=6
	cmd := uint8(0x80 | (2 << 4) | 6)
	bitBangByte(r, allOut, cmd)

	got := DateTime{
		Year: readByte(r), Month: readByte(r), Day: readByte(r),
		DayOfWeek: readByte(r), Hour: readByte(r), Minute: readByte(r), Second: readByte(r),
	}
	if got != want {
		t.Fatalf("transmitted clock = %+v, want %+v", got, want)
	}
}

func TestRTCForceResetRestoresPowerOnState(t *testing.T) {
	r := NewRTC(allOut)
	r.SetClock(DateTime{Year: 30})
	r.controlIRQ = true

	r.WritePort(0)
	r.WritePort(1 << uint(pinCS))

	cmd := uint8((int(regForceReset) << 4) | 6)
	bitBangByte(r, allOut, cmd)

	if r.controlIRQ {
		t.Fatal("expected controlIRQ cleared after force reset")
	}
	if r.clock.Year != 0 {
		t.Fatalf("clock.Year = %d, want 0 after reset", r.clock.Year)
	}
}
