// Package gpio models the GBA cartridge GPIO port used by the RTC
// (and, potentially, any future device sharing the same 3-pin serial
// interface — a solar sensor is the canonical example but is not
// implemented here).
package gpio

// PortDirection is In or Out, independently configurable per pin.
type PortDirection int

const (
	PortIn PortDirection = iota
	PortOut
)

// Device is the capability interface a GPIO peripheral implements.
// RTC is the only concrete device; additional devices plug in the
// same way without needing a new memory-mapping path.
type Device interface {
	ReadPort() uint8
	WritePort(value uint8)
}

// Port is the shared 3-pin (data/direction/control) register surface
// mapped at the top of the ROM region when a GPIO device is present.
type Port struct {
	device    Device
	direction [3]PortDirection // indexed by pin number
	readable  bool             // CNT register: whether GPIODATA reads are enabled
}

// NewPort attaches device to a fresh, read-disabled port.
func NewPort(device Device) *Port {
	return &Port{device: device}
}

// Direction reports the configured direction of the given pin (0..2).
func (p *Port) Direction(pin int) PortDirection { return p.direction[pin] }

// ReadData returns the device's port byte if GPIODATA reads are
// enabled (CNT bit set), and 0 otherwise; the byte is not masked by
// pin direction.
func (p *Port) ReadData() uint8 {
	if !p.readable {
		return 0
	}
	return p.device.ReadPort()
}

// WriteData forwards a GPIODATA write to the device, regardless of
// the readable flag (writes always reach the device).
func (p *Port) WriteData(value uint8) {
	p.device.WritePort(value)
}

// WriteDirection sets pin direction from a GPIODIR write (bits 0-2).
func (p *Port) WriteDirection(value uint8) {
	for pin := 0; pin < 3; pin++ {
		if value&(1<<uint(pin)) != 0 {
			p.direction[pin] = PortOut
		} else {
			p.direction[pin] = PortIn
		}
	}
}

// WriteControl sets whether GPIODATA reads are permitted (GPIOCNT bit 0).
func (p *Port) WriteControl(value uint8) {
	p.readable = value&1 != 0
}
