// Package port drives the general purpose I/O ports of TC3xx devices.
package port

import "github.com/tinygo-org/mcan/mcan"

// Base is the address of port P00. Port Pnn follows at Base + nn*0x100.
const Base = 0xF003A000

const (
	portStride = 0x100
	regOMR     = 0x04
	regIOCR0   = 0x10
	regIN      = 0x24
)

// IOCR PCx field, one byte per pin.
const (
	iocrPCPos = 3
	iocrPCMsk = 0x1f

	pcInput     = 0x00
	pcPullDown  = 0x01
	pcPullUp    = 0x02
	pcPushPull  = 0x10
	pcOpenDrain = 0x18
)

// Mode selects a pin function.
type Mode uint8

const (
	Input Mode = iota
	InputPullUp
	InputPullDown
	Output
	OutputOpenDrain
)

// Pin is pin number pin of port Pport, for example P20.6 is Pin{20, 6}.
type Pin struct {
	bus  mcan.Bus
	port uint8
	pin  uint8
}

// New returns pin pin of port port. It panics for pins above 15.
func New(bus mcan.Bus, port, pin uint8) Pin {
	if pin > 15 {
		panic("port: invalid pin")
	}
	return Pin{bus: bus, port: port, pin: pin}
}

func (p Pin) reg(offset uint32) mcan.Register {
	return mcan.NewRegister(p.bus, Base+uint32(p.port)*portStride+offset)
}

func (p Pin) iocr() (mcan.Register, uint8) {
	return p.reg(regIOCR0 + uint32(p.pin/4)*4), (p.pin%4)*8 + iocrPCPos
}

// Configure sets the pin function.
func (p Pin) Configure(mode Mode) {
	pc := uint32(pcInput)
	switch mode {
	case InputPullUp:
		pc = pcPullUp
	case InputPullDown:
		pc = pcPullDown
	case Output:
		pc = pcPushPull
	case OutputOpenDrain:
		pc = pcOpenDrain
	}
	r, pos := p.iocr()
	r.ReplaceBits(pc, iocrPCMsk, pos)
}

// ConfigureAlternate connects the pin to push-pull alternate output alt,
// 1 to 7, such as a CAN node TXD line.
func (p Pin) ConfigureAlternate(alt uint8) {
	if alt == 0 || alt > 7 {
		panic("port: invalid alternate output")
	}
	r, pos := p.iocr()
	r.ReplaceBits(pcPushPull|uint32(alt), iocrPCMsk, pos)
}

// omr writes the output modification register. Setting both ps and pcl
// toggles the pin.
func (p Pin) omr(ps, pcl uint32) {
	p.reg(regOMR).Set((pcl<<16 | ps) << p.pin)
}

// Set drives the pin high or low.
func (p Pin) Set(high bool) {
	if high {
		p.omr(1, 0)
	} else {
		p.omr(0, 1)
	}
}

func (p Pin) High() { p.Set(true) }

func (p Pin) Low() { p.Set(false) }

func (p Pin) Toggle() { p.omr(1, 1) }

// Get returns the pin input level.
func (p Pin) Get() bool {
	return p.reg(regIN).HasBits(1 << p.pin)
}
