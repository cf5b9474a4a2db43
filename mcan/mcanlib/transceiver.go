package mcanlib

import "tinygo.org/x/drivers"

// Pin is a digital output. machine.Pin and port.Pin satisfy it.
type Pin interface {
	Set(high bool)
}

// Transceiver switches the bus transceiver of a node between normal
// operation and a low power mode.
type Transceiver interface {
	Normal() error
	Standby() error
}

// PinTransceiver is a transceiver with a standby input, such as the TLE9251
// on TC37x evaluation boards where STB is P20.6. STB high selects standby.
type PinTransceiver struct {
	STB Pin
}

// Normal drives STB low.
func (t PinTransceiver) Normal() error {
	t.STB.Set(false)
	return nil
}

// Standby drives STB high.
func (t PinTransceiver) Standby() error {
	t.STB.Set(true)
	return nil
}

// SBC registers and modes of TLE94x1 system basis chips. An SPI frame is
// an address byte, with bit 7 set for writes, followed by a data byte.
const (
	sbcRegCANControl = 0x04
	sbcWrite         = 0x80
	sbcCANModeMsk    = 0x03

	sbcCANOff    = 0x00
	sbcCANWake   = 0x01
	sbcCANNormal = 0x03
)

// SBCTransceiver controls the CAN transceiver integrated in an SPI system
// basis chip.
type SBCTransceiver struct {
	bus drivers.SPI
	cs  Pin
	tx  [2]byte
	rx  [2]byte
}

// NewSBCTransceiver returns a transceiver on a configured SPI bus. cs is
// the active low chip select.
func NewSBCTransceiver(bus drivers.SPI, cs Pin) *SBCTransceiver {
	cs.Set(true)
	return &SBCTransceiver{bus: bus, cs: cs}
}

// Normal selects normal operation and checks the chip accepted it.
func (t *SBCTransceiver) Normal() error { return t.setMode(sbcCANNormal) }

// Standby selects the wake capable low power mode.
func (t *SBCTransceiver) Standby() error { return t.setMode(sbcCANWake) }

// Off turns the transceiver off. The node no longer sees bus traffic.
func (t *SBCTransceiver) Off() error { return t.setMode(sbcCANOff) }

// Mode returns the transceiver mode bits of the CAN control register.
func (t *SBCTransceiver) Mode() (uint8, error) {
	v, err := t.transfer(sbcRegCANControl, 0)
	return v & sbcCANModeMsk, err
}

func (t *SBCTransceiver) setMode(mode uint8) error {
	if _, err := t.transfer(sbcRegCANControl|sbcWrite, mode); err != nil {
		return err
	}
	got, err := t.Mode()
	if err != nil {
		return err
	}
	if got != mode {
		return errSBCMode
	}
	return nil
}

// transfer exchanges one frame and returns the data byte shifted out by
// the chip.
func (t *SBCTransceiver) transfer(addr, data uint8) (uint8, error) {
	t.tx = [2]byte{addr, data}
	t.cs.Set(false)
	err := t.bus.Tx(t.tx[:], t.rx[:])
	t.cs.Set(true)
	return t.rx[1], err
}
