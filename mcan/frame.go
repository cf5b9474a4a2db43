package mcan

import "fmt"

const (
	maxStandardID = 0x7ff
	maxExtendedID = 0x1fffffff
)

// MessageID is a standard (11-bit) or extended (29-bit) CAN identifier.
type MessageID struct {
	id       uint32
	extended bool
}

// StandardID returns an 11-bit identifier.
func StandardID(id uint16) (MessageID, error) {
	if id > maxStandardID {
		return MessageID{}, ErrInvalidFrame
	}
	return MessageID{id: uint32(id)}, nil
}

// ExtendedID returns a 29-bit identifier.
func ExtendedID(id uint32) (MessageID, error) {
	if id > maxExtendedID {
		return MessageID{}, ErrInvalidFrame
	}
	return MessageID{id: id, extended: true}, nil
}

// Value returns the identifier value.
func (m MessageID) Value() uint32 { return m.id }

// IsExtended reports whether m is a 29-bit identifier.
func (m MessageID) IsExtended() bool { return m.extended }

func (m MessageID) String() string {
	if m.extended {
		return fmt.Sprintf("%08X", m.id)
	}
	return fmt.Sprintf("%03X", m.id)
}

// FrameMode is the frame format of a frame or the formats enabled on a
// node.
type FrameMode uint8

const (
	// Classic CAN frames, up to 8 bytes.
	Classic FrameMode = iota
	// FDLong is CAN FD without bit rate switching.
	FDLong
	// FDLongAndFast is CAN FD with the data phase at the fast bit rate.
	FDLongAndFast
)

func (m FrameMode) String() string {
	switch m {
	case Classic:
		return "classic"
	case FDLong:
		return "fd"
	case FDLongAndFast:
		return "fd+brs"
	}
	return fmt.Sprintf("FrameMode(%d)", uint8(m))
}

// DataLengthCode is the 4-bit length field of a frame.
type DataLengthCode uint8

// Bytes returns the payload length encoded by d.
func (d DataLengthCode) Bytes() int {
	switch {
	case d <= 8:
		return int(d)
	case d <= 12:
		return (int(d) - 6) * 4
	case d <= 15:
		return (int(d) - 11) * 16
	}
	panic(badDataLengthCode)
}

// DataLengthCodeFor returns the code for an exact payload length n.
// Lengths with no code of their own are rejected.
func DataLengthCodeFor(n int) (DataLengthCode, bool) {
	for d := DataLengthCode(0); d <= 15; d++ {
		if d.Bytes() == n {
			return d, true
		}
	}
	return 0, false
}

const maxPayload = 64

// Frame is an immutable CAN or CAN FD frame.
type Frame struct {
	id     MessageID
	dlc    DataLengthCode
	mode   FrameMode
	remote bool
	// Set on received frames only.
	errorPassive bool
	timestamp    uint16
	filterIndex  uint8
	matched      bool
	data         [maxPayload]byte
}

// NewFrame builds a data frame. Payloads of up to 8 bytes give a classic
// frame, longer ones an FD frame without bit rate switching.
func NewFrame(id MessageID, payload []byte) (Frame, error) {
	mode := Classic
	if len(payload) > 8 {
		mode = FDLong
	}
	return NewFrameMode(id, payload, mode)
}

// NewFrameMode builds a data frame of the given mode. The payload length
// must be one a data length code represents: 0 to 8 bytes, and for FD
// frames also 12, 16, 20, 24, 32, 48 and 64 bytes.
func NewFrameMode(id MessageID, payload []byte, mode FrameMode) (Frame, error) {
	if len(payload) > maxPayload || mode > FDLongAndFast {
		return Frame{}, ErrInvalidFrame
	}
	if mode == Classic && len(payload) > 8 {
		return Frame{}, ErrInvalidFrame
	}
	if id.id > maxExtendedID || (!id.extended && id.id > maxStandardID) {
		return Frame{}, ErrInvalidFrame
	}
	dlc, ok := DataLengthCodeFor(len(payload))
	if !ok {
		return Frame{}, ErrInvalidFrame
	}
	f := Frame{id: id, dlc: dlc, mode: mode}
	copy(f.data[:], payload)
	return f, nil
}

// NewRemoteFrame builds a classic remote frame requesting dlc bytes.
func NewRemoteFrame(id MessageID, dlc DataLengthCode) (Frame, error) {
	if dlc > 8 {
		return Frame{}, ErrInvalidFrame
	}
	if id.id > maxExtendedID || (!id.extended && id.id > maxStandardID) {
		return Frame{}, ErrInvalidFrame
	}
	return Frame{id: id, dlc: dlc, remote: true}, nil
}

// ID returns the frame identifier.
func (f Frame) ID() MessageID { return f.id }

// DLC returns the data length code.
func (f Frame) DLC() DataLengthCode { return f.dlc }

// Mode returns the frame format.
func (f Frame) Mode() FrameMode { return f.mode }

// IsRemote reports whether f is a remote frame.
func (f Frame) IsRemote() bool { return f.remote }

// Len returns the payload length.
func (f Frame) Len() int {
	if f.remote {
		return 0
	}
	return f.dlc.Bytes()
}

// Data returns a copy of the payload.
func (f Frame) Data() []byte {
	return append([]byte(nil), f.data[:f.Len()]...)
}

// ErrorPassive reports whether the transmitter of a received frame was
// error passive.
func (f Frame) ErrorPassive() bool { return f.errorPassive }

// Timestamp returns the receive timestamp counter value.
func (f Frame) Timestamp() uint16 { return f.timestamp }

// FilterIndex returns the index of the filter element that accepted a
// received frame. matched is false for frames accepted as non-matching.
func (f Frame) FilterIndex() (index uint8, matched bool) { return f.filterIndex, f.matched }

func (f Frame) String() string {
	if f.remote {
		return fmt.Sprintf("%s [%d] remote", f.id, f.dlc)
	}
	return fmt.Sprintf("%s [%d] % X", f.id, f.Len(), f.data[:f.Len()])
}
