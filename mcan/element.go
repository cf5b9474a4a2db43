package mcan

import "encoding/binary"

// Header words of TX buffer, RX buffer and TX event elements.
const (
	elemIDMsk    = 0x1fffffff
	elemStdIDPos = 18
	elemRTR      = 1 << 29
	elemXTD      = 1 << 30
	elemESI      = 1 << 31

	elemTSMsk   = 0xffff
	elemDLCPos  = 16
	elemDLCMsk  = 0xf
	elemBRS     = 1 << 20
	elemFDF     = 1 << 21
	elemETPos   = 22
	elemETMsk   = 0x3
	elemEFC     = 1 << 23
	elemFIDXPos = 24
	elemFIDXMsk = 0x7f
	elemANMF    = 1 << 31
	elemMMPos   = 24
	elemMMMsk   = 0xff
)

func encodeID(id MessageID) uint32 {
	if id.extended {
		return id.id&elemIDMsk | elemXTD
	}
	return (id.id & maxStandardID) << elemStdIDPos
}

func decodeID(w0 uint32) MessageID {
	if w0&elemXTD != 0 {
		return MessageID{id: w0 & elemIDMsk, extended: true}
	}
	return MessageID{id: (w0 & elemIDMsk) >> elemStdIDPos}
}

func encodeMode(mode FrameMode) uint32 {
	switch mode {
	case FDLong:
		return elemFDF
	case FDLongAndFast:
		return elemFDF | elemBRS
	}
	return 0
}

func decodeMode(w1 uint32) FrameMode {
	switch {
	case w1&elemFDF == 0:
		return Classic
	case w1&elemBRS != 0:
		return FDLongAndFast
	}
	return FDLong
}

// txElement describes the control bits of a TX buffer element beyond the
// frame itself.
type txElement struct {
	marker     uint8
	storeEvent bool
}

// encodeTx writes f into the words of a TX buffer element. words holds the
// two header words followed by the data field.
func encodeTx(words []uint32, f Frame, el txElement) {
	w0 := encodeID(f.id)
	if f.remote {
		w0 |= elemRTR
	}
	w1 := uint32(f.dlc)<<elemDLCPos | encodeMode(f.mode) | uint32(el.marker)<<elemMMPos
	if el.storeEvent {
		w1 |= elemEFC
	}
	words[0] = w0
	words[1] = w1
	data := words[2:]
	for i := range data {
		data[i] = binary.LittleEndian.Uint32(f.data[i*4:])
	}
}

// decodeRx parses the words of an RX buffer or RX FIFO element. Payload
// beyond the data field of the element is not available and reads as zero.
func decodeRx(words []uint32) Frame {
	w0, w1 := words[0], words[1]
	f := Frame{
		id:           decodeID(w0),
		remote:       w0&elemRTR != 0,
		errorPassive: w0&elemESI != 0,
		dlc:          DataLengthCode((w1 >> elemDLCPos) & elemDLCMsk),
		mode:         decodeMode(w1),
		timestamp:    uint16(w1 & elemTSMsk),
		filterIndex:  uint8((w1 >> elemFIDXPos) & elemFIDXMsk),
		matched:      w1&elemANMF == 0,
	}
	n := f.dlc.Bytes()
	if f.remote {
		n = 0
	}
	if capacity := (len(words) - 2) * 4; n > capacity {
		n = capacity
	}
	var buf [4]byte
	for i := 0; i < n; i += 4 {
		binary.LittleEndian.PutUint32(buf[:], words[2+i/4])
		copy(f.data[i:n], buf[:])
	}
	return f
}

// TxEventType tells how a frame left its TX buffer.
type TxEventType uint8

const (
	_ TxEventType = iota
	// TxEvent is a frame transmitted normally.
	TxEvent
	// TxCancelledEvent is a frame transmitted despite a cancellation
	// request.
	TxCancelledEvent
)

// TxEventElement is an entry of the TX event FIFO.
type TxEventElement struct {
	ID           MessageID
	DLC          DataLengthCode
	Mode         FrameMode
	Remote       bool
	ErrorPassive bool
	Timestamp    uint16
	Marker       uint8
	Type         TxEventType
}

func decodeTxEvent(w0, w1 uint32) TxEventElement {
	return TxEventElement{
		ID:           decodeID(w0),
		Remote:       w0&elemRTR != 0,
		ErrorPassive: w0&elemESI != 0,
		DLC:          DataLengthCode((w1 >> elemDLCPos) & elemDLCMsk),
		Mode:         decodeMode(w1),
		Timestamp:    uint16(w1 & elemTSMsk),
		Marker:       uint8((w1 >> elemMMPos) & elemMMMsk),
		Type:         TxEventType((w1 >> elemETPos) & elemETMsk),
	}
}

// FilterType is the match rule of a filter element.
type FilterType uint8

const (
	// FilterRange matches ID1 <= id <= ID2.
	FilterRange FilterType = iota
	// FilterDual matches id == ID1 or id == ID2.
	FilterDual
	// FilterClassic matches id&ID2 == ID1&ID2.
	FilterClassic
	// FilterDisabled never matches. Standard filter elements only.
	FilterDisabled
)

// FilterAction is the element configuration applied on a match.
type FilterAction uint8

const (
	FilterOff FilterAction = iota
	FilterStoreFIFO0
	FilterStoreFIFO1
	FilterReject
	FilterSetPriority
	FilterSetPriorityFIFO0
	FilterSetPriorityFIFO1
	// FilterStoreRxBuffer stores matching frames into dedicated RX buffer
	// ID2. The match is on ID1 alone.
	FilterStoreRxBuffer
)

// Filter is a standard or extended acceptance filter element.
type Filter struct {
	Type   FilterType
	Action FilterAction
	ID1    uint32
	ID2    uint32
}

const (
	sftPos   = 30
	sfecPos  = 27
	sfid1Pos = 16
	efecPos  = 29
	eftPos   = 30
)

func (f Filter) validate(maxID uint32, extended bool) error {
	if f.ID1 > maxID || f.Type > FilterDisabled || f.Action > FilterStoreRxBuffer {
		return ErrInvalidFilter
	}
	if extended && f.Type == FilterDisabled {
		return ErrInvalidFilter
	}
	if f.Action == FilterStoreRxBuffer {
		if f.ID2 >= maxRxBuffers {
			return ErrInvalidFilter
		}
	} else if f.ID2 > maxID {
		return ErrInvalidFilter
	}
	return nil
}

// encodeStandard returns the single word of a standard filter element.
func (f Filter) encodeStandard() uint32 {
	return uint32(f.Type)<<sftPos |
		uint32(f.Action)<<sfecPos |
		(f.ID1&maxStandardID)<<sfid1Pos |
		f.ID2&maxStandardID
}

// encodeExtended returns the two words of an extended filter element.
func (f Filter) encodeExtended() (f0, f1 uint32) {
	f0 = uint32(f.Action)<<efecPos | f.ID1&maxExtendedID
	f1 = uint32(f.Type)<<eftPos | f.ID2&maxExtendedID
	return f0, f1
}
