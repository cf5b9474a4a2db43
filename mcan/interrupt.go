package mcan

// Interrupt is an interrupt source of a node, numbered by its bit in the
// IR and IE registers.
type Interrupt uint8

const (
	RxFIFO0NewMessage Interrupt = iota
	RxFIFO0WatermarkReached
	RxFIFO0Full
	RxFIFO0MessageLost
	RxFIFO1NewMessage
	RxFIFO1WatermarkReached
	RxFIFO1Full
	RxFIFO1MessageLost
	HighPriorityMessage
	TransmissionCompleted
	TransmissionCancellationFinished
	TxFIFOEmpty
	TxEventFIFONewEntry
	TxEventFIFOWatermarkReached
	TxEventFIFOFull
	TxEventFIFOEventLost
	TimestampWraparound
	MessageRAMAccessFailure
	TimeoutOccurred
	MessageStoredToDedicatedRxBuffer
	BitErrorCorrected
	BitErrorUncorrected
	ErrorLoggingOverflow
	ErrorPassive
	WarningStatus
	BusOffStatus
	Watchdog
	ProtocolErrorArbitration
	ProtocolErrorData
	AccessToReservedAddress

	numInterrupts
)

// InterruptGroup is a group of interrupt sources sharing one service
// request line selection.
type InterruptGroup uint8

const (
	GroupTxEventFIFO InterruptGroup = iota
	GroupHighPriority
	GroupWatermark
	GroupAlert
	GroupMessageRAMError
	GroupSafety
	GroupBusOff
	GroupLastErrorCode
	GroupRxBuffer
	GroupRxFIFO1Full
	GroupRxFIFO0Full
	GroupRxFIFO1New
	GroupRxFIFO0New
	GroupTimeout
	GroupTxCancelled
	GroupTxCompleted

	numInterruptGroups
)

// InterruptLine is one of the 16 service request outputs of a module.
type InterruptLine uint8

const numInterruptLines = 16

// InterruptRoute enables Source and directs Group to Line. Several
// sources of one group share the line of the group.
type InterruptRoute struct {
	Source Interrupt
	Group  InterruptGroup
	Line   InterruptLine
}

func (r InterruptRoute) validate() error {
	if r.Source >= numInterrupts || r.Group >= numInterruptGroups || r.Line >= numInterruptLines {
		return invalid("interrupt route %d/%d/%d", r.Source, r.Group, r.Line)
	}
	return nil
}

func (i Interrupt) mask() uint32 {
	if i >= numInterrupts {
		panic(badInterrupt)
	}
	return 1 << i
}

// Groups 0 to 7 select their line in GRINT1, groups 8 to 15 in GRINT2,
// four bits per group.
func (g InterruptGroup) field() (offset uint32, pos uint8) {
	if g >= numInterruptGroups {
		panic(badInterruptGroup)
	}
	if g < 8 {
		return regGRINT1, uint8(g) * 4
	}
	return regGRINT2, uint8(g-8) * 4
}
