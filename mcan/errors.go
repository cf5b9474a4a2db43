package mcan

import "errors"

// MCAN errors.
var (
	ErrAlreadyClaimed       = errors.New("mcan: node already claimed")
	ErrNoFreeNode           = errors.New("mcan: all nodes claimed")
	ErrClockSwitchFailed    = errors.New("mcan: clock source switch not acknowledged")
	ErrRAMOverflow          = errors.New("mcan: message RAM overflow")
	ErrRAMOverlap           = errors.New("mcan: message RAM regions overlap")
	ErrInvalidFrame         = errors.New("mcan: invalid frame")
	ErrBitTimingUnreachable = errors.New("mcan: bit timing unreachable")
	ErrInvalidBitTiming     = errors.New("mcan: bit timing out of range")
	ErrInvalidConfig        = errors.New("mcan: invalid node configuration")
	ErrInvalidFilter        = errors.New("mcan: invalid filter element")
	ErrNodeConfigured       = errors.New("mcan: node already configured")
	ErrFrameMode            = errors.New("mcan: frame mode not enabled on node")
	ErrFrameTooLarge        = errors.New("mcan: frame exceeds element data field")
	ErrTxQueueFull          = errors.New("mcan: tx fifo/queue full")
	ErrTxBusy               = errors.New("mcan: tx buffer busy")
	ErrNoTxBuffers          = errors.New("mcan: node has no tx buffers")
)

const (
	badNodeIndex       = "mcan: invalid node index"
	badModuleDisabled  = "mcan: module not enabled"
	badConfigState     = "mcan: node not in configuration change"
	badRAMAlignment    = "mcan: message RAM address not word aligned"
	badRAMWindow       = "mcan: message RAM window too large"
	badTxBufferIndex   = "mcan: invalid tx buffer index"
	badRxBufferIndex   = "mcan: invalid rx buffer index"
	badRxFIFO          = "mcan: invalid rx fifo"
	badInterrupt       = "mcan: invalid interrupt"
	badInterruptGroup  = "mcan: invalid interrupt group"
	badInterruptLine   = "mcan: invalid interrupt line"
	badDataLengthCode  = "mcan: invalid data length code"
	badRxSelect        = "mcan: invalid rx pin selection"
	badTransceiverTDCO = "mcan: transceiver delay offset out of range"
)
