package mcan

import "fmt"

// FrameType selects which directions a node is configured for.
type FrameType uint8

const (
	ReceiveOnly FrameType = iota
	TransmitOnly
	TransmitAndReceive
	RemoteRequest
	RemoteAnswer
)

func (t FrameType) transmits() bool { return t != ReceiveOnly }

// TxMode selects how the TX buffers of a node are organised.
type TxMode uint8

const (
	// TxDedicatedBuffers uses only buffers addressed by index.
	TxDedicatedBuffers TxMode = iota
	// TxFIFO sends in submission order.
	TxFIFO
	// TxQueue sends by identifier priority.
	TxQueue
	// TxSharedFIFO combines dedicated buffers with a FIFO.
	TxSharedFIFO
	// TxSharedQueue combines dedicated buffers with a queue.
	TxSharedQueue
)

func (m TxMode) dedicated() bool {
	return m == TxDedicatedBuffers || m == TxSharedFIFO || m == TxSharedQueue
}

func (m TxMode) fifoQueue() bool { return m != TxDedicatedBuffers }

func (m TxMode) queue() bool { return m == TxQueue || m == TxSharedQueue }

// RxMode selects which receive storage a node uses.
type RxMode uint8

const (
	RxDedicatedBuffers RxMode = iota
	RxFIFO0Only
	RxFIFO1Only
	// RxSharedFIFO0 combines dedicated buffers with FIFO 0.
	RxSharedFIFO0
	// RxSharedFIFO1 combines dedicated buffers with FIFO 1.
	RxSharedFIFO1
	// RxSharedAll uses dedicated buffers and both FIFOs.
	RxSharedAll
)

func (m RxMode) buffers() bool {
	return m == RxDedicatedBuffers || m == RxSharedFIFO0 || m == RxSharedFIFO1 || m == RxSharedAll
}

func (m RxMode) fifo0() bool { return m == RxFIFO0Only || m == RxSharedFIFO0 || m == RxSharedAll }

func (m RxMode) fifo1() bool { return m == RxFIFO1Only || m == RxSharedFIFO1 || m == RxSharedAll }

// RxFIFOMode is the behaviour of a full RX FIFO.
type RxFIFOMode uint8

const (
	// RxFIFOBlocking drops new frames while the FIFO is full.
	RxFIFOBlocking RxFIFOMode = iota
	// RxFIFOOverwrite replaces the oldest frame.
	RxFIFOOverwrite
)

// RxFIFOConfig describes one RX FIFO.
type RxFIFOConfig struct {
	Size      uint8
	Watermark uint8
	Mode      RxFIFOMode
	FieldSize DataFieldSize
	Start     Address
}

// TxConfig describes the TX buffers and TX event FIFO of a node.
type TxConfig struct {
	Mode TxMode
	// DedicatedBuffers is the number of buffers addressed by index.
	DedicatedBuffers uint8
	// FIFOQueueSize is the number of buffers in the FIFO or queue.
	FIFOQueueSize uint8
	FieldSize     DataFieldSize
	BufferStart   Address
	// EventFIFOSize enables the TX event FIFO when non-zero. Every
	// transmitted frame then stores an event.
	EventFIFOSize      uint8
	EventFIFOWatermark uint8
	EventFIFOStart     Address
	// CompletionInterrupts enables the transmission completed interrupt of
	// every buffer.
	CompletionInterrupts bool
}

func (c TxConfig) buffers() uint32 { return uint32(c.DedicatedBuffers) + uint32(c.FIFOQueueSize) }

// RxConfig describes the RX buffers and FIFOs of a node.
type RxConfig struct {
	Mode RxMode
	// Buffers is the number of dedicated RX buffers reserved.
	Buffers         uint8
	BufferFieldSize DataFieldSize
	BufferStart     Address
	FIFO0           RxFIFOConfig
	FIFO1           RxFIFOConfig
}

// NonMatchingAction is the treatment of frames no filter element matches.
type NonMatchingAction uint8

const (
	AcceptInFIFO0 NonMatchingAction = iota
	AcceptInFIFO1
	RejectNonMatching
)

// FilterConfig is the acceptance filtering of a node.
type FilterConfig struct {
	NonMatchingStandard  NonMatchingAction
	NonMatchingExtended  NonMatchingAction
	RejectRemoteStandard bool
	RejectRemoteExtended bool
	Standard             []Filter
	Extended             []Filter
	StandardStart        Address
	ExtendedStart        Address
	// ExtendedIDMask is ANDed with extended identifiers before filtering.
	// Zero keeps all 29 bits.
	ExtendedIDMask uint32
}

// NodeConfig is the configuration applied by ConfigurableNode.Configure.
type NodeConfig struct {
	ClockSource ClockSource
	BitTiming   BitTimingConfig
	// FastBitTiming is the data phase timing of FD frames. Ignored for
	// classic nodes.
	FastBitTiming BitTimingConfig
	// TransceiverDelayOffset enables transmitter delay compensation when
	// non-zero. Unit is MCAN clock periods.
	TransceiverDelayOffset uint8
	FrameMode              FrameMode
	FrameType              FrameType
	Tx                     TxConfig
	Rx                     RxConfig
	Filter                 FilterConfig
	Interrupts             []InterruptRoute
	// RxSelect picks the receive input pin alternative, 0 for A to 7 for H.
	RxSelect uint8
	// Loopback connects the transmitter to the receiver internally.
	Loopback bool
	// TxPause inserts a two bit time pause after each transmission.
	TxPause bool
}

// DefaultNodeConfig returns a classic 1 Mbit/s node with a sample point at
// 80%, two dedicated TX buffers and a four element RX FIFO 0.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ClockSource: ClockBoth,
		BitTiming: BitTimingConfig{
			BaudRate:      1_000_000,
			SamplePoint:   8000,
			SyncJumpWidth: 3,
		},
		FastBitTiming: BitTimingConfig{
			BaudRate:      2_000_000,
			SamplePoint:   8000,
			SyncJumpWidth: 3,
		},
		FrameMode: Classic,
		FrameType: TransmitAndReceive,
		Tx: TxConfig{
			Mode:             TxDedicatedBuffers,
			DedicatedBuffers: 2,
			FieldSize:        Data8,
		},
		Rx: RxConfig{
			Mode: RxFIFO0Only,
			FIFO0: RxFIFOConfig{
				Size:      4,
				FieldSize: Data8,
			},
		},
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

// validate checks the parts of cfg that do not depend on the clock or
// the message RAM.
func (cfg *NodeConfig) validate() error {
	if cfg.FrameMode > FDLongAndFast {
		return invalid("frame mode %d", cfg.FrameMode)
	}
	if cfg.FrameType > RemoteAnswer {
		return invalid("frame type %d", cfg.FrameType)
	}
	if cfg.ClockSource > ClockSynchronous {
		return invalid("clock source %d", cfg.ClockSource)
	}
	if cfg.TransceiverDelayOffset > tdcrTDCOMsk {
		return invalid("transceiver delay offset %d", cfg.TransceiverDelayOffset)
	}
	if cfg.RxSelect > npcrRXSELMsk {
		return invalid("rx select %d", cfg.RxSelect)
	}
	if cfg.FrameType.transmits() {
		if err := cfg.Tx.validate(); err != nil {
			return err
		}
	}
	if err := cfg.Rx.validate(); err != nil {
		return err
	}
	if len(cfg.Filter.Standard) > maxStdFilters {
		return invalid("%d standard filters", len(cfg.Filter.Standard))
	}
	if len(cfg.Filter.Extended) > maxExtFilters {
		return invalid("%d extended filters", len(cfg.Filter.Extended))
	}
	if cfg.Filter.NonMatchingStandard > RejectNonMatching || cfg.Filter.NonMatchingExtended > RejectNonMatching {
		return invalid("non-matching frame action")
	}
	for i, f := range cfg.Filter.Standard {
		if err := f.validate(maxStandardID, false); err != nil {
			return fmt.Errorf("standard filter %d: %w", i, err)
		}
	}
	for i, f := range cfg.Filter.Extended {
		if err := f.validate(maxExtendedID, true); err != nil {
			return fmt.Errorf("extended filter %d: %w", i, err)
		}
	}
	for _, r := range cfg.Interrupts {
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *TxConfig) validate() error {
	if c.Mode > TxSharedQueue {
		return invalid("tx mode %d", c.Mode)
	}
	if c.FieldSize > Data64 {
		return invalid("tx data field size %d", c.FieldSize)
	}
	if c.Mode.dedicated() && c.DedicatedBuffers == 0 {
		return invalid("tx mode needs dedicated buffers")
	}
	if !c.Mode.dedicated() && c.DedicatedBuffers != 0 {
		return invalid("tx mode has no dedicated buffers")
	}
	if c.Mode.fifoQueue() && c.FIFOQueueSize == 0 {
		return invalid("tx mode needs a fifo/queue")
	}
	if !c.Mode.fifoQueue() && c.FIFOQueueSize != 0 {
		return invalid("tx mode has no fifo/queue")
	}
	if c.buffers() > maxTxBuffers {
		return invalid("%d tx buffers", c.buffers())
	}
	if c.EventFIFOSize > maxTxEventElements || c.EventFIFOWatermark > maxTxEventMark {
		return invalid("tx event fifo size %d watermark %d", c.EventFIFOSize, c.EventFIFOWatermark)
	}
	return nil
}

func (c *RxConfig) validate() error {
	if c.Mode > RxSharedAll {
		return invalid("rx mode %d", c.Mode)
	}
	if c.Mode.buffers() {
		if c.Buffers == 0 || c.Buffers > maxRxBuffers || c.BufferFieldSize > Data64 {
			return invalid("%d rx buffers of size %d", c.Buffers, c.BufferFieldSize)
		}
	}
	check := func(n int, f RxFIFOConfig) error {
		if f.Size == 0 || f.Size > maxRxFIFOElements || f.Watermark > maxWatermark || f.FieldSize > Data64 || f.Mode > RxFIFOOverwrite {
			return invalid("rx fifo%d size %d watermark %d", n, f.Size, f.Watermark)
		}
		return nil
	}
	if c.Mode.fifo0() {
		if err := check(0, c.FIFO0); err != nil {
			return err
		}
	}
	if c.Mode.fifo1() {
		if err := check(1, c.FIFO1); err != nil {
			return err
		}
	}
	return nil
}

// ramRequests lists the message RAM regions of cfg in placement order:
// filters, RX FIFOs, RX buffers, TX event FIFO, TX buffers.
func (cfg *NodeConfig) ramRequests() []RegionRequest {
	var reqs []RegionRequest
	if n := len(cfg.Filter.Standard); n > 0 {
		reqs = append(reqs, RegionRequest{Kind: StandardFilters, Count: uint32(n), Start: cfg.Filter.StandardStart})
	}
	if n := len(cfg.Filter.Extended); n > 0 {
		reqs = append(reqs, RegionRequest{Kind: ExtendedFilters, Count: uint32(n), Start: cfg.Filter.ExtendedStart})
	}
	rx := &cfg.Rx
	if rx.Mode.fifo0() {
		reqs = append(reqs, RegionRequest{Kind: RxFIFO0, Count: uint32(rx.FIFO0.Size), FieldSize: rx.FIFO0.FieldSize, Start: rx.FIFO0.Start})
	}
	if rx.Mode.fifo1() {
		reqs = append(reqs, RegionRequest{Kind: RxFIFO1, Count: uint32(rx.FIFO1.Size), FieldSize: rx.FIFO1.FieldSize, Start: rx.FIFO1.Start})
	}
	if rx.Mode.buffers() {
		reqs = append(reqs, RegionRequest{Kind: RxBuffers, Count: uint32(rx.Buffers), FieldSize: rx.BufferFieldSize, Start: rx.BufferStart})
	}
	if cfg.FrameType.transmits() {
		tx := &cfg.Tx
		if tx.EventFIFOSize > 0 {
			reqs = append(reqs, RegionRequest{Kind: TxEventFIFO, Count: uint32(tx.EventFIFOSize), Start: tx.EventFIFOStart})
		}
		reqs = append(reqs, RegionRequest{Kind: TxBuffers, Count: tx.buffers(), FieldSize: tx.FieldSize, Start: tx.BufferStart})
	}
	return reqs
}

// Fixed placements go first so automatic ones cannot take their space.
func sortFixedFirst(reqs []RegionRequest) []RegionRequest {
	out := make([]RegionRequest, 0, len(reqs))
	for _, r := range reqs {
		if _, fixed := r.Start.Offset(); fixed {
			out = append(out, r)
		}
	}
	for _, r := range reqs {
		if _, fixed := r.Start.Offset(); !fixed {
			out = append(out, r)
		}
	}
	return out
}

// nodeLayout is the placed message RAM regions of one node.
type nodeLayout struct {
	stdFilters, extFilters Region
	rxFIFO                 [2]Region
	rxBuffers              Region
	txEvents               Region
	txBuffers              Region
}

func (l *nodeLayout) set(r Region) {
	switch r.Kind {
	case StandardFilters:
		l.stdFilters = r
	case ExtendedFilters:
		l.extFilters = r
	case RxFIFO0:
		l.rxFIFO[0] = r
	case RxFIFO1:
		l.rxFIFO[1] = r
	case RxBuffers:
		l.rxBuffers = r
	case TxEventFIFO:
		l.txEvents = r
	case TxBuffers:
		l.txBuffers = r
	}
}

func (l *nodeLayout) regions() []Region {
	var out []Region
	for _, r := range []Region{l.stdFilters, l.extFilters, l.rxFIFO[0], l.rxFIFO[1], l.rxBuffers, l.txEvents, l.txBuffers} {
		if r.Count > 0 {
			out = append(out, r)
		}
	}
	return out
}
