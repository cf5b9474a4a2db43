package mcan

import "fmt"

// NodeState is the configuration phase of a claimed node.
type NodeState uint8

const (
	// NodeClaimed is a node taken from its module with no hardware changes.
	NodeClaimed NodeState = iota
	// NodeConfigChangeEnabled is a node held in INIT with CCE set. Timing
	// and message RAM configuration registers are writable.
	NodeConfigChangeEnabled
	// NodeConfigured is a node that has left INIT and takes part in bus
	// communication.
	NodeConfigured
)

func (s NodeState) String() string {
	switch s {
	case NodeClaimed:
		return "claimed"
	case NodeConfigChangeEnabled:
		return "config change enabled"
	case NodeConfigured:
		return "configured"
	}
	return fmt.Sprintf("NodeState(%d)", uint8(s))
}

// ConfigurableNode is a claimed node that has not been configured yet.
type ConfigurableNode struct {
	module *Module
	id     NodeID
	base   uint32
	state  NodeState
}

// ID returns the node slot.
func (n *ConfigurableNode) ID() NodeID { return n.id }

// State returns the configuration phase of the node.
func (n *ConfigurableNode) State() NodeState { return n.state }

func (n *ConfigurableNode) reg(offset uint32) Register {
	return NewRegister(n.module.bus, n.base+offset)
}

// protected returns a register that is only writable while the node is in
// configuration change.
func (n *ConfigurableNode) protected(offset uint32) Register {
	if n.state != NodeConfigChangeEnabled {
		panic(badConfigState)
	}
	return n.reg(offset)
}

// Configure programs the node and starts it. Bit timings and the message
// RAM layout are resolved before the node is touched; an error from
// either leaves the node claimed and unchanged. If the clock source switch
// fails the node stays in configuration change and Configure may be
// called again.
//
// Configure waits for the node to acknowledge each INIT and CCE change.
// The waits have no timeout.
func (n *ConfigurableNode) Configure(cfg NodeConfig) (*Node, error) {
	if n.state == NodeConfigured {
		return nil, ErrNodeConfigured
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	clock := n.module.ClockFrequency()
	nominal, err := cfg.BitTiming.resolve(clock, nominalLimits)
	if err != nil {
		return nil, fmt.Errorf("nominal bit timing: %w", err)
	}
	var fast BitTiming
	if cfg.FrameMode != Classic {
		fast, err = cfg.FastBitTiming.resolve(clock, dataLimits)
		if err != nil {
			return nil, fmt.Errorf("data bit timing: %w", err)
		}
	}
	ram := n.module.ram.Clone()
	var layout nodeLayout
	for _, req := range sortFixedFirst(cfg.ramRequests()) {
		r, err := ram.Place(req)
		if err != nil {
			return nil, err
		}
		layout.set(r)
	}

	n.enableConfigurationChange()
	if err := n.module.setClockSource(n.id, cfg.ClockSource); err != nil {
		return nil, err
	}
	n.setNominalBitTiming(nominal)
	if cfg.FrameMode != Classic {
		n.setDataBitTiming(fast)
		if cfg.TransceiverDelayOffset != 0 {
			n.setTransceiverDelayCompensation(cfg.TransceiverDelayOffset)
		}
	}
	n.setFrameMode(cfg.FrameMode, cfg.TxPause)
	if cfg.FrameType.transmits() {
		n.setTx(&cfg.Tx, &layout)
	}
	n.setRx(&cfg.Rx, &layout)
	n.setFilters(&cfg.Filter, &layout)
	n.setInterrupts(cfg.Interrupts)
	n.setPort(cfg.RxSelect, cfg.Loopback)

	n.module.ram = ram
	n.disableConfigurationChange()
	n.module.logf("mcan %#x: node %d configured, %d bit/s %s", n.module.base, n.id, nominal.BitRate(clock), cfg.FrameMode)

	node := &Node{
		module:    n.module,
		id:        n.id,
		base:      n.base,
		mode:      cfg.FrameMode,
		frameType: cfg.FrameType,
		rxMode:    cfg.Rx.Mode,
		layout:    layout,
	}
	if cfg.FrameType.transmits() {
		node.txMode = cfg.Tx.Mode
		node.txDedicated = cfg.Tx.DedicatedBuffers
		node.txFIFOQueue = cfg.Tx.FIFOQueueSize
		node.txFieldSize = cfg.Tx.FieldSize
		node.storeEvents = cfg.Tx.EventFIFOSize > 0
	}
	return node, nil
}

// enableConfigurationChange puts the node into INIT with CCE set. A node
// found in INIT is first taken out of it so the sequence starts from a
// known state.
func (n *ConfigurableNode) enableConfigurationChange() {
	cccr := n.reg(regCCCR)
	if cccr.HasBits(cccrINIT) {
		cccr.ClearBits(cccrCCE)
		for cccr.HasBits(cccrCCE) {
		}
		cccr.ClearBits(cccrINIT)
		for cccr.HasBits(cccrINIT) {
		}
	}
	cccr.SetBits(cccrINIT)
	for !cccr.HasBits(cccrINIT) {
	}
	cccr.SetBits(cccrCCE | cccrINIT)
	n.state = NodeConfigChangeEnabled
}

func (n *ConfigurableNode) disableConfigurationChange() {
	cccr := n.reg(regCCCR)
	cccr.ClearBits(cccrCCE)
	for cccr.HasBits(cccrCCE) {
	}
	cccr.ClearBits(cccrINIT)
	for cccr.HasBits(cccrINIT) {
	}
	n.state = NodeConfigured
}

func (n *ConfigurableNode) setNominalBitTiming(t BitTiming) {
	n.protected(regNBTP).Set(t.nbtp())
}

func (n *ConfigurableNode) setDataBitTiming(t BitTiming) {
	n.protected(regDBTP).Modify(func(v uint32) uint32 {
		return v&dbtpTDC | t.dbtp()
	})
}

func (n *ConfigurableNode) setTransceiverDelayCompensation(offset uint8) {
	if offset > tdcrTDCOMsk {
		panic(badTransceiverTDCO)
	}
	n.protected(regDBTP).SetBits(dbtpTDC)
	n.protected(regTDCR).ReplaceBits(uint32(offset), tdcrTDCOMsk, tdcrTDCOPos)
}

func (n *ConfigurableNode) setFrameMode(mode FrameMode, txPause bool) {
	var fdoe, brse bool
	switch mode {
	case FDLong:
		fdoe = true
	case FDLongAndFast:
		fdoe, brse = true, true
	}
	n.protected(regCCCR).Modify(func(v uint32) uint32 {
		v &^= cccrFDOE | cccrBRSE | cccrTXP
		if fdoe {
			v |= cccrFDOE
		}
		if brse {
			v |= cccrBRSE
		}
		if txPause {
			v |= cccrTXP
		}
		return v
	})
}

func (n *ConfigurableNode) setTx(tx *TxConfig, layout *nodeLayout) {
	n.protected(regTXESC).ReplaceBits(uint32(tx.FieldSize), dsMsk, txescTBDSPos)
	txbc := layout.txBuffers.Start&startAddrMsk |
		uint32(tx.DedicatedBuffers)<<txbcNDTBPos |
		uint32(tx.FIFOQueueSize)<<txbcTFQSPos
	if tx.Mode.queue() {
		txbc |= txbcTFQM
	}
	n.protected(regTXBC).Set(txbc)
	if tx.CompletionInterrupts {
		n.protected(regTXBTIE).SetBits(uint32(1)<<tx.buffers() - 1)
	}
	n.protected(regTXEFC).Set(layout.txEvents.Start&startAddrMsk |
		uint32(tx.EventFIFOSize)<<txefcEFSPos |
		uint32(tx.EventFIFOWatermark)<<txefcEFWMPos)
}

func (n *ConfigurableNode) setRx(rx *RxConfig, layout *nodeLayout) {
	n.protected(regRXESC).Set(uint32(rx.FIFO0.FieldSize)<<rxescF0DSPos |
		uint32(rx.FIFO1.FieldSize)<<rxescF1DSPos |
		uint32(rx.BufferFieldSize)<<rxescRBDSPos)
	if rx.Mode.buffers() {
		n.protected(regRXBC).ReplaceBits(layout.rxBuffers.Start, startAddrMsk, 0)
	}
	fifos := [2]struct {
		enabled bool
		offset  uint32
		cfg     RxFIFOConfig
	}{
		{rx.Mode.fifo0(), regRXF0C, rx.FIFO0},
		{rx.Mode.fifo1(), regRXF1C, rx.FIFO1},
	}
	for i, f := range fifos {
		if !f.enabled {
			n.protected(f.offset).Set(0)
			continue
		}
		var om uint32
		if f.cfg.Mode == RxFIFOOverwrite {
			om = rxfcOM
		}
		n.protected(f.offset).Set(layout.rxFIFO[i].Start&startAddrMsk |
			uint32(f.cfg.Size)<<rxfcSPos |
			uint32(f.cfg.Watermark)<<rxfcWMPos |
			om)
	}
}

func (n *ConfigurableNode) setFilters(f *FilterConfig, layout *nodeLayout) {
	var gfc uint32
	gfc |= uint32(f.NonMatchingStandard) << gfcANFSPos
	gfc |= uint32(f.NonMatchingExtended) << gfcANFEPos
	if f.RejectRemoteStandard {
		gfc |= gfcRRFS
	}
	if f.RejectRemoteExtended {
		gfc |= gfcRRFE
	}
	n.protected(regGFC).Set(gfc)

	n.protected(regSIDFC).Set(layout.stdFilters.Start&startAddrMsk |
		uint32(len(f.Standard))<<sidfcLSSPos)
	n.protected(regXIDFC).Set(layout.extFilters.Start&startAddrMsk |
		uint32(len(f.Extended))<<xidfcLSEPos)
	mask := f.ExtendedIDMask
	if mask == 0 {
		mask = xidamMsk
	}
	n.protected(regXIDAM).Set(mask & xidamMsk)

	m := n.module
	for i, e := range f.Standard {
		m.writeRAM(layout.stdFilters.Element(uint32(i)), []uint32{e.encodeStandard()})
	}
	for i, e := range f.Extended {
		f0, f1 := e.encodeExtended()
		m.writeRAM(layout.extFilters.Element(uint32(i)), []uint32{f0, f1})
	}
}

func (n *ConfigurableNode) setInterrupts(routes []InterruptRoute) {
	if len(routes) == 0 {
		return
	}
	ie := n.reg(regIE)
	for _, r := range routes {
		if r.Line >= numInterruptLines {
			panic(badInterruptLine)
		}
		ie.SetBits(r.Source.mask())
		offset, pos := r.Group.field()
		n.reg(offset).ReplaceBits(uint32(r.Line), 0xf, pos)
	}
	n.reg(regILE).SetBits(ileEINT0 | ileEINT1)
}

func (n *ConfigurableNode) setPort(rxsel uint8, loopback bool) {
	if rxsel > npcrRXSELMsk {
		panic(badRxSelect)
	}
	npcr := n.protected(regNPCR)
	npcr.ReplaceBits(uint32(rxsel), npcrRXSELMsk, 0)
	npcr.ReplaceBits(boolToBit(loopback), 1, npcrLBMPos)
}

// Node is a configured node. Transmit and receive operations are only
// available on a Node.
type Node struct {
	module    *Module
	id        NodeID
	base      uint32
	mode      FrameMode
	frameType FrameType
	rxMode    RxMode
	layout    nodeLayout

	txMode      TxMode
	txDedicated uint8
	txFIFOQueue uint8
	txFieldSize DataFieldSize
	storeEvents bool
	marker      uint8
}

// ID returns the node slot.
func (n *Node) ID() NodeID { return n.id }

// FrameMode returns the frame formats enabled on the node.
func (n *Node) FrameMode() FrameMode { return n.mode }

// RAM returns the message RAM regions of the node.
func (n *Node) RAM() []Region { return n.layout.regions() }

// NominalTiming returns the programmed arbitration phase timing.
func (n *Node) NominalTiming() BitTiming { return nominalTimingFrom(n.reg(regNBTP).Get()) }

// DataTiming returns the programmed data phase timing.
func (n *Node) DataTiming() BitTiming { return dataTimingFrom(n.reg(regDBTP).Get()) }

func (n *Node) reg(offset uint32) Register {
	return NewRegister(n.module.bus, n.base+offset)
}
