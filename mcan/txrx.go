package mcan

// FIFO selects one of the two RX FIFOs.
type FIFO uint8

const (
	FIFO0 FIFO = iota
	FIFO1
)

// RXF1x registers follow their RXF0x counterparts at this distance.
const rxFIFOStride = regRXF1C - regRXF0C

func (f FIFO) index() uint32 {
	if f > FIFO1 {
		panic(badRxFIFO)
	}
	return uint32(f)
}

func (n *Node) txBuffers() uint8 { return n.txDedicated + n.txFIFOQueue }

func (n *Node) txBit(index uint8) uint32 {
	if index >= n.txBuffers() {
		panic(badTxBufferIndex)
	}
	return 1 << index
}

// checkTx reports why f cannot be sent from this node.
func (n *Node) checkTx(f Frame) error {
	if !n.frameType.transmits() || n.txBuffers() == 0 {
		return ErrNoTxBuffers
	}
	if f.mode > n.mode {
		return ErrFrameMode
	}
	if uint32(f.Len()) > n.txFieldSize.Bytes() {
		return ErrFrameTooLarge
	}
	return nil
}

// Transmit submits f and returns the index of the TX buffer used. Nodes
// with a TX FIFO or queue submit through it at the put index. Nodes with
// dedicated buffers only take the first buffer without a pending request.
func (n *Node) Transmit(f Frame) (uint8, error) {
	if err := n.checkTx(f); err != nil {
		return 0, err
	}
	var index uint8
	if n.txMode.fifoQueue() {
		txfqs := n.reg(regTXFQS).Get()
		if txfqs&txfqsTFQF != 0 {
			return 0, ErrTxQueueFull
		}
		index = uint8((txfqs >> txfqsTFQPIPos) & txfqsTFQPIMsk)
	} else {
		pending := n.reg(regTXBRP).Get()
		index = n.txDedicated
		for i := uint8(0); i < n.txDedicated; i++ {
			if pending&(1<<i) == 0 {
				index = i
				break
			}
		}
		if index == n.txDedicated {
			return 0, ErrTxBusy
		}
	}
	n.writeTx(index, f)
	return index, nil
}

// TransmitBuffer submits f through dedicated TX buffer index.
func (n *Node) TransmitBuffer(index uint8, f Frame) error {
	if err := n.checkTx(f); err != nil {
		return err
	}
	if index >= n.txDedicated {
		panic(badTxBufferIndex)
	}
	if n.IsTxRequestPending(index) {
		return ErrTxBusy
	}
	n.writeTx(index, f)
	return nil
}

// writeTx stores f in TX buffer index and requests its transmission.
func (n *Node) writeTx(index uint8, f Frame) {
	var buf [2 + maxPayload/4]uint32
	words := buf[:2+n.txFieldSize.Bytes()/4]
	encodeTx(words, f, txElement{marker: n.marker, storeEvent: n.storeEvents})
	n.marker++
	n.module.writeRAM(n.layout.txBuffers.Element(uint32(index)), words)
	n.reg(regTXBAR).Init(func(uint32) uint32 { return n.txBit(index) })
}

// IsTxRequestPending reports whether TX buffer index waits for transmission.
func (n *Node) IsTxRequestPending(index uint8) bool {
	return n.reg(regTXBRP).HasBits(n.txBit(index))
}

// IsTxTransmissionOccurred reports whether the last request of TX buffer
// index was transmitted.
func (n *Node) IsTxTransmissionOccurred(index uint8) bool {
	return n.reg(regTXBTO).HasBits(n.txBit(index))
}

// CancelTransmission requests cancellation of the pending request of TX
// buffer index.
func (n *Node) CancelTransmission(index uint8) {
	n.reg(regTXBCR).Init(func(uint32) uint32 { return n.txBit(index) })
}

// IsTxCancellationFinished reports whether a cancellation of TX buffer
// index completed.
func (n *Node) IsTxCancellationFinished(index uint8) bool {
	return n.reg(regTXBCF).HasBits(n.txBit(index))
}

// IsTxFIFOQueueFull reports whether the TX FIFO or queue has no free buffer.
func (n *Node) IsTxFIFOQueueFull() bool {
	return n.reg(regTXFQS).HasBits(txfqsTFQF)
}

// TxFIFOQueuePutIndex returns the buffer index the next FIFO or queue
// submission goes to.
func (n *Node) TxFIFOQueuePutIndex() uint8 {
	return uint8(n.reg(regTXFQS).Field(txfqsTFQPIMsk, txfqsTFQPIPos))
}

// TxFIFOFreeLevel returns the number of free TX FIFO buffers.
func (n *Node) TxFIFOFreeLevel() uint8 {
	return uint8(n.reg(regTXFQS).Field(txfqsTFFLMsk, 0))
}

// IsTxEventFIFOFull reports whether the TX event FIFO is full.
func (n *Node) IsTxEventFIFOFull() bool {
	return n.reg(regTXEFS).HasBits(txefsEFF)
}

// IsTxEventFIFOElementLost reports whether a TX event was dropped because
// the TX event FIFO was full.
func (n *Node) IsTxEventFIFOElementLost() bool {
	return n.reg(regTXEFS).HasBits(txefsTEFL)
}

// ReadTxEvent pops the oldest TX event. ok is false if the TX event FIFO
// is empty.
func (n *Node) ReadTxEvent() (ev TxEventElement, ok bool) {
	txefs := n.reg(regTXEFS).Get()
	if txefs&txefsEFFLMsk == 0 || n.layout.txEvents.Count == 0 {
		return TxEventElement{}, false
	}
	get := (txefs >> txefsEFGIPos) & txefsEFGIMsk
	var words [2]uint32
	n.module.readRAM(n.layout.txEvents.Element(get), words[:])
	n.reg(regTXEFA).Set(get)
	return decodeTxEvent(words[0], words[1]), true
}

// RxFIFOFillLevel returns the number of frames waiting in fifo.
func (n *Node) RxFIFOFillLevel(fifo FIFO) uint8 {
	return uint8(n.reg(regRXF0S + fifo.index()*rxFIFOStride).Field(rxfsFLMsk, 0))
}

// IsRxFIFOFull reports whether fifo is full.
func (n *Node) IsRxFIFOFull(fifo FIFO) bool {
	return n.reg(regRXF0S + fifo.index()*rxFIFOStride).HasBits(rxfsF)
}

// IsRxFIFOMessageLost reports whether a frame was dropped, or an old one
// overwritten, because fifo was full.
func (n *Node) IsRxFIFOMessageLost(fifo FIFO) bool {
	return n.reg(regRXF0S + fifo.index()*rxFIFOStride).HasBits(rxfsRFL)
}

// ReceiveFIFO pops the oldest frame of fifo and releases its element.
// ok is false if the FIFO is empty or reports a get index outside the
// FIFO.
func (n *Node) ReceiveFIFO(fifo FIFO) (f Frame, ok bool) {
	i := fifo.index()
	status := n.reg(regRXF0S + i*rxFIFOStride).Get()
	region := n.layout.rxFIFO[i]
	if status&rxfsFLMsk == 0 || region.Count == 0 {
		return Frame{}, false
	}
	get := (status >> rxfsGIPos) & rxfsGIMsk
	if get >= region.Count {
		return Frame{}, false
	}
	f = n.readRx(region, get)
	n.reg(regRXF0A + i*rxFIFOStride).Set(get & rxfaAIMsk)
	return f, true
}

func (n *Node) readRx(region Region, index uint32) Frame {
	var buf [2 + maxPayload/4]uint32
	words := buf[:region.ElementSize/4]
	n.module.readRAM(region.Element(index), words)
	return decodeRx(words)
}

// ndat returns the new data register and bit of RX buffer index.
func (n *Node) ndat(index uint8) (Register, uint32) {
	if uint32(index) >= n.layout.rxBuffers.Count {
		panic(badRxBufferIndex)
	}
	if index < 32 {
		return n.reg(regNDAT1), 1 << index
	}
	return n.reg(regNDAT2), 1 << (index - 32)
}

// IsRxBufferNewData reports whether dedicated RX buffer index holds a
// frame not yet read.
func (n *Node) IsRxBufferNewData(index uint8) bool {
	reg, bit := n.ndat(index)
	return reg.HasBits(bit)
}

// ClearRxBufferNewData releases dedicated RX buffer index.
func (n *Node) ClearRxBufferNewData(index uint8) {
	reg, bit := n.ndat(index)
	reg.Init(func(uint32) uint32 { return bit })
}

// ReceiveBuffer reads dedicated RX buffer index and releases it. ok is
// false if the buffer holds no new frame.
func (n *Node) ReceiveBuffer(index uint8) (f Frame, ok bool) {
	if !n.IsRxBufferNewData(index) {
		return Frame{}, false
	}
	f = n.readRx(n.layout.rxBuffers, uint32(index))
	n.ClearRxBufferNewData(index)
	return f, true
}

// IsInterruptPending reports whether the flag of interrupt i is set.
func (n *Node) IsInterruptPending(i Interrupt) bool {
	return n.reg(regIR).HasBits(i.mask())
}

// ClearInterrupt clears the flag of interrupt i.
func (n *Node) ClearInterrupt(i Interrupt) {
	n.reg(regIR).Init(func(uint32) uint32 { return i.mask() })
}

// EnableInterrupt enables or disables interrupt i.
func (n *Node) EnableInterrupt(i Interrupt, enable bool) {
	if enable {
		n.reg(regIE).SetBits(i.mask())
	} else {
		n.reg(regIE).ClearBits(i.mask())
	}
}

// ErrorCounters returns the transmit and receive error counters.
func (n *Node) ErrorCounters() (tx, rx uint8) {
	ecr := n.reg(regECR).Get()
	return uint8((ecr >> ecrTECPos) & ecrTECMsk), uint8((ecr >> ecrRECPos) & ecrRECMsk)
}

// IsBusOff reports whether the node is in the bus off state.
func (n *Node) IsBusOff() bool { return n.reg(regPSR).HasBits(psrBO) }

// IsErrorPassive reports whether the node is error passive.
func (n *Node) IsErrorPassive() bool { return n.reg(regPSR).HasBits(psrEP) }

// IsErrorWarning reports whether an error counter reached the warning
// limit of 96.
func (n *Node) IsErrorWarning() bool { return n.reg(regPSR).HasBits(psrEW) }

// LastErrorCode returns the type of the last protocol error.
func (n *Node) LastErrorCode() uint8 { return uint8(n.reg(regPSR).Field(psrLECMsk, 0)) }
