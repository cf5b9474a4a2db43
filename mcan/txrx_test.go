package mcan

import (
	"bytes"
	"errors"
	"testing"
)

func testFrame(t *testing.T) Frame {
	t.Helper()
	id, err := ExtendedID(0x0CFE6E00)
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewFrame(id, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func regionOf(t *testing.T, n *Node, kind RegionKind) Region {
	t.Helper()
	for _, r := range n.RAM() {
		if r.Kind == kind {
			return r
		}
	}
	t.Fatalf("node has no %v region", kind)
	return Region{}
}

func TestTransmitDedicated(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Rx.FIFO0.Start = At(0x100)
	n := configureNode(t, m, Node0, cfg)
	f := testFrame(t)

	index, err := n.Transmit(f)
	if err != nil {
		t.Fatal(err)
	}
	if index != 0 {
		t.Errorf("buffer got!=expected: %d != %d", index, 0)
	}
	if !n.IsTxRequestPending(0) {
		t.Error("buffer 0 not pending")
	}
	if got := bus.Peek(nodeReg(Node0, regTXBRP)); got != 1 {
		t.Errorf("txbrp got!=expected: %#x != %#x", got, 1)
	}
	tx := regionOf(t, n, TxBuffers)
	el := testBase + tx.Element(0)
	if got, want := bus.Peek(el), uint32(0x0CFE6E00|elemXTD); got != want {
		t.Errorf("t0 got!=expected: %#x != %#x", got, want)
	}
	if got, want := bus.Peek(el+4), uint32(8<<elemDLCPos); got != want {
		t.Errorf("t1 got!=expected: %#x != %#x", got, want)
	}
	if bus.Peek(el+8) != 0x04030201 || bus.Peek(el+12) != 0x08070605 {
		t.Errorf("data %#x %#x", bus.Peek(el+8), bus.Peek(el+12))
	}
	if n.IsBusOff() || n.IsErrorPassive() || n.IsErrorWarning() || n.LastErrorCode() != 0 {
		t.Errorf("error state after transmit: psr %#x", bus.Peek(nodeReg(Node0, regPSR)))
	}
	if tec, rec := n.ErrorCounters(); tec != 0 || rec != 0 {
		t.Errorf("error counters %d/%d", tec, rec)
	}

	if index, err = n.Transmit(f); err != nil || index != 1 {
		t.Errorf("second transmit got buffer %d, %v", index, err)
	}
	if _, err = n.Transmit(f); !errors.Is(err, ErrTxBusy) {
		t.Errorf("third transmit: got %v, want %v", err, ErrTxBusy)
	}

	bus.CompleteTransmissions(testBase, Node0)
	if !n.IsTxTransmissionOccurred(0) || !n.IsTxTransmissionOccurred(1) {
		t.Error("transmissions not reported")
	}
	if n.IsTxRequestPending(0) {
		t.Error("buffer 0 still pending")
	}
	if index, err = n.Transmit(f); err != nil || index != 0 {
		t.Errorf("transmit after completion got buffer %d, %v", index, err)
	}
	// Message markers count submissions.
	if got := (bus.Peek(el+4) >> elemMMPos) & elemMMMsk; got != 2 {
		t.Errorf("marker got!=expected: %d != %d", got, 2)
	}
	if n.IsTxTransmissionOccurred(0) {
		t.Error("new request kept the old transmission flag")
	}
}

func TestTransmitBuffer(t *testing.T) {
	m, _ := newTestModule(t)
	n := configureNode(t, m, Node0, DefaultNodeConfig())
	f := testFrame(t)

	if err := n.TransmitBuffer(1, f); err != nil {
		t.Fatal(err)
	}
	if n.IsTxRequestPending(0) || !n.IsTxRequestPending(1) {
		t.Error("wrong buffer requested")
	}
	if err := n.TransmitBuffer(1, f); !errors.Is(err, ErrTxBusy) {
		t.Errorf("got %v, want %v", err, ErrTxBusy)
	}

	defer func() {
		if r := recover(); r != badTxBufferIndex {
			t.Errorf("recovered %v, want %q", r, badTxBufferIndex)
		}
	}()
	n.TransmitBuffer(2, f)
}

func TestCancelTransmission(t *testing.T) {
	m, _ := newTestModule(t)
	n := configureNode(t, m, Node0, DefaultNodeConfig())
	if _, err := n.Transmit(testFrame(t)); err != nil {
		t.Fatal(err)
	}
	n.CancelTransmission(0)
	if n.IsTxRequestPending(0) {
		t.Error("cancelled buffer still pending")
	}
	if !n.IsTxCancellationFinished(0) {
		t.Error("cancellation not finished")
	}
}

func TestTransmitFIFO(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Tx = TxConfig{Mode: TxFIFO, FIFOQueueSize: 3, FieldSize: Data8}
	n := configureNode(t, m, Node0, cfg)
	f := testFrame(t)

	if got := n.TxFIFOFreeLevel(); got != 3 {
		t.Errorf("free level got!=expected: %d != %d", got, 3)
	}
	for want := uint8(0); want < 3; want++ {
		if put := n.TxFIFOQueuePutIndex(); put != want {
			t.Errorf("put index got!=expected: %d != %d", put, want)
		}
		index, err := n.Transmit(f)
		if err != nil {
			t.Fatal(err)
		}
		if index != want {
			t.Errorf("buffer got!=expected: %d != %d", index, want)
		}
	}
	if !n.IsTxFIFOQueueFull() {
		t.Error("fifo not full")
	}
	if _, err := n.Transmit(f); !errors.Is(err, ErrTxQueueFull) {
		t.Errorf("got %v, want %v", err, ErrTxQueueFull)
	}

	bus.CompleteTransmissions(testBase, Node0)
	if n.IsTxFIFOQueueFull() || n.TxFIFOFreeLevel() != 3 {
		t.Errorf("fifo after completion: txfqs %#x", bus.Peek(nodeReg(Node0, regTXFQS)))
	}
}

func TestTransmitSharedFIFO(t *testing.T) {
	m, _ := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Tx = TxConfig{Mode: TxSharedFIFO, DedicatedBuffers: 2, FIFOQueueSize: 2, FieldSize: Data8}
	n := configureNode(t, m, Node0, cfg)
	f := testFrame(t)

	index, err := n.Transmit(f)
	if err != nil {
		t.Fatal(err)
	}
	if index != 2 {
		t.Errorf("fifo submission got buffer %d, want 2", index)
	}
	if err := n.TransmitBuffer(0, f); err != nil {
		t.Errorf("dedicated buffer: %v", err)
	}
	if !n.IsTxRequestPending(0) || !n.IsTxRequestPending(2) || n.IsTxRequestPending(1) {
		t.Error("wrong buffers pending")
	}
}

func TestTransmitRejects(t *testing.T) {
	id, _ := StandardID(0x10)
	fd, err := NewFrame(id, make([]byte, 12))
	if err != nil {
		t.Fatal(err)
	}

	m, _ := newTestModule(t)
	classic := configureNode(t, m, Node0, DefaultNodeConfig())
	if _, err := classic.Transmit(fd); !errors.Is(err, ErrFrameMode) {
		t.Errorf("fd frame on classic node: got %v, want %v", err, ErrFrameMode)
	}

	cfg := DefaultNodeConfig()
	cfg.FrameMode = FDLong
	small := configureNode(t, m, Node1, cfg)
	if _, err := small.Transmit(fd); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("12 bytes into 8 byte buffers: got %v, want %v", err, ErrFrameTooLarge)
	}

	cfg = DefaultNodeConfig()
	cfg.FrameType = ReceiveOnly
	rx := configureNode(t, m, Node2, cfg)
	if _, err := rx.Transmit(testFrame(t)); !errors.Is(err, ErrNoTxBuffers) {
		t.Errorf("receive only node: got %v, want %v", err, ErrNoTxBuffers)
	}
	for _, r := range rx.RAM() {
		if r.Kind == TxBuffers {
			t.Errorf("receive only node reserved %v", r)
		}
	}
}

func pokeRxElement(bus *MemBus, addr, w0, w1 uint32, data ...uint32) {
	bus.Poke(addr, w0)
	bus.Poke(addr+4, w1)
	for i, d := range data {
		bus.Poke(addr+8+uint32(i)*4, d)
	}
}

func TestReceiveFIFO(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Rx.FIFO0.Start = At(0x100)
	n := configureNode(t, m, Node0, cfg)

	if _, ok := n.ReceiveFIFO(FIFO0); ok {
		t.Fatal("frame from an empty fifo")
	}

	// Two frames waiting, the older one in the last element.
	pokeRxElement(bus, testBase+0x130, 0x123<<elemStdIDPos, 4<<elemDLCPos|0x42, 0xDDCCBBAA)
	pokeRxElement(bus, testBase+0x100, 0x0CFE6E00|elemXTD, 2<<elemDLCPos, 0x0000BEEF)
	status := nodeReg(Node0, regRXF0S)
	bus.Poke(status, 2|3<<rxfsGIPos)
	if got := n.RxFIFOFillLevel(FIFO0); got != 2 {
		t.Errorf("fill level got!=expected: %d != %d", got, 2)
	}

	f, ok := n.ReceiveFIFO(FIFO0)
	if !ok {
		t.Fatal("no frame")
	}
	if f.ID().IsExtended() || f.ID().Value() != 0x123 {
		t.Errorf("first frame id %v", f.ID())
	}
	if !bytes.Equal(f.Data(), []byte{0xAA, 0xBB, 0xCC, 0xDD}) || f.Timestamp() != 0x42 {
		t.Errorf("first frame %v ts %#x", f, f.Timestamp())
	}
	if got := bus.Peek(nodeReg(Node0, regRXF0A)); got != 3 {
		t.Errorf("acknowledge got!=expected: %d != %d", got, 3)
	}
	if got, want := bus.Peek(status), uint32(1); got != want {
		t.Errorf("rxf0s got!=expected: %#x != %#x", got, want)
	}

	f, ok = n.ReceiveFIFO(FIFO0)
	if !ok {
		t.Fatal("no second frame")
	}
	if !f.ID().IsExtended() || f.ID().Value() != 0x0CFE6E00 {
		t.Errorf("second frame id %v", f.ID())
	}
	if !bytes.Equal(f.Data(), []byte{0xEF, 0xBE}) {
		t.Errorf("second frame payload % X", f.Data())
	}
	if n.RxFIFOFillLevel(FIFO0) != 0 {
		t.Errorf("fill level %d after draining", n.RxFIFOFillLevel(FIFO0))
	}
	if _, ok := n.ReceiveFIFO(FIFO0); ok {
		t.Error("frame from a drained fifo")
	}
}

func TestReceiveFIFOStatus(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Rx.Mode = RxSharedAll
	cfg.Rx.Buffers = 1
	cfg.Rx.FIFO1 = RxFIFOConfig{Size: 2, FieldSize: Data8, Mode: RxFIFOOverwrite}
	n := configureNode(t, m, Node1, cfg)

	if got := bus.Peek(nodeReg(Node1, regRXF1C)); got&rxfcOM == 0 || (got>>rxfcSPos)&rxfcSMsk != 2 {
		t.Errorf("rxf1c %#x", got)
	}
	bus.Poke(nodeReg(Node1, regRXF1S), 2|rxfsF|rxfsRFL)
	if !n.IsRxFIFOFull(FIFO1) || !n.IsRxFIFOMessageLost(FIFO1) {
		t.Error("fifo 1 status flags not reported")
	}
	if n.IsRxFIFOFull(FIFO0) {
		t.Error("fifo 0 reported full")
	}
}

func TestReceiveBuffer(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Rx.Mode = RxSharedFIFO0
	cfg.Rx.Buffers = 2
	cfg.Rx.BufferFieldSize = Data8
	n := configureNode(t, m, Node0, cfg)

	buffers := regionOf(t, n, RxBuffers)
	if got := bus.Peek(nodeReg(Node0, regRXBC)); got != buffers.Start {
		t.Errorf("rxbc got!=expected: %#x != %#x", got, buffers.Start)
	}
	pokeRxElement(bus, testBase+buffers.Element(1), 0x7FF<<elemStdIDPos, 1<<elemDLCPos, 0x5A)
	ndat := nodeReg(Node0, regNDAT1)
	bus.Poke(ndat, 1<<1)

	if _, ok := n.ReceiveBuffer(0); ok {
		t.Error("frame from buffer 0 without new data")
	}
	if !n.IsRxBufferNewData(1) {
		t.Fatal("buffer 1 has no new data")
	}
	f, ok := n.ReceiveBuffer(1)
	if !ok {
		t.Fatal("no frame in buffer 1")
	}
	if f.ID().Value() != 0x7FF || !bytes.Equal(f.Data(), []byte{0x5A}) {
		t.Errorf("buffer 1 frame %v", f)
	}
	if bus.Peek(ndat) != 0 {
		t.Errorf("new data flag not cleared: %#x", bus.Peek(ndat))
	}

	defer func() {
		if r := recover(); r != badRxBufferIndex {
			t.Errorf("recovered %v, want %q", r, badRxBufferIndex)
		}
	}()
	n.IsRxBufferNewData(2)
}

func TestReadTxEvent(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Tx.EventFIFOSize = 2
	n := configureNode(t, m, Node0, cfg)

	if _, err := n.Transmit(testFrame(t)); err != nil {
		t.Fatal(err)
	}
	tx := regionOf(t, n, TxBuffers)
	if bus.Peek(testBase+tx.Element(0)+4)&elemEFC == 0 {
		t.Error("event not requested for transmitted frame")
	}

	if _, ok := n.ReadTxEvent(); ok {
		t.Fatal("event from an empty event fifo")
	}
	events := regionOf(t, n, TxEventFIFO)
	bus.Poke(testBase+events.Element(0), 0x0CFE6E00|elemXTD)
	bus.Poke(testBase+events.Element(0)+4, 8<<elemDLCPos|uint32(TxEvent)<<elemETPos|5<<elemMMPos|0x1234)
	bus.Poke(nodeReg(Node0, regTXEFS), 1)

	ev, ok := n.ReadTxEvent()
	if !ok {
		t.Fatal("no event")
	}
	want := TxEventElement{ID: MessageID{id: 0x0CFE6E00, extended: true}, DLC: 8, Timestamp: 0x1234, Marker: 5, Type: TxEvent}
	if ev != want {
		t.Errorf("event got!=expected: %+v != %+v", ev, want)
	}
	if got, want := bus.Peek(nodeReg(Node0, regTXEFS)), uint32(1<<txefsEFGIPos); got != want {
		t.Errorf("txefs got!=expected: %#x != %#x", got, want)
	}
}

func TestNodeInterruptFlags(t *testing.T) {
	m, bus := newTestModule(t)
	n := configureNode(t, m, Node0, DefaultNodeConfig())
	ir := nodeReg(Node0, regIR)
	bus.Poke(ir, 1<<uint(RxFIFO0NewMessage)|1<<uint(TransmissionCompleted))

	if !n.IsInterruptPending(RxFIFO0NewMessage) || n.IsInterruptPending(RxFIFO0Full) {
		t.Errorf("pending flags %#x", bus.Peek(ir))
	}
	n.ClearInterrupt(RxFIFO0NewMessage)
	if n.IsInterruptPending(RxFIFO0NewMessage) || !n.IsInterruptPending(TransmissionCompleted) {
		t.Errorf("clear left ir at %#x", bus.Peek(ir))
	}

	n.EnableInterrupt(TxFIFOEmpty, true)
	if got := bus.Peek(nodeReg(Node0, regIE)); got != 1<<11 {
		t.Errorf("ie got!=expected: %#x != %#x", got, 1<<11)
	}
	n.EnableInterrupt(TxFIFOEmpty, false)
	if got := bus.Peek(nodeReg(Node0, regIE)); got != 0 {
		t.Errorf("ie got!=expected: %#x != %#x", got, 0)
	}
}

func TestNodeErrorState(t *testing.T) {
	m, bus := newTestModule(t)
	n := configureNode(t, m, Node0, DefaultNodeConfig())
	bus.Poke(nodeReg(Node0, regPSR), psrBO|psrEP|psrEW|3)
	bus.Poke(nodeReg(Node0, regECR), 0x20<<ecrRECPos|0x80)

	if !n.IsBusOff() || !n.IsErrorPassive() || !n.IsErrorWarning() {
		t.Error("psr flags not reported")
	}
	if got := n.LastErrorCode(); got != 3 {
		t.Errorf("last error code got!=expected: %d != %d", got, 3)
	}
	if tec, rec := n.ErrorCounters(); tec != 0x80 || rec != 0x20 {
		t.Errorf("error counters %d/%d", tec, rec)
	}
}

func TestLoopbackModel(t *testing.T) {
	m, bus := newTestModule(t)
	bus.ModelLoopback(testBase, Node1)
	cfg := DefaultNodeConfig()
	cfg.Loopback = true
	cfg.Rx.FIFO0.Size = 2
	n := configureNode(t, m, Node1, cfg)
	f := testFrame(t)

	for i := 0; i < 3; i++ {
		index, err := n.Transmit(f)
		if err != nil {
			t.Fatal(err)
		}
		if !n.IsTxTransmissionOccurred(index) {
			t.Errorf("transmission %d not completed", i)
		}
	}
	if !n.IsRxFIFOFull(FIFO0) || !n.IsRxFIFOMessageLost(FIFO0) {
		t.Error("third frame did not overflow the fifo")
	}
	if !n.IsInterruptPending(TransmissionCompleted) || !n.IsInterruptPending(RxFIFO0NewMessage) {
		t.Errorf("ir %#x", bus.Peek(nodeReg(Node1, regIR)))
	}

	for i := 0; i < 2; i++ {
		got, ok := n.ReceiveFIFO(FIFO0)
		if !ok {
			t.Fatalf("frame %d missing", i)
		}
		if got.ID() != f.ID() || !bytes.Equal(got.Data(), f.Data()) {
			t.Errorf("frame %d got!=expected: %v != %v", i, got, f)
		}
		if _, matched := got.FilterIndex(); matched {
			t.Errorf("frame %d reported a filter match", i)
		}
	}
	if _, ok := n.ReceiveFIFO(FIFO0); ok {
		t.Error("more frames than were stored")
	}
}

func TestReceiveFIFOGetIndexOutOfRange(t *testing.T) {
	m, bus := newTestModule(t)
	cfg := DefaultNodeConfig()
	cfg.Rx.FIFO0.Start = At(0x100)
	n := configureNode(t, m, Node0, cfg)

	// FIFO 0 has four elements; get index 4 would read past it.
	status := nodeReg(Node0, regRXF0S)
	bus.Poke(status, 1|4<<rxfsGIPos)
	bus.ResetStores()
	if f, ok := n.ReceiveFIFO(FIFO0); ok {
		t.Errorf("frame %v read outside the fifo", f)
	}
	if len(bus.Stores()) != 0 {
		t.Errorf("out of range get index acknowledged: %v", bus.Stores())
	}
}
