package mcan

import "sort"

// MemBus is a Bus backed by a sparse word map. Unwritten addresses read as
// zero. Store hooks let a MemBus mimic hardware side effects such as
// acknowledgement bits and write-1-to-clear registers.
//
// MemBus records every store in order; see Stores.
type MemBus struct {
	words  map[uint32]uint32
	hooks  map[uint32]StoreHook
	stores []Access
}

// StoreHook computes the value retained at an address after a store of
// value over old. Hooks may change other addresses through Poke.
type StoreHook func(b *MemBus, old, value uint32) uint32

// Access is a single recorded store.
type Access struct {
	Addr  uint32
	Value uint32
}

// NewMemBus returns an empty MemBus.
func NewMemBus() *MemBus {
	return &MemBus{
		words: make(map[uint32]uint32),
		hooks: make(map[uint32]StoreHook),
	}
}

// Load implements Bus.
func (b *MemBus) Load(addr uint32) uint32 { return b.words[addr] }

// Store implements Bus and runs the hook registered for addr.
func (b *MemBus) Store(addr, value uint32) {
	b.stores = append(b.stores, Access{Addr: addr, Value: value})
	if hook, ok := b.hooks[addr]; ok {
		value = hook(b, b.words[addr], value)
	}
	b.words[addr] = value
}

// Peek reads addr without side effects.
func (b *MemBus) Peek(addr uint32) uint32 { return b.words[addr] }

// Poke writes addr without running hooks or recording the store.
func (b *MemBus) Poke(addr, value uint32) { b.words[addr] = value }

// OnStore registers hook for addr, replacing any previous hook.
func (b *MemBus) OnStore(addr uint32, hook StoreHook) { b.hooks[addr] = hook }

// Stores returns the recorded stores in program order.
func (b *MemBus) Stores() []Access { return b.stores }

// ResetStores forgets the recorded stores.
func (b *MemBus) ResetStores() { b.stores = b.stores[:0] }

// Words returns every non-zero word sorted by address.
func (b *MemBus) Words() []Access {
	words := make([]Access, 0, len(b.words))
	for addr, v := range b.words {
		if v != 0 {
			words = append(words, Access{Addr: addr, Value: v})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Addr < words[j].Addr })
	return words
}

// ModelMCAN installs hooks which give the MCAN module at base the register
// behaviour a driver relies on: the clock gate acknowledges DISR through
// DISS, add requests become pending, cancellations complete at once,
// interrupt and new data flags clear on writing 1, and FIFO acknowledge
// indices advance the get index.
func (b *MemBus) ModelMCAN(base uint32) {
	b.OnStore(base+clcOffset, func(_ *MemBus, _, v uint32) uint32 {
		v &^= clcDISS
		if v&clcDISR != 0 {
			v |= clcDISS
		}
		return v
	})
	for n := uint32(0); n < NumNodes; n++ {
		node := base + nodeOffset + n*nodeStride
		w1c := func(_ *MemBus, old, v uint32) uint32 { return old &^ v }
		b.OnStore(node+regIR, w1c)
		b.OnStore(node+regNDAT1, w1c)
		b.OnStore(node+regNDAT2, w1c)
		b.OnStore(node+regTXBC, func(b *MemBus, _, v uint32) uint32 {
			b.words[node+regTXBC] = v
			b.advanceTxQueue(node)
			return v
		})
		b.OnStore(node+regTXBAR, func(b *MemBus, _, v uint32) uint32 {
			b.words[node+regTXBRP] |= v
			b.words[node+regTXBTO] &^= v
			b.words[node+regTXBCF] &^= v
			b.advanceTxQueue(node)
			return 0
		})
		b.OnStore(node+regTXBCR, func(b *MemBus, _, v uint32) uint32 {
			pending := b.words[node+regTXBRP] & v
			b.words[node+regTXBRP] &^= pending
			b.words[node+regTXBCF] |= pending
			b.advanceTxQueue(node)
			return v
		})
		b.OnStore(node+regRXF0A, func(b *MemBus, _, v uint32) uint32 {
			b.popFIFO(node+regRXF0S, node+regRXF0C, rxfcSMsk, rxfsGIMsk, v)
			return v
		})
		b.OnStore(node+regRXF1A, func(b *MemBus, _, v uint32) uint32 {
			b.popFIFO(node+regRXF1S, node+regRXF1C, rxfcSMsk, rxfsGIMsk, v)
			return v
		})
		b.OnStore(node+regTXEFA, func(b *MemBus, _, v uint32) uint32 {
			b.popFIFO(node+regTXEFS, node+regTXEFC, txefcEFSMsk, txefsEFGIMsk, v)
			return v
		})
	}
}

// CompleteTransmissions marks every pending request of node id of the
// module at base as transmitted.
func (b *MemBus) CompleteTransmissions(base uint32, id NodeID) {
	node := base + nodeOffset + uint32(id.index())*nodeStride
	b.words[node+regTXBTO] |= b.words[node+regTXBRP]
	b.words[node+regTXBRP] = 0
	b.advanceTxQueue(node)
}

// ModelLoopback makes node id of the module at base complete every
// transmission request at once and store a copy of the frame in its RX
// FIFO 0, the way the internal loopback mode behaves on a silent bus.
// Acceptance filters are not applied. Call after ModelMCAN.
func (b *MemBus) ModelLoopback(base uint32, id NodeID) {
	node := base + nodeOffset + uint32(id.index())*nodeStride
	b.OnStore(node+regTXBAR, func(b *MemBus, _, v uint32) uint32 {
		for i := uint32(0); i < maxTxBuffers; i++ {
			if v&(1<<i) != 0 {
				b.loopback(base, node, i)
			}
		}
		b.words[node+regTXBTO] |= v
		b.words[node+regTXBCF] &^= v
		b.words[node+regIR] |= TransmissionCompleted.mask()
		b.advanceTxQueue(node)
		return 0
	})
}

// loopback copies TX buffer index into the next free RX FIFO 0 element.
func (b *MemBus) loopback(base, node, index uint32) {
	rxfc := b.words[node+regRXF0C]
	size := (rxfc >> rxfcSPos) & rxfcSMsk
	if size == 0 {
		return
	}
	status := b.words[node+regRXF0S]
	fill := status & rxfsFLMsk
	if fill >= size {
		b.words[node+regRXF0S] = status | rxfsRFL
		b.words[node+regIR] |= RxFIFO0MessageLost.mask()
		return
	}
	txSize := DataFieldSize((b.words[node+regTXESC] >> txescTBDSPos) & dsMsk).ElementSize()
	rxSize := DataFieldSize((b.words[node+regRXESC] >> rxescF0DSPos) & dsMsk).ElementSize()
	src := base + b.words[node+regTXBC]&startAddrMsk + index*txSize
	put := (status >> rxfsPIPos) & rxfsPIMsk
	dst := base + rxfc&startAddrMsk + put*rxSize

	b.words[dst] = b.words[src] & (elemIDMsk | elemRTR | elemXTD)
	b.words[dst+4] = b.words[src+4]&(elemDLCMsk<<elemDLCPos|elemBRS|elemFDF) | elemANMF
	n := txSize
	if rxSize < n {
		n = rxSize
	}
	for off := uint32(8); off < n; off += 4 {
		b.words[dst+off] = b.words[src+off]
	}

	fill++
	put = (put + 1) % size
	status &^= rxfsFLMsk | rxfsPIMsk<<rxfsPIPos
	status |= fill | put<<rxfsPIPos
	if fill == size {
		status |= rxfsF
		b.words[node+regIR] |= RxFIFO0Full.mask()
	}
	b.words[node+regRXF0S] = status
	b.words[node+regIR] |= RxFIFO0NewMessage.mask()
}

// popFIFO releases all elements up to and including the acknowledged
// index. Status and configuration registers of RX FIFOs and the TX event
// FIFO share the fill level and get index layout.
func (b *MemBus) popFIFO(status, config, sizeMsk, getMsk, ack uint32) {
	size := (b.words[config] >> rxfcSPos) & sizeMsk
	if size == 0 {
		return
	}
	s := b.words[status]
	fill := s & rxfsFLMsk
	get := (s >> rxfsGIPos) & getMsk
	released := (ack + size - get) % size
	if released+1 <= fill {
		fill -= released + 1
	} else {
		fill = 0
	}
	get = (ack + 1) % size
	s &^= rxfsFLMsk | getMsk<<rxfsGIPos | rxfsF
	b.words[status] = s | fill | get<<rxfsGIPos
}

// advanceTxQueue recomputes TXFQS from the pending requests in the
// FIFO/queue section of the TX buffers.
func (b *MemBus) advanceTxQueue(node uint32) {
	txbc := b.words[node+regTXBC]
	ndtb := (txbc >> txbcNDTBPos) & txbcNDTBMsk
	tfqs := (txbc >> txbcTFQSPos) & txbcTFQSMsk
	if tfqs == 0 {
		return
	}
	pending := b.words[node+regTXBRP]
	var free uint32
	put := uint32(0xff)
	for i := uint32(0); i < tfqs; i++ {
		if pending&(1<<(ndtb+i)) == 0 {
			free++
			if put == 0xff {
				put = ndtb + i
			}
		}
	}
	var s uint32
	if free == 0 {
		s |= txfqsTFQF
		put = ndtb
	}
	s |= free | put<<txfqsTFQPIPos
	b.words[node+regTXFQS] = s
}
