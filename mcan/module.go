package mcan

// NumNodes is the number of nodes in an MCAN module.
const NumNodes = 4

// NodeID identifies a node slot of a module.
type NodeID uint8

const (
	Node0 NodeID = iota
	Node1
	Node2
	Node3
)

func (id NodeID) index() uint8 {
	if id >= NumNodes {
		panic(badNodeIndex)
	}
	return uint8(id)
}

// ClockSource selects the kernel clock of a node. The zero value selects
// both the asynchronous and the synchronous clock.
type ClockSource uint8

const (
	ClockBoth ClockSource = iota
	ClockAsynchronous
	ClockSynchronous
)

// clksel returns the MCR.CLKSELx encoding.
func (c ClockSource) clksel() uint32 {
	switch c {
	case ClockAsynchronous:
		return 1
	case ClockSynchronous:
		return 2
	}
	return 3
}

func (c ClockSource) String() string {
	switch c {
	case ClockAsynchronous:
		return "asynchronous"
	case ClockSynchronous:
		return "synchronous"
	}
	return "both"
}

// clockSettleReads is the number of MCR reads spent waiting for a clock
// selection to take effect.
const clockSettleReads = 10

// ModuleConfig describes an MCAN module instance.
type ModuleConfig struct {
	// Base is the module base address, which is also the start of the
	// message RAM.
	Base uint32
	// RAMSize is the message RAM window. Zero selects DefaultRAMSize.
	RAMSize uint32
	// Protection guards the clock gate and clock selection registers.
	// Nil means the registers are not protected.
	Protection Protection
	// Clock reports the MCAN kernel clock for calculated bit timings.
	Clock FrequencySource
	// Logger receives diagnostics. Optional.
	Logger Logger
}

// Module is one MCAN module and the owner of its four nodes and its
// message RAM.
type Module struct {
	bus   Bus
	base  uint32
	prot  Protection
	clock FrequencySource
	log   Logger
	// ram holds the regions of all configured nodes.
	ram *Layout
	// Bitmask of claimed nodes.
	claimedMask uint8
	enabled     bool
	nc          noCopy
}

// NewModule returns a handle to the module described by cfg. The module is
// not enabled.
func NewModule(bus Bus, cfg ModuleConfig) *Module {
	if cfg.RAMSize == 0 {
		cfg.RAMSize = DefaultRAMSize
	}
	if cfg.Protection == nil {
		cfg.Protection = NoProtection{}
	}
	return &Module{
		bus:   bus,
		base:  cfg.Base,
		prot:  cfg.Protection,
		clock: cfg.Clock,
		log:   cfg.Logger,
		ram:   NewLayout(cfg.RAMSize),
	}
}

func (m *Module) reg(offset uint32) Register { return NewRegister(m.bus, m.base+offset) }

func (m *Module) logf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}

// Base returns the module base address.
func (m *Module) Base() uint32 { return m.base }

// Enable ungates the module clock and waits until the module reports it
// is running. The wait has no timeout. Enable is called once.
func (m *Module) Enable() {
	clc := m.reg(clcOffset)
	m.prot.Unprotected(func() {
		clc.ClearBits(clcDISR)
		for clc.HasBits(clcDISS) {
		}
	})
	m.enabled = true
	m.logf("mcan %#x: enabled", m.base)
}

// IsEnabled reports whether the module clock runs.
func (m *Module) IsEnabled() bool {
	return !m.reg(clcOffset).HasBits(clcDISS)
}

// Claim takes ownership of node id and returns its configuration handle.
// A node is claimed at most once in the lifetime of a Module; there is no
// release.
func (m *Module) Claim(id NodeID) (*ConfigurableNode, error) {
	idx := id.index()
	if !m.enabled {
		panic(badModuleDisabled)
	}
	if m.IsClaimed(id) {
		return nil, ErrAlreadyClaimed
	}
	m.claimedMask |= 1 << idx
	return &ConfigurableNode{
		module: m,
		id:     id,
		base:   m.base + nodeOffset + uint32(idx)*nodeStride,
		state:  NodeClaimed,
	}, nil
}

// ClaimNext claims the lowest unclaimed node.
func (m *Module) ClaimNext() (*ConfigurableNode, error) {
	for id := Node0; id < NumNodes; id++ {
		if !m.IsClaimed(id) {
			return m.Claim(id)
		}
	}
	return nil, ErrNoFreeNode
}

// IsClaimed reports whether node id has been claimed.
func (m *Module) IsClaimed(id NodeID) bool {
	return m.claimedMask&(1<<id.index()) != 0
}

// ClockFrequency returns the MCAN kernel clock in Hz, or 0 if the module
// has no FrequencySource.
func (m *Module) ClockFrequency() uint32 {
	if m.clock == nil {
		return 0
	}
	return m.clock.MCANFrequency()
}

// RAM returns the message RAM regions of all configured nodes.
func (m *Module) RAM() []Region { return m.ram.Regions() }

// RAMSize returns the size of the message RAM window.
func (m *Module) RAMSize() uint32 { return m.ram.Window() }

// setClockSource selects the kernel clock of node id. The selection is
// read back after a settling delay; a mismatch is reported and not
// retried. The clock change handshake is closed on both paths.
func (m *Module) setClockSource(id NodeID, src ClockSource) (err error) {
	mcr := m.reg(mcrOffset)
	pos := id.index() * 2
	want := src.clksel()
	m.prot.Unprotected(func() {
		mcr.SetBits(mcrCCCE | mcrCI)
		mcr.ReplaceBits(want, mcrCLKSELMsk, pos)
		for i := 0; i < clockSettleReads; i++ {
			mcr.Get()
		}
		if got := mcr.Field(mcrCLKSELMsk, pos); got != want {
			m.logf("mcan %#x: node %d clock select %d, read back %d", m.base, id, want, got)
			err = ErrClockSwitchFailed
		}
		mcr.ClearBits(mcrCCCE | mcrCI)
	})
	return err
}

// ramAddr returns the absolute address of a message RAM offset.
func (m *Module) ramAddr(offset uint32) uint32 { return m.base + offset }

func (m *Module) readRAM(offset uint32, words []uint32) {
	for i := range words {
		words[i] = m.bus.Load(m.ramAddr(offset + uint32(i)*4))
	}
}

func (m *Module) writeRAM(offset uint32, words []uint32) {
	for i, w := range words {
		m.bus.Store(m.ramAddr(offset+uint32(i)*4), w)
	}
}
