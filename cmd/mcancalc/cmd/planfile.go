package cmd

import (
	"fmt"
	"io"

	"github.com/tinygo-org/mcan/mcan"
	"gopkg.in/yaml.v3"
)

// planFile is the YAML description of one module and its nodes. Sections
// left out of a node keep the values of mcan.DefaultNodeConfig.
type planFile struct {
	// Module is can0 or can1. Base overrides it.
	Module  string     `yaml:"module"`
	Base    uint32     `yaml:"base"`
	Clock   rate       `yaml:"clock"`
	RAMSize uint32     `yaml:"ram_size"`
	Nodes   []nodePlan `yaml:"nodes"`
}

type timingPlan struct {
	Baud        rate    `yaml:"baud"`
	SamplePoint float64 `yaml:"sample_point"`
	SJW         uint16  `yaml:"sjw"`
}

type nodePlan struct {
	ID          uint8           `yaml:"id"`
	ClockSource string          `yaml:"clock_source"`
	FrameMode   string          `yaml:"frame_mode"`
	FrameType   string          `yaml:"frame_type"`
	Nominal     *timingPlan     `yaml:"nominal"`
	Data        *timingPlan     `yaml:"data"`
	TDCOffset   uint8           `yaml:"tdc_offset"`
	RxSelect    uint8           `yaml:"rx_select"`
	Loopback    bool            `yaml:"loopback"`
	TxPause     bool            `yaml:"tx_pause"`
	Tx          *txPlan         `yaml:"tx"`
	Rx          *rxPlan         `yaml:"rx"`
	Filters     *filterPlan     `yaml:"filters"`
	Interrupts  []interruptPlan `yaml:"interrupts"`
}

type txPlan struct {
	Mode                 string  `yaml:"mode"`
	Buffers              uint8   `yaml:"buffers"`
	FIFOSize             uint8   `yaml:"fifo_size"`
	FieldSize            int     `yaml:"field_size"`
	Start                *uint32 `yaml:"start"`
	Events               uint8   `yaml:"events"`
	EventWatermark       uint8   `yaml:"event_watermark"`
	EventStart           *uint32 `yaml:"event_start"`
	CompletionInterrupts bool    `yaml:"completion_interrupts"`
}

type fifoPlan struct {
	Size      uint8   `yaml:"size"`
	Watermark uint8   `yaml:"watermark"`
	Overwrite bool    `yaml:"overwrite"`
	FieldSize int     `yaml:"field_size"`
	Start     *uint32 `yaml:"start"`
}

type rxPlan struct {
	Mode            string    `yaml:"mode"`
	Buffers         uint8     `yaml:"buffers"`
	BufferFieldSize int       `yaml:"buffer_field_size"`
	BufferStart     *uint32   `yaml:"buffer_start"`
	FIFO0           *fifoPlan `yaml:"fifo0"`
	FIFO1           *fifoPlan `yaml:"fifo1"`
}

type filterPlan struct {
	NonMatchingStandard  string          `yaml:"non_matching_standard"`
	NonMatchingExtended  string          `yaml:"non_matching_extended"`
	RejectRemoteStandard bool            `yaml:"reject_remote_standard"`
	RejectRemoteExtended bool            `yaml:"reject_remote_extended"`
	ExtendedIDMask       uint32          `yaml:"extended_id_mask"`
	Standard             []filterElement `yaml:"standard"`
	Extended             []filterElement `yaml:"extended"`
	StandardStart        *uint32         `yaml:"standard_start"`
	ExtendedStart        *uint32         `yaml:"extended_start"`
}

type filterElement struct {
	Type   string `yaml:"type"`
	Action string `yaml:"action"`
	ID1    uint32 `yaml:"id1"`
	ID2    uint32 `yaml:"id2"`
}

// interruptPlan routes interrupt source bit Source of IR through group
// Group to line Line.
type interruptPlan struct {
	Source uint8 `yaml:"source"`
	Group  uint8 `yaml:"group"`
	Line   uint8 `yaml:"line"`
}

var (
	clockSources = map[string]mcan.ClockSource{
		"both":  mcan.ClockBoth,
		"async": mcan.ClockAsynchronous,
		"sync":  mcan.ClockSynchronous,
	}
	frameModes = map[string]mcan.FrameMode{
		"classic": mcan.Classic,
		"fd":      mcan.FDLong,
		"fd+brs":  mcan.FDLongAndFast,
	}
	frameTypes = map[string]mcan.FrameType{
		"rx":             mcan.ReceiveOnly,
		"tx":             mcan.TransmitOnly,
		"txrx":           mcan.TransmitAndReceive,
		"remote-request": mcan.RemoteRequest,
		"remote-answer":  mcan.RemoteAnswer,
	}
	txModes = map[string]mcan.TxMode{
		"dedicated":    mcan.TxDedicatedBuffers,
		"fifo":         mcan.TxFIFO,
		"queue":        mcan.TxQueue,
		"shared-fifo":  mcan.TxSharedFIFO,
		"shared-queue": mcan.TxSharedQueue,
	}
	rxModes = map[string]mcan.RxMode{
		"buffers":      mcan.RxDedicatedBuffers,
		"fifo0":        mcan.RxFIFO0Only,
		"fifo1":        mcan.RxFIFO1Only,
		"shared-fifo0": mcan.RxSharedFIFO0,
		"shared-fifo1": mcan.RxSharedFIFO1,
		"shared-all":   mcan.RxSharedAll,
	}
	nonMatchingActions = map[string]mcan.NonMatchingAction{
		"fifo0":  mcan.AcceptInFIFO0,
		"fifo1":  mcan.AcceptInFIFO1,
		"reject": mcan.RejectNonMatching,
	}
	filterTypes = map[string]mcan.FilterType{
		"range":    mcan.FilterRange,
		"dual":     mcan.FilterDual,
		"classic":  mcan.FilterClassic,
		"disabled": mcan.FilterDisabled,
	}
	filterActions = map[string]mcan.FilterAction{
		"off":            mcan.FilterOff,
		"fifo0":          mcan.FilterStoreFIFO0,
		"fifo1":          mcan.FilterStoreFIFO1,
		"reject":         mcan.FilterReject,
		"priority":       mcan.FilterSetPriority,
		"priority-fifo0": mcan.FilterSetPriorityFIFO0,
		"priority-fifo1": mcan.FilterSetPriorityFIFO1,
		"rx-buffer":      mcan.FilterStoreRxBuffer,
	}
)

func lookup[T any](what string, names map[string]T, name string, def T) (T, error) {
	if name == "" {
		return def, nil
	}
	v, ok := names[name]
	if !ok {
		return def, fmt.Errorf("unknown %s %q", what, name)
	}
	return v, nil
}

// fieldSize returns the data field size for n payload bytes, 8 if n is 0.
func fieldSize(n int) (mcan.DataFieldSize, error) {
	if n == 0 {
		return mcan.Data8, nil
	}
	s, ok := mcan.DataFieldSizeFor(n)
	if !ok || s.Bytes() != uint32(n) {
		return 0, fmt.Errorf("invalid data field size %d", n)
	}
	return s, nil
}

func address(p *uint32) (mcan.Address, error) {
	if p == nil {
		return mcan.Address{}, nil
	}
	if err := checkOffset(*p); err != nil {
		return mcan.Address{}, err
	}
	return mcan.At(*p), nil
}

func parsePlan(r io.Reader) (*planFile, error) {
	var p planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("plan: no nodes")
	}
	return &p, nil
}

// base returns the module base address.
func (p *planFile) base() (uint32, error) {
	if p.Base != 0 {
		return p.Base, nil
	}
	switch p.Module {
	case "", "can0":
		return mcan.TC37xCAN0, nil
	case "can1":
		return mcan.TC37xCAN1, nil
	}
	return 0, fmt.Errorf("plan: unknown module %q", p.Module)
}

func (t *timingPlan) apply(c *mcan.BitTimingConfig) {
	if t == nil {
		return
	}
	if t.Baud != 0 {
		c.BaudRate = uint32(t.Baud)
	}
	if t.SamplePoint != 0 {
		c.SamplePoint = permyriad(t.SamplePoint)
	}
	if t.SJW != 0 {
		c.SyncJumpWidth = t.SJW
	}
}

func (f *fifoPlan) config() (mcan.RxFIFOConfig, error) {
	fs, err := fieldSize(f.FieldSize)
	if err != nil {
		return mcan.RxFIFOConfig{}, err
	}
	start, err := address(f.Start)
	if err != nil {
		return mcan.RxFIFOConfig{}, err
	}
	c := mcan.RxFIFOConfig{
		Size:      f.Size,
		Watermark: f.Watermark,
		FieldSize: fs,
		Start:     start,
	}
	if f.Overwrite {
		c.Mode = mcan.RxFIFOOverwrite
	}
	return c, nil
}

func filters(elems []filterElement) ([]mcan.Filter, error) {
	out := make([]mcan.Filter, 0, len(elems))
	for i, e := range elems {
		typ, err := lookup("filter type", filterTypes, e.Type, mcan.FilterRange)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		act, err := lookup("filter action", filterActions, e.Action, mcan.FilterStoreFIFO0)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		out = append(out, mcan.Filter{Type: typ, Action: act, ID1: e.ID1, ID2: e.ID2})
	}
	return out, nil
}

// config returns the node configuration described by n.
func (n *nodePlan) config() (mcan.NodeConfig, error) {
	cfg := mcan.DefaultNodeConfig()
	if n.ID >= mcan.NumNodes {
		return cfg, fmt.Errorf("node id %d, want 0 to %d", n.ID, mcan.NumNodes-1)
	}
	var err error
	if cfg.ClockSource, err = lookup("clock source", clockSources, n.ClockSource, cfg.ClockSource); err != nil {
		return cfg, err
	}
	if cfg.FrameMode, err = lookup("frame mode", frameModes, n.FrameMode, cfg.FrameMode); err != nil {
		return cfg, err
	}
	if cfg.FrameType, err = lookup("frame type", frameTypes, n.FrameType, cfg.FrameType); err != nil {
		return cfg, err
	}
	n.Nominal.apply(&cfg.BitTiming)
	n.Data.apply(&cfg.FastBitTiming)
	cfg.TransceiverDelayOffset = n.TDCOffset
	cfg.RxSelect = n.RxSelect
	cfg.Loopback = n.Loopback
	cfg.TxPause = n.TxPause

	if tx := n.Tx; tx != nil {
		c := mcan.TxConfig{
			DedicatedBuffers:     tx.Buffers,
			FIFOQueueSize:        tx.FIFOSize,
			EventFIFOSize:        tx.Events,
			EventFIFOWatermark:   tx.EventWatermark,
			CompletionInterrupts: tx.CompletionInterrupts,
		}
		if c.BufferStart, err = address(tx.Start); err != nil {
			return cfg, fmt.Errorf("tx buffers: %w", err)
		}
		if c.EventFIFOStart, err = address(tx.EventStart); err != nil {
			return cfg, fmt.Errorf("tx events: %w", err)
		}
		if c.Mode, err = lookup("tx mode", txModes, tx.Mode, mcan.TxDedicatedBuffers); err != nil {
			return cfg, err
		}
		if c.FieldSize, err = fieldSize(tx.FieldSize); err != nil {
			return cfg, fmt.Errorf("tx: %w", err)
		}
		cfg.Tx = c
	}

	if rx := n.Rx; rx != nil {
		c := mcan.RxConfig{Buffers: rx.Buffers}
		if c.BufferStart, err = address(rx.BufferStart); err != nil {
			return cfg, fmt.Errorf("rx buffers: %w", err)
		}
		if c.Mode, err = lookup("rx mode", rxModes, rx.Mode, mcan.RxFIFO0Only); err != nil {
			return cfg, err
		}
		if c.BufferFieldSize, err = fieldSize(rx.BufferFieldSize); err != nil {
			return cfg, fmt.Errorf("rx buffers: %w", err)
		}
		if rx.FIFO0 != nil {
			if c.FIFO0, err = rx.FIFO0.config(); err != nil {
				return cfg, fmt.Errorf("rx fifo0: %w", err)
			}
		}
		if rx.FIFO1 != nil {
			if c.FIFO1, err = rx.FIFO1.config(); err != nil {
				return cfg, fmt.Errorf("rx fifo1: %w", err)
			}
		}
		cfg.Rx = c
	}

	if f := n.Filters; f != nil {
		c := mcan.FilterConfig{
			RejectRemoteStandard: f.RejectRemoteStandard,
			RejectRemoteExtended: f.RejectRemoteExtended,
			ExtendedIDMask:       f.ExtendedIDMask,
		}
		if c.StandardStart, err = address(f.StandardStart); err != nil {
			return cfg, fmt.Errorf("standard filters: %w", err)
		}
		if c.ExtendedStart, err = address(f.ExtendedStart); err != nil {
			return cfg, fmt.Errorf("extended filters: %w", err)
		}
		if c.NonMatchingStandard, err = lookup("non-matching action", nonMatchingActions, f.NonMatchingStandard, mcan.AcceptInFIFO0); err != nil {
			return cfg, err
		}
		if c.NonMatchingExtended, err = lookup("non-matching action", nonMatchingActions, f.NonMatchingExtended, mcan.AcceptInFIFO0); err != nil {
			return cfg, err
		}
		if c.Standard, err = filters(f.Standard); err != nil {
			return cfg, fmt.Errorf("standard %w", err)
		}
		if c.Extended, err = filters(f.Extended); err != nil {
			return cfg, fmt.Errorf("extended %w", err)
		}
		cfg.Filter = c
	}

	for _, r := range n.Interrupts {
		cfg.Interrupts = append(cfg.Interrupts, mcan.InterruptRoute{
			Source: mcan.Interrupt(r.Source),
			Group:  mcan.InterruptGroup(r.Group),
			Line:   mcan.InterruptLine(r.Line),
		})
	}
	return cfg, nil
}
