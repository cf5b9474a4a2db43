package mcanlib

import (
	"errors"
	"time"

	"github.com/tinygo-org/mcan/mcan"
)

// Node wraps a configured mcan.Node with blocking transmit and receive.
// Operations wait without bound until a timeout is set with SetTimeout.
type Node struct {
	node *mcan.Node
	xcvr Transceiver
	dl   deadliner
}

// Start claims node id of an enabled module, configures it with cfg and
// switches xcvr to normal operation. xcvr may be nil for boards without a
// controllable transceiver.
func Start(m *mcan.Module, id mcan.NodeID, cfg mcan.NodeConfig, xcvr Transceiver) (*Node, error) {
	cn, err := m.Claim(id)
	if err != nil {
		return nil, err
	}
	n, err := cn.Configure(cfg)
	if err != nil {
		return nil, err
	}
	if xcvr != nil {
		if err := xcvr.Normal(); err != nil {
			return nil, err
		}
	}
	return &Node{node: n, xcvr: xcvr}, nil
}

// Node returns the underlying node.
func (n *Node) Node() *mcan.Node { return n.node }

// SetTimeout sets the timeout of Send and Receive. Zero or negative means
// no timeout.
func (n *Node) SetTimeout(timeout time.Duration) {
	n.dl.setTimeout(timeout)
}

// Send transmits f and waits until it has been sent. A request still
// pending when the timeout expires is cancelled.
func (n *Node) Send(f mcan.Frame) error {
	deadline := n.dl.newDeadline()
	var index uint8
	for {
		i, err := n.node.Transmit(f)
		if err == nil {
			index = i
			break
		}
		if !errors.Is(err, mcan.ErrTxBusy) && !errors.Is(err, mcan.ErrTxQueueFull) {
			return err
		}
		if deadline.expired() {
			return errTimeout
		}
		gosched()
	}
	for !n.node.IsTxTransmissionOccurred(index) {
		if deadline.expired() {
			n.node.CancelTransmission(index)
			return errTimeout
		}
		gosched()
	}
	return nil
}

// Receive waits for a frame in fifo and returns it.
func (n *Node) Receive(fifo mcan.FIFO) (mcan.Frame, error) {
	deadline := n.dl.newDeadline()
	for {
		if f, ok := n.node.ReceiveFIFO(fifo); ok {
			return f, nil
		}
		if deadline.expired() {
			return mcan.Frame{}, errTimeout
		}
		gosched()
	}
}

// Standby puts the transceiver into its low power mode.
func (n *Node) Standby() error {
	if n.xcvr == nil {
		return nil
	}
	return n.xcvr.Standby()
}
