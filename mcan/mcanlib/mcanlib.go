// Package mcanlib builds on package mcan with transceiver control, node
// bring-up and blocking transmit and receive with timeouts.
package mcanlib

import (
	"errors"
	"runtime"
	"time"
)

var (
	errTimeout = errors.New("mcanlib: timeout")
	errSBCMode = errors.New("mcanlib: transceiver mode not accepted")
)

func gosched() {
	runtime.Gosched()
}

type deadline struct {
	t time.Time
}

func (dl deadline) expired() bool {
	if dl.t.IsZero() {
		return false
	}
	return time.Since(dl.t) > 0
}

type deadliner struct {
	// timeout is a bitshift value for the timeout.
	timeout uint8
}

func (ch deadliner) newDeadline() deadline {
	var t time.Time
	if ch.timeout != 0 {
		t = time.Now().Add(time.Duration(1) << ch.timeout)
	}
	return deadline{t: t}
}

// setTimeout rounds timeout up to the next power of two nanoseconds.
func (ch *deadliner) setTimeout(timeout time.Duration) {
	if timeout <= 0 {
		ch.timeout = 0
		return // No timeout.
	}
	for i := uint8(0); i < 63; i++ {
		if time.Duration(1)<<i > timeout {
			ch.timeout = i
			return
		}
	}
	ch.timeout = 62
}
