package port

import (
	"testing"

	"github.com/tinygo-org/mcan/mcan"
)

func TestPinOutput(t *testing.T) {
	bus := mcan.NewMemBus()
	p := New(bus, 20, 6)
	omr := uint32(Base + 20*portStride + regOMR)

	tests := []struct {
		name string
		fn   func()
		want uint32
	}{
		{"high", p.High, 1 << 6},
		{"low", p.Low, 1 << 22},
		{"set high", func() { p.Set(true) }, 1 << 6},
		{"toggle", p.Toggle, 1<<22 | 1<<6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn()
			if got := bus.Peek(omr); got != tt.want {
				t.Errorf("omr got!=expected: %#x != %#x", got, tt.want)
			}
		})
	}
}

func TestPinConfigure(t *testing.T) {
	bus := mcan.NewMemBus()
	// P00.5 lives in IOCR4, byte 1.
	iocr4 := uint32(Base + regIOCR0 + 4)
	bus.Poke(iocr4, 0x10101010)
	p := New(bus, 0, 5)

	tests := []struct {
		mode Mode
		want uint32
	}{
		{Output, 0x10108010},
		{Input, 0x10100010},
		{InputPullUp, 0x10101010},
		{InputPullDown, 0x10100810},
		{OutputOpenDrain, 0x1010C010},
	}
	for _, tt := range tests {
		p.Configure(tt.mode)
		if got := bus.Peek(iocr4); got != tt.want {
			t.Errorf("mode %d: iocr got!=expected: %#x != %#x", tt.mode, got, tt.want)
		}
	}

	// P20.8 ALT5 drives CAN00 TXD.
	New(bus, 20, 8).ConfigureAlternate(5)
	if got := bus.Peek(Base + 20*portStride + regIOCR0 + 8); got != 0xA8 {
		t.Errorf("alternate iocr got!=expected: %#x != %#x", got, 0xA8)
	}
}

func TestPinGet(t *testing.T) {
	bus := mcan.NewMemBus()
	p := New(bus, 33, 15)
	if p.Get() {
		t.Error("low pin reads high")
	}
	bus.Poke(Base+33*portStride+regIN, 1<<15)
	if !p.Get() {
		t.Error("high pin reads low")
	}
}

func TestInvalidPinPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("pin 16 did not panic")
		}
	}()
	New(mcan.NewMemBus(), 0, 16)
}
