//go:build tinygo

package main

import (
	"time"

	"github.com/tinygo-org/mcan/mcan"
	"github.com/tinygo-org/mcan/mcan/mcanlib"
	"github.com/tinygo-org/mcan/port"
	"github.com/tinygo-org/mcan/scu"
)

func main() {
	// Sleep to catch prints.
	time.Sleep(2 * time.Second)
	bus := mcan.MMIO

	led := port.New(bus, 0, 5)
	led.Configure(port.Output)

	// The STB pin of the transceiver is held low for normal operation.
	stb := port.New(bus, 20, 6)
	stb.Configure(port.Output)

	can0 := mcan.NewModule(bus, mcan.ModuleConfig{
		Base:       mcan.TC37xCAN0,
		Protection: scu.NewEndinit(bus, 0),
		Clock:      scu.NewCCU(bus, 0),
	})
	can0.Enable()

	cfg := mcan.DefaultNodeConfig()
	cfg.BitTiming = mcan.BitTimingConfig{
		BaudRate:      1_000_000,
		SamplePoint:   8000,
		SyncJumpWidth: 3,
	}
	cfg.Tx = mcan.TxConfig{
		Mode:             mcan.TxDedicatedBuffers,
		DedicatedBuffers: 2,
		FieldSize:        mcan.Data8,
		EventFIFOSize:    1,
	}
	node, err := mcanlib.Start(can0, mcan.Node0, cfg, mcanlib.PinTransceiver{STB: stb})
	if err != nil {
		panic(err.Error())
	}
	println("CAN0 node 0 running at", node.Node().NominalTiming().BitRate(can0.ClockFrequency()), "bit/s")

	id, err := mcan.ExtendedID(0x0CFE6E00)
	if err != nil {
		panic(err.Error())
	}
	data := [8]byte{0, 1, 2, 3, 4, 5, 6, 7}
	for {
		led.High()
		// A different first byte each time.
		data[0]++
		f, _ := mcan.NewFrame(id, data[:])
		if _, err := node.Node().Transmit(f); err != nil {
			println("cannot send frame:", err.Error())
		}
		// Drain the event FIFO so it never fills.
		node.Node().ReadTxEvent()

		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(900 * time.Millisecond)
	}
}
