// Package scu provides the parts of the TC3xx system control unit needed by
// the MCAN driver: ENDINIT protection through the watchdogs and the MCAN
// kernel clock frequency.
package scu

import "github.com/tinygo-org/mcan/mcan"

// Base is the SCU base address of TC3xx devices.
const Base = 0xF0036000

const (
	syspllcon0 = 0x018
	syspllcon1 = 0x01C
	perpllcon0 = 0x028
	perpllcon1 = 0x02C
	ccucon0    = 0x030
	ccucon1    = 0x034
	wdtscon0   = 0x0F0
	wdtcpucon0 = 0x24C
	wdtcpuStep = 0x00C
)

// NumCPUs is the number of CPU watchdogs of a TC37x.
const NumCPUs = 3

func reg(bus mcan.Bus, offset uint32) mcan.Register {
	return mcan.NewRegister(bus, Base+offset)
}
