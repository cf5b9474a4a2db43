package scu

import "github.com/tinygo-org/mcan/mcan"

// Fixed clock sources of TC3xx devices.
const (
	EVRFrequency    = 100_000_000
	SysclkFrequency = 20_000_000

	// DefaultXtalFrequency is the crystal of TC37x evaluation boards.
	DefaultXtalFrequency = 20_000_000
)

// SYSPLLCON0, PERPLLCON0
const (
	pllNDIVPos  = 9
	pllNDIVMsk  = 0x7f
	pllPDIVPos  = 24
	pllPDIVMsk  = 0x7
	pllINSELPos = 30
	pllINSELMsk = 0x3
	perpllDIVBY = 1 << 0
)

// SYSPLLCON1, PERPLLCON1
const (
	pllK2DIVMsk = 0x7
	pllK3DIVPos = 8
	pllK3DIVMsk = 0x7
)

// CCUCON0
const (
	ccucon0CLKSELPos = 28
	ccucon0CLKSELMsk = 0x3

	clkselBackup = 0
	clkselPLL    = 1
)

// CCUCON1
const (
	ccucon1MCANDIVMsk    = 0xf
	ccucon1CLKSELMCANPos = 4
	ccucon1CLKSELMCANMsk = 0x3
	ccucon1PLL1DIVDIS    = 1 << 7

	clkselMCANDivided    = 1
	clkselMCANOscillator = 2
)

// PLL input selection.
const (
	inselEVR    = 0
	inselXtal   = 1
	inselSysclk = 2
)

// CCU reads the clock control unit configuration. It implements
// mcan.FrequencySource.
type CCU struct {
	bus  mcan.Bus
	xtal uint32
}

// NewCCU returns a CCU for a board with a crystal of xtalHz. Zero selects
// DefaultXtalFrequency.
func NewCCU(bus mcan.Bus, xtalHz uint32) CCU {
	if xtalHz == 0 {
		xtalHz = DefaultXtalFrequency
	}
	return CCU{bus: bus, xtal: xtalHz}
}

func (c CCU) field(offset uint32, mask uint32, pos uint8) uint32 {
	return reg(c.bus, offset).Field(mask, pos)
}

// OscillatorFrequency returns the PLL input frequency.
func (c CCU) OscillatorFrequency() uint32 {
	switch c.field(syspllcon0, pllINSELMsk, pllINSELPos) {
	case inselEVR:
		return EVRFrequency
	case inselXtal:
		return c.xtal
	case inselSysclk:
		return SysclkFrequency
	}
	return 0
}

// SystemPLLFrequency returns the system PLL output.
func (c CCU) SystemPLLFrequency() uint32 {
	ndiv := c.field(syspllcon0, pllNDIVMsk, pllNDIVPos) + 1
	pdiv := c.field(syspllcon0, pllPDIVMsk, pllPDIVPos) + 1
	k2 := c.field(syspllcon1, pllK2DIVMsk, 0) + 1
	return uint32(uint64(c.OscillatorFrequency()) * uint64(ndiv) / uint64(pdiv*k2))
}

// PeripheralPLLFrequency1 returns the first peripheral PLL output.
func (c CCU) PeripheralPLLFrequency1() uint32 {
	ndiv := c.field(perpllcon0, pllNDIVMsk, pllNDIVPos) + 1
	pdiv := c.field(perpllcon0, pllPDIVMsk, pllPDIVPos) + 1
	k2 := c.field(perpllcon1, pllK2DIVMsk, 0) + 1
	return uint32(uint64(c.OscillatorFrequency()) * uint64(ndiv) / uint64(pdiv*k2))
}

// PeripheralPLLFrequency2 returns the second peripheral PLL output, which
// passes a fixed divider of 1.6, or 2 with DIVBY set.
func (c CCU) PeripheralPLLFrequency2() uint32 {
	ndiv := c.field(perpllcon0, pllNDIVMsk, pllNDIVPos) + 1
	pdiv := c.field(perpllcon0, pllPDIVMsk, pllPDIVPos) + 1
	k3 := c.field(perpllcon1, pllK3DIVMsk, pllK3DIVPos) + 1
	// Divider in tenths.
	fixed := uint64(16)
	if reg(c.bus, perpllcon0).HasBits(perpllDIVBY) {
		fixed = 20
	}
	return uint32(uint64(c.OscillatorFrequency()) * uint64(ndiv) * 10 / (uint64(pdiv*k3) * fixed))
}

// MCANFrequency returns the MCAN kernel clock fmcani, or 0 when the
// clock is stopped.
func (c CCU) MCANFrequency() uint32 {
	switch c.field(ccucon1, ccucon1CLKSELMCANMsk, ccucon1CLKSELMCANPos) {
	case clkselMCANDivided:
		src := c.mcanSource()
		if div := c.field(ccucon1, ccucon1MCANDIVMsk, 0); div != 0 {
			src /= div
		}
		return src
	case clkselMCANOscillator:
		return c.xtal
	}
	return 0
}

// mcanSource returns the clock feeding the MCAN divider.
func (c CCU) mcanSource() uint32 {
	switch c.field(ccucon0, ccucon0CLKSELMsk, ccucon0CLKSELPos) {
	case clkselBackup:
		return EVRFrequency
	case clkselPLL:
		f := c.PeripheralPLLFrequency1()
		if !reg(c.bus, ccucon1).HasBits(ccucon1PLL1DIVDIS) {
			f /= 2
		}
		return f
	}
	return 0
}
