package scu

import "github.com/tinygo-org/mcan/mcan"

// WDTxCON0
const (
	con0ENDINIT = 1 << 0
	con0LCK     = 1 << 1
	con0PWPos   = 2
	con0PWMsk   = 0x3fff
	con0RELPos  = 16
	con0RELMsk  = 0xffff

	// Reads return the password with bits 5:0 inverted.
	pwReadInvert = 0x3f
)

// Watchdog is a CPU or safety watchdog. Its ENDINIT bit write protects
// system critical registers, including the MCAN clock gate and clock
// selection.
type Watchdog struct {
	con0 mcan.Register
}

// CPUWatchdog returns the watchdog of CPU cpu.
func CPUWatchdog(bus mcan.Bus, cpu int) Watchdog {
	if cpu < 0 || cpu >= NumCPUs {
		panic("scu: invalid cpu index")
	}
	return Watchdog{con0: reg(bus, wdtcpucon0+uint32(cpu)*wdtcpuStep)}
}

// SafetyWatchdog returns the safety watchdog.
func SafetyWatchdog(bus mcan.Bus) Watchdog {
	return Watchdog{con0: reg(bus, wdtscon0)}
}

func (w Watchdog) password() uint32 {
	return w.con0.Field(con0PWMsk, con0PWPos) ^ pwReadInvert
}

// write performs a modify access, preceded by a password access if CON0
// is locked, and waits for ENDINIT to take the new value.
func (w Watchdog) write(endinit bool) {
	pw := w.password()
	rel := w.con0.Field(con0RELMsk, con0RELPos)
	if w.con0.HasBits(con0LCK) {
		w.con0.Set(rel<<con0RELPos | pw<<con0PWPos | con0ENDINIT)
	}
	v := rel<<con0RELPos | pw<<con0PWPos | con0LCK
	if endinit {
		v |= con0ENDINIT
	}
	w.con0.Set(v)
	for w.con0.HasBits(con0ENDINIT) != endinit {
	}
}

// ClearEndinit lifts the protection.
func (w Watchdog) ClearEndinit() { w.write(false) }

// SetEndinit restores the protection.
func (w Watchdog) SetEndinit() { w.write(true) }

// Unprotected runs fn with ENDINIT cleared. Protection is restored when fn
// returns or panics.
func (w Watchdog) Unprotected(fn func()) {
	w.ClearEndinit()
	defer w.SetEndinit()
	fn()
}

// Endinit lifts both the CPU and the safety ENDINIT protection. Registers
// such as MCAN CLC and MCR need both.
type Endinit struct {
	CPU    Watchdog
	Safety Watchdog
}

// NewEndinit returns the protection of CPU cpu.
func NewEndinit(bus mcan.Bus, cpu int) Endinit {
	return Endinit{CPU: CPUWatchdog(bus, cpu), Safety: SafetyWatchdog(bus)}
}

// Unprotected runs fn with both ENDINIT bits cleared.
func (e Endinit) Unprotected(fn func()) {
	e.CPU.Unprotected(func() {
		e.Safety.Unprotected(fn)
	})
}
