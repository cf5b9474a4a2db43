package mcan

// Bus gives word access to peripheral registers and message RAM by
// absolute address. Implementations must not reorder or merge accesses.
type Bus interface {
	Load(addr uint32) uint32
	Store(addr, value uint32)
}

// Register is a single 32-bit register reachable through a Bus.
type Register struct {
	bus  Bus
	addr uint32
}

// NewRegister returns the register at addr on bus.
func NewRegister(bus Bus, addr uint32) Register {
	return Register{bus: bus, addr: addr}
}

// Address returns the absolute address of the register.
func (r Register) Address() uint32 { return r.addr }

// Get reads the register.
func (r Register) Get() uint32 { return r.bus.Load(r.addr) }

// Set writes the register.
func (r Register) Set(value uint32) { r.bus.Store(r.addr, value) }

// Modify reads the register, applies fn and writes the result back.
func (r Register) Modify(fn func(uint32) uint32) { r.Set(fn(r.Get())) }

// Init writes fn applied to the zero value without reading the register
// first. Write-1-to-clear and strobe registers must be written this way.
func (r Register) Init(fn func(uint32) uint32) { r.Set(fn(0)) }

// SetBits sets the bits in value with a read-modify-write.
func (r Register) SetBits(value uint32) { r.Set(r.Get() | value) }

// ClearBits clears the bits in value with a read-modify-write.
func (r Register) ClearBits(value uint32) { r.Set(r.Get() &^ value) }

// HasBits reports whether any bit in value is set.
func (r Register) HasBits(value uint32) bool { return r.Get()&value != 0 }

// ReplaceBits replaces the field mask<<pos with value.
func (r Register) ReplaceBits(value, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// Field returns the field mask<<pos shifted down to bit 0.
func (r Register) Field(mask uint32, pos uint8) uint32 {
	return (r.Get() >> pos) & mask
}

// Protection lifts the write protection of system-critical registers for
// the duration of fn and restores it on every exit path of fn.
type Protection interface {
	Unprotected(fn func())
}

// NoProtection is a Protection for targets or simulations without
// endinit protected registers.
type NoProtection struct{}

// Unprotected calls fn.
func (NoProtection) Unprotected(fn func()) { fn() }

// FrequencySource reports the MCAN kernel clock in Hz.
type FrequencySource interface {
	MCANFrequency() uint32
}

// Frequency is a FrequencySource with a fixed value in Hz.
type Frequency uint32

// MCANFrequency returns f.
func (f Frequency) MCANFrequency() uint32 { return uint32(f) }

// Logger receives diagnostic output. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
