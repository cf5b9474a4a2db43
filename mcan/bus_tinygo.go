//go:build tinygo

package mcan

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO is the memory-mapped Bus of the running chip.
var MMIO Bus = mmio{}

type mmio struct{}

func (mmio) Load(addr uint32) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Get()
}

func (mmio) Store(addr, value uint32) {
	(*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Set(value)
}
