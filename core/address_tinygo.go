//go:build tinygo

package core

import "unsafe"

// Address returns the data-space address of a register, as programmed into
// DMA source and destination address registers.
func Address(r *Register8) uintptr {
	return uintptr(unsafe.Pointer(r))
}

// BufferAddress returns the data-space address of the first byte of b
func BufferAddress(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
