//go:build !tinygo

package core

import (
	"sync"
	"unsafe"
)

// Host pointers do not fit the 24-bit DMA address registers, so registers
// and buffers are mapped into a simulated data space starting at the
// XMEGA internal SRAM base. Resolve turns such an address back into memory.
const hostDataStart = 0x2000

type hostRegion struct {
	base uintptr
	ptr  unsafe.Pointer
	size uintptr
}

var (
	hostMu      sync.Mutex
	hostRegions []hostRegion
	hostNext    uintptr = hostDataStart
)

// Address returns the simulated data-space address of a register
func Address(r *Register8) uintptr {
	return mapHost(unsafe.Pointer(&r.Reg), 1)
}

// BufferAddress returns the simulated data-space address of the first byte of b
func BufferAddress(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return mapHost(unsafe.Pointer(unsafe.SliceData(b)), uintptr(len(b)))
}

func mapHost(p unsafe.Pointer, size uintptr) uintptr {
	hostMu.Lock()
	defer hostMu.Unlock()

	addr := uintptr(p)
	for _, r := range hostRegions {
		start := uintptr(r.ptr)
		if addr >= start && addr+size <= start+r.size {
			return r.base + (addr - start)
		}
	}

	r := hostRegion{base: hostNext, ptr: p, size: size}
	hostRegions = append(hostRegions, r)
	hostNext += size
	return r.base
}

// Resolve returns the byte at a simulated data-space address, or nil if
// nothing is mapped there.
func Resolve(addr uintptr) *byte {
	hostMu.Lock()
	defer hostMu.Unlock()

	for _, r := range hostRegions {
		if addr >= r.base && addr < r.base+r.size {
			return (*byte)(unsafe.Add(r.ptr, addr-r.base))
		}
	}
	return nil
}
