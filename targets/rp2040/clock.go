//go:build tinygo && rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"muffin/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the 64-bit microsecond timer
func GetHardwareUptime() uint64 {
	// Read high, low, high again to catch a carry between the two words
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}

// UpdateSystemTime moves the scheduler clock to the hardware timer
func UpdateSystemTime() {
	core.SetTime(uint32(GetHardwareUptime() / (1_000_000 / core.TickRate)))
}
