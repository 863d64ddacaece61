//go:build tinygo

package core

import "sync/atomic"

var systemTicksValue uint32

// getSystemTicks returns the current system ticks
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicksValue)
}

// setSystemTicks sets the system ticks
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}

// addSystemTicks runs from the tick interrupt; AVR has no atomic add so the
// read-modify-write goes through the interrupt guard.
func addSystemTicks(n uint32) {
	state := DisableInterrupts()
	systemTicksValue += n
	RestoreInterrupts(state)
}
