//go:build !tinygo

package core

import "sync/atomic"

var systemTicks uint32

// getSystemTicks returns the current system ticks (regular Go implementation)
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// setSystemTicks sets the system ticks (regular Go implementation)
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

func addSystemTicks(n uint32) {
	atomic.AddUint32(&systemTicks, n)
}
