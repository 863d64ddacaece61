//go:build tinygo

package core

import "runtime/volatile"

// Register8 is an 8-bit memory-mapped peripheral register
type Register8 = volatile.Register8

// AckFlags acknowledges write-one-to-clear interrupt flags by writing ones
// to them.
func AckFlags(r *Register8, flags uint8) {
	r.Set(r.Get() | flags)
}
