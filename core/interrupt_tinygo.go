//go:build tinygo

package core

import "runtime/interrupt"

// InterruptState is the saved status register (SREG on AVR, PRIMASK on Cortex-M)
type InterruptState = interrupt.State

// DisableInterrupts disables interrupts and returns the previous state
func DisableInterrupts() InterruptState {
	return interrupt.Disable()
}

// RestoreInterrupts restores the interrupt state.
// interrupt.Restore is a compiler barrier on every TinyGo target.
func RestoreInterrupts(state InterruptState) {
	interrupt.Restore(state)
}
