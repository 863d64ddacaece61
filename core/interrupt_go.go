//go:build !tinygo

package core

import "sync/atomic"

// InterruptState is the captured global interrupt-enable flag on host builds
type InterruptState uint32

// interruptsEnabled simulates the CPU's global interrupt-enable bit so the
// simulator can hold back interrupt delivery inside critical sections.
var interruptsEnabled uint32 = 1

// DisableInterrupts clears the simulated enable bit and returns its previous value
func DisableInterrupts() InterruptState {
	return InterruptState(atomic.SwapUint32(&interruptsEnabled, 0))
}

// RestoreInterrupts puts back exactly the state captured by DisableInterrupts.
// The atomic store doubles as the memory barrier.
func RestoreInterrupts(state InterruptState) {
	atomic.StoreUint32(&interruptsEnabled, uint32(state))
}

// InterruptsEnabled reports the simulated enable bit
func InterruptsEnabled() bool {
	return atomic.LoadUint32(&interruptsEnabled) != 0
}
