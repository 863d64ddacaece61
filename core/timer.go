package core

// TickRate is the scheduler tick frequency. Thread yields and the link
// stall timeout are measured in these ticks.
const TickRate = 1000 // 1 kHz system tick

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// Tick advances the system time by one tick. Called from the tick interrupt
// on hardware and by the simulator on host builds.
func Tick() {
	addSystemTicks(1)
}

// Elapsed returns the ticks since the given timestamp, wrap-safe
func Elapsed(since uint32) uint32 {
	return GetTime() - since
}

// TicksFromMS converts milliseconds to ticks
func TicksFromMS(ms uint32) uint32 {
	return ms * TickRate / 1000
}

// TicksToMS converts ticks to milliseconds
func TicksToMS(ticks uint32) uint32 {
	return ticks * 1000 / TickRate
}

// timeBefore reports whether a is before b, tolerating counter wrap
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
