package core

// Priority is the level an interrupt source is serviced at.
// Levels are ordered: a higher level preempts a lower one.
type Priority uint8

const (
	PriorityOff Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityOff:
		return "off"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return "invalid"
}

// Valid reports whether p is one of the four defined levels
func (p Priority) Valid() bool {
	return p <= PriorityHigh
}

// Critical runs fn with interrupts disabled and restores the previous
// interrupt state afterwards. Safe to nest.
func Critical(fn func()) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)
	fn()
}
