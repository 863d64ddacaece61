package comms

import "sync/atomic"

// SlotState is the lifecycle position of the single message a direction holds
type SlotState uint32

const (
	Idle      SlotState = iota // slot free
	Pending                    // outbound frame encoded, waiting for the link
	Armed                      // DMA owns the buffer
	Complete                   // DMA finished, Update has not looked yet
	Delivered                  // inbound frame decoded, waiting for ReceiveMessage
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Armed:
		return "armed"
	case Complete:
		return "complete"
	case Delivered:
		return "delivered"
	}
	return "invalid"
}

// slot is the state word shared between a DMA interrupt and Update.
// The interrupt only performs Armed->Complete and Armed->Idle; every other
// transition happens in thread context.
type slot struct {
	state atomic.Uint32
}

func (s *slot) load() SlotState {
	return SlotState(s.state.Load())
}

func (s *slot) store(v SlotState) {
	s.state.Store(uint32(v))
}

func (s *slot) swap(from, to SlotState) bool {
	return s.state.CompareAndSwap(uint32(from), uint32(to))
}

// Stats is a snapshot of the link counters
type Stats struct {
	Sent           uint32
	Received       uint32
	FramingErrors  uint32
	TransferErrors uint32
	Overruns       uint32
	Stalls         uint32
	SequenceGaps   uint32
}
