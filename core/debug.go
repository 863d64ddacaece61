package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// LinkEvent captures a link transfer event for post-mortem analysis
type LinkEvent struct {
	EventType uint8  // Event type code
	Channel   uint8  // DMA channel or link direction
	Clock     uint32 // System tick at event
	Value     uint32 // Context-dependent value (length, counter)
}

// Event type codes
const (
	EvtTxArm       = 1 // outbound transfer armed
	EvtTxDone      = 2 // outbound completion observed by Update
	EvtRxArm       = 3 // receive window armed
	EvtRxDone      = 4 // inbound frame delivered
	EvtFrameError  = 5 // inbound frame failed to decode
	EvtDMAError    = 6 // DMA reported a bus error
	EvtStall       = 7 // transfer exceeded the stall timeout
	EvtOverrun     = 8 // completion with no armed slot
	EvtSequenceGap = 9 // inbound sequence number skipped
)

const (
	LinkRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Link event ring buffer (non-blocking, for post-mortem)
	linkRing     [LinkRingSize]LinkEvent
	linkRingHead uint8
	linkEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// SetLinkEventsEnabled turns event capture on or off
func SetLinkEventsEnabled(enabled bool) {
	linkEnabled = enabled
}

// RecordLinkEvent captures an event in the ring buffer. Callable from
// interrupt handlers: it never blocks and the ring index update is guarded.
func RecordLinkEvent(eventType, channel uint8, value uint32) {
	if !linkEnabled {
		return
	}
	state := DisableInterrupts()
	idx := linkRingHead
	linkRingHead = (idx + 1) % LinkRingSize
	linkRing[idx] = LinkEvent{
		EventType: eventType,
		Channel:   channel,
		Clock:     GetTime(),
		Value:     value,
	}
	RestoreInterrupts(state)
}

// LinkEvents copies the recorded events, oldest first, into dst and returns
// how many were written.
func LinkEvents(dst []LinkEvent) int {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	n := 0
	start := linkRingHead
	for i := uint8(0); i < LinkRingSize && n < len(dst); i++ {
		evt := linkRing[(start+i)%LinkRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		dst[n] = evt
		n++
	}
	return n
}

// LinkEventName returns a short label for an event type
func LinkEventName(eventType uint8) string {
	switch eventType {
	case EvtTxArm:
		return "TX_ARM"
	case EvtTxDone:
		return "TX_DONE"
	case EvtRxArm:
		return "RX_ARM"
	case EvtRxDone:
		return "RX_DONE"
	case EvtFrameError:
		return "FRAME_ERR!"
	case EvtDMAError:
		return "DMA_ERR!"
	case EvtStall:
		return "STALL!"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtSequenceGap:
		return "SEQ_GAP"
	}
	return "UNKNOWN"
}

// DumpLinkEvents outputs the event ring (call on shutdown/error)
func DumpLinkEvents() {
	if debugPrintln == nil {
		return
	}

	var events [LinkRingSize]LinkEvent
	n := LinkEvents(events[:])

	debugPrintln("[LINK] === Event Ring Dump ===")
	for _, evt := range events[:n] {
		debugPrintln("[LINK] " + LinkEventName(evt.EventType) +
			" ch=" + Utoa(uint32(evt.Channel)) +
			" clock=" + Utoa(evt.Clock) +
			" v=" + Utoa(evt.Value))
	}
	debugPrintln("[LINK] === End Dump ===")
}

// ClearLinkEvents clears the event buffer
func ClearLinkEvents() {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	for i := range linkRing {
		linkRing[i] = LinkEvent{}
	}
	linkRingHead = 0
}
