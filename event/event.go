// Package event queues input events decoded from the encoder boards until
// the application thread consumes them.
package event

import "muffin/core"

// Kind identifies what an Event reports
type Kind uint8

const (
	KindNone Kind = iota
	KindEncoder
	KindSwitch
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEncoder:
		return "encoder"
	case KindSwitch:
		return "switch"
	}
	return "invalid"
}

// Event is one input change
type Event struct {
	Kind    Kind
	Index   uint8
	Delta   int32 // KindEncoder
	Pressed bool  // KindSwitch
	Time    uint32
}

// QueueSize is the number of events held before new ones are dropped
const QueueSize = 32

// Queue is a fixed ring of events. Post and Pop may be called from
// different contexts; index updates run inside a critical section.
type Queue struct {
	buf     [QueueSize]Event
	head    uint8 // next to pop
	count   uint8
	dropped uint32
	started bool
}

// Init empties the queue and starts accepting events
func (q *Queue) Init() {
	state := core.DisableInterrupts()
	q.head = 0
	q.count = 0
	q.dropped = 0
	q.started = true
	core.RestoreInterrupts(state)
}

// Started reports whether Init has run
func (q *Queue) Started() bool {
	return q.started
}

// Post stamps e with the current time and appends it. Returns false if the
// queue is not started or full; a full queue counts the event as dropped.
func (q *Queue) Post(e Event) bool {
	if !q.started {
		return false
	}
	e.Time = core.GetTime()

	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	if q.count == QueueSize {
		q.dropped++
		return false
	}
	q.buf[(q.head+q.count)%QueueSize] = e
	q.count++
	return true
}

// Pop removes the oldest event
func (q *Queue) Pop() (Event, bool) {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	if q.count == 0 {
		return Event{}, false
	}
	e := q.buf[q.head]
	q.head = (q.head + 1) % QueueSize
	q.count--
	return e, true
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return int(q.count)
}

// Dropped returns the number of events lost to a full queue
func (q *Queue) Dropped() uint32 {
	return q.dropped
}
