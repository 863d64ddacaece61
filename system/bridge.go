package system

import (
	"muffin/board"
	"muffin/core"
	"muffin/event"
	"muffin/protocol"
)

// Port is the host-facing byte stream, USB CDC on hardware
type Port interface {
	Write(p []byte) (int, error)
}

// BridgeStats counts bridge traffic
type BridgeStats struct {
	FramesIn    uint32
	FramesOut   uint32
	StreamErrs  uint32
	WriteErrors uint32
	Overflows   uint32 // host bytes dropped on a full input buffer
	Rejected    uint32 // host frames the board refused
	Dropped     uint32 // outbound frames with no room left to queue
}

// maxWriteFailures is the number of consecutive failed writes after which
// the host is treated as gone and pending output is discarded
const maxWriteFailures = 10

// USBBridge relays between the host and the board: encoder events go up
// as stream frames, indicator frames from the host are applied to the
// board. It is the USBService handed to InitOSThreads.
type USBBridge struct {
	port   Port
	level  core.Priority
	board  *board.Board
	events *event.Queue

	in  *protocol.FifoBuffer
	dec *protocol.StreamDecoder
	out []byte
	msg protocol.Message

	started  bool
	failures uint32
	stats    BridgeStats
	thread   core.Thread
}

// NewUSBBridge creates a bridge writing to port. level is the priority the
// USB interrupts run at.
func NewUSBBridge(port Port, level core.Priority, b *board.Board, events *event.Queue) *USBBridge {
	u := &USBBridge{
		port:   port,
		level:  level,
		board:  b,
		events: events,
		in:     protocol.NewFifoBuffer(256),
		dec:    protocol.NewStreamDecoder(),
		out:    make([]byte, 0, 4*(protocol.FrameBufferSize+protocol.StreamOverhead)),
	}
	u.thread = core.Thread{Name: "usb", Entry: u.Thread}
	return u
}

// Start implements USBService
func (u *USBBridge) Start() error {
	u.Reset()
	u.started = true
	return nil
}

// Priority implements USBService
func (u *USBBridge) Priority() core.Priority {
	return u.level
}

// Reset drops buffered host input and pending output, as after a reconnect
func (u *USBBridge) Reset() {
	u.in.Reset()
	u.dec.Reset()
	u.out = u.out[:0]
	u.failures = 0
}

// ThreadEntry returns the bridge's scheduler thread
func (u *USBBridge) ThreadEntry() *core.Thread {
	return &u.thread
}

// Feed queues bytes read from the host. Returns how many were accepted.
func (u *USBBridge) Feed(data []byte) int {
	n := u.in.Write(data)
	if n < len(data) {
		u.stats.Overflows += uint32(len(data) - n)
	}
	return n
}

// Thread is the bridge thread body
func (u *USBBridge) Thread(data uint32) uint32 {
	u.Update()
	return 1
}

// Update applies host frames, then forwards queued events
func (u *USBBridge) Update() {
	if !u.started {
		return
	}

	if u.in.Available() > 0 {
		before := u.dec.Errors()
		u.dec.Decode(u.in, u.apply)
		u.stats.StreamErrs += u.dec.Errors() - before
	}

	for len(u.out) < cap(u.out)-protocol.FrameBufferSize-protocol.StreamOverhead {
		ev, ok := u.events.Pop()
		if !ok {
			break
		}
		if err := encodeEvent(ev, &u.msg); err != nil {
			continue
		}
		u.queue(&u.msg)
	}
	u.flush()
}

func (u *USBBridge) apply(m *protocol.Message) {
	u.stats.FramesIn++
	switch m.Header.Type {
	case protocol.TypeIndicator:
		ind, err := protocol.DecodeIndicator(m)
		if err != nil || u.board.SetIndicator(int(ind.Index), ind.Value) != nil {
			u.stats.Rejected++
		}
	case protocol.TypeHeartbeat:
		var reply protocol.Message
		reply.Header.Type = protocol.TypeHeartbeat
		reply.Header.Seq = m.Header.Seq
		u.queue(&reply)
	default:
		u.stats.Rejected++
	}
}

func encodeEvent(ev event.Event, m *protocol.Message) error {
	m.Reset()
	switch ev.Kind {
	case event.KindEncoder:
		return protocol.EncoderEvent{Index: ev.Index, Delta: ev.Delta}.Encode(m)
	case event.KindSwitch:
		return protocol.SwitchEvent{Index: ev.Index, Pressed: ev.Pressed}.Encode(m)
	}
	return protocol.ErrMessageType
}

// queue appends m to the pending output. The output never grows past its
// initial capacity; a host that stops reading loses frames instead.
func (u *USBBridge) queue(m *protocol.Message) {
	if len(u.out)+protocol.WireSize(m)+protocol.StreamOverhead > cap(u.out) {
		u.stats.Dropped++
		return
	}
	out, err := protocol.AppendStreamFrame(u.out, m)
	if err != nil {
		return
	}
	u.out = out
	u.stats.FramesOut++
}

// flush writes pending output, keeping whatever the port did not take
func (u *USBBridge) flush() {
	for len(u.out) > 0 {
		n, err := u.port.Write(u.out)
		if err != nil || n == 0 {
			u.stats.WriteErrors++
			u.failures++
			if u.failures > maxWriteFailures {
				// host went away, stale data is worthless
				u.Reset()
			}
			return
		}
		u.failures = 0
		u.out = u.out[:copy(u.out, u.out[n:])]
	}
}

// Stats returns the bridge counters
func (u *USBBridge) Stats() BridgeStats {
	return u.stats
}
