// Package board is the controller board: it owns the link to the encoder
// board, applies the encoder traffic it receives and pushes indicator
// updates back out.
package board

import (
	"errors"

	"muffin/comms"
	"muffin/core"
	"muffin/event"
	"muffin/protocol"
)

// MaxEncoders is the number of encoders one encoder board carries
const MaxEncoders = 8

var ErrEncoderIndex = errors.New("encoder index out of range")

// Config holds the board settings
type Config struct {
	Comms    comms.Config
	Encoders int

	// HeartbeatInterval is the idle time in ticks after which a heartbeat
	// frame is sent. Zero disables heartbeats.
	HeartbeatInterval uint32
}

// DefaultConfig returns the settings of the production controller board
func DefaultConfig() Config {
	return Config{
		Comms:             comms.DefaultConfig(),
		Encoders:          MaxEncoders,
		HeartbeatInterval: core.TicksFromMS(500),
	}
}

// Stats counts board level traffic on top of the link counters
type Stats struct {
	comms.Stats
	Heartbeats  uint32 // heartbeats sent
	BadIndex    uint32 // inbound events for encoders that do not exist
	BadPayload  uint32 // inbound frames whose payload failed to decode
	Unhandled   uint32 // inbound frames of a type the controller ignores
	SendErrors  uint32
	LastHeardAt uint32 // tick of the most recent inbound frame
}

// Board is the context object for the controller: the link, its DMA
// channels and the encoder state. All methods run on the system thread.
type Board struct {
	link   comms.Link
	ch     comms.Channels
	cfg    Config
	comms  *comms.Comms
	events *event.Queue

	position   [MaxEncoders]int32
	pressed    [MaxEncoders]bool
	indicators [MaxEncoders]uint16
	dirty      uint8 // one bit per indicator waiting to be sent
	next       uint8 // round robin start for dirty indicators

	in       protocol.Message
	out      protocol.Message
	lastSend uint32
	stats    Stats
}

// New creates the board. The link and channels are not touched until Init.
func New(l comms.Link, ch comms.Channels, cfg Config) *Board {
	if cfg.Encoders <= 0 || cfg.Encoders > MaxEncoders {
		cfg.Encoders = MaxEncoders
	}
	return &Board{link: l, ch: ch, cfg: cfg}
}

// Init brings up the link. seed becomes the first outbound sequence number.
func (b *Board) Init(seed uint8) error {
	cfg := b.cfg.Comms
	cfg.InitialSeq = seed
	b.comms = comms.New(b.link, b.ch, cfg)
	if err := b.comms.Init(); err != nil {
		return err
	}

	b.position = [MaxEncoders]int32{}
	b.pressed = [MaxEncoders]bool{}
	b.indicators = [MaxEncoders]uint16{}
	b.dirty = 0
	b.next = 0
	b.stats = Stats{}
	b.lastSend = core.GetTime()
	core.DebugPrintln("board: link up")
	return nil
}

// SetEvents directs decoded input to q. Before this is called input only
// updates the board's own state.
func (b *Board) SetEvents(q *event.Queue) {
	b.events = q
}

// Comms returns the link transport, nil before Init
func (b *Board) Comms() *comms.Comms {
	return b.comms
}

// Update runs one pass: the link first, then whatever it delivered, then
// at most one outbound frame.
func (b *Board) Update() {
	if b.comms == nil {
		return
	}
	b.comms.Update()
	if b.comms.ReceiveMessage(&b.in) {
		b.handle(&b.in)
	}
	b.flush()
}

func (b *Board) handle(m *protocol.Message) {
	b.stats.LastHeardAt = core.GetTime()

	switch m.Header.Type {
	case protocol.TypeEncoderEvent:
		ev, err := protocol.DecodeEncoderEvent(m)
		if err != nil {
			b.stats.BadPayload++
			return
		}
		if int(ev.Index) >= b.cfg.Encoders {
			b.stats.BadIndex++
			return
		}
		b.position[ev.Index] += ev.Delta
		b.post(event.Event{Kind: event.KindEncoder, Index: ev.Index, Delta: ev.Delta})

	case protocol.TypeSwitchEvent:
		ev, err := protocol.DecodeSwitchEvent(m)
		if err != nil {
			b.stats.BadPayload++
			return
		}
		if int(ev.Index) >= b.cfg.Encoders {
			b.stats.BadIndex++
			return
		}
		b.pressed[ev.Index] = ev.Pressed
		b.post(event.Event{Kind: event.KindSwitch, Index: ev.Index, Pressed: ev.Pressed})

	case protocol.TypeHeartbeat:
		// keepalive

	default:
		b.stats.Unhandled++
		if core.IsDebugEnabled() {
			core.DebugPrintln("board: ignored " + m.Header.Type.String() + " frame")
		}
	}
}

func (b *Board) post(e event.Event) {
	if b.events != nil {
		b.events.Post(e)
	}
}

// flush sends the next dirty indicator, or a heartbeat once the link has
// been quiet for HeartbeatInterval.
func (b *Board) flush() {
	if b.dirty != 0 {
		idx := b.nextDirty()
		ind := protocol.Indicator{Index: idx, Value: b.indicators[idx]}
		if err := ind.Encode(&b.out); err != nil {
			b.dirty &^= 1 << idx
			b.stats.SendErrors++
			return
		}
		if b.send() {
			b.dirty &^= 1 << idx
			b.next = (idx + 1) % uint8(b.cfg.Encoders)
		}
		return
	}

	if b.cfg.HeartbeatInterval == 0 || core.Elapsed(b.lastSend) < b.cfg.HeartbeatInterval {
		return
	}
	b.out.Reset()
	b.out.Header.Type = protocol.TypeHeartbeat
	if b.send() {
		b.stats.Heartbeats++
	}
}

// send hands b.out to the link. A busy link is not an error: the frame is
// rebuilt and retried on a later pass.
func (b *Board) send() bool {
	err := b.comms.SendMessage(&b.out)
	switch {
	case err == nil:
		b.lastSend = core.GetTime()
		return true
	case errors.Is(err, comms.ErrLinkBusy):
		return false
	}
	b.stats.SendErrors++
	return false
}

func (b *Board) nextDirty() uint8 {
	n := uint8(b.cfg.Encoders)
	for i := uint8(0); i < n; i++ {
		idx := (b.next + i) % n
		if b.dirty&(1<<idx) != 0 {
			return idx
		}
	}
	return 0
}

// SetIndicator queues a new value for an encoder's indicator ring. Repeated
// updates before the frame goes out are coalesced.
func (b *Board) SetIndicator(index int, value uint16) error {
	if index < 0 || index >= b.cfg.Encoders {
		return ErrEncoderIndex
	}
	if b.indicators[index] == value && b.dirty&(1<<index) == 0 {
		return nil
	}
	b.indicators[index] = value
	b.dirty |= 1 << index
	return nil
}

// Indicator returns the last value set for an encoder's indicator
func (b *Board) Indicator(index int) uint16 {
	if index < 0 || index >= b.cfg.Encoders {
		return 0
	}
	return b.indicators[index]
}

// Position returns the accumulated detent count of an encoder
func (b *Board) Position(index int) int32 {
	if index < 0 || index >= b.cfg.Encoders {
		return 0
	}
	return b.position[index]
}

// Pressed reports whether an encoder's switch is held down
func (b *Board) Pressed(index int) bool {
	if index < 0 || index >= b.cfg.Encoders {
		return false
	}
	return b.pressed[index]
}

// Stats returns the board and link counters
func (b *Board) Stats() Stats {
	s := b.stats
	if b.comms != nil {
		s.Stats = b.comms.Stats()
	}
	return s
}
