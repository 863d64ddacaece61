// Package comms moves messages between this board and a peripheral board
// over a DMA-driven master SPI link.
//
// Each direction holds at most one message. SendMessage, ReceiveMessage and
// Update never block: the DMA completion interrupt only flips a slot state
// word and the cooperative thread calling Update does everything else.
package comms

import (
	"errors"
	"sync/atomic"

	"muffin/core"
	"muffin/dma"
	"muffin/link"
	"muffin/protocol"
)

var (
	ErrLinkBusy       = errors.New("outbound slot busy")
	ErrNotInitialised = errors.New("comms not initialised")
)

// Link is the peripheral driver the transport runs on
type Link interface {
	Configure(cfg link.Config)
	EnableTX()
	DisableTX()
	EnableRX()
	DisableRX()
	Data() *core.Register8
	Triggers() (tx, rx dma.TriggerSource)
}

// Channel is one DMA channel
type Channel interface {
	Init(desc *dma.Descriptor) error
	Bind(n dma.Notifier)
	Arm(n uint16) error
	Disarm()
	Busy() bool
	Transferred() uint16
	Completed() []byte

	// Finished reports a completed transfer whose interrupt has not run yet
	Finished() bool
}

// Channels are the DMA channels of one link. The link only shifts bytes in
// while bytes are shifted out, so a listen window needs a Clock channel
// feeding idle bytes to the data register. Clock is nil when the RX channel
// clocks its own reads.
type Channels struct {
	TX, RX Channel
	Clock  Channel
}

// Config holds the transport settings. All of it is fixed at Init.
type Config struct {
	Link          link.Config
	Codec         protocol.Codec
	Priority      core.Priority // DMA completion interrupts
	ErrorPriority core.Priority // DMA error interrupts

	// StallTimeout disarms a transfer that has not finished after this
	// many ticks. Zero disables it.
	StallTimeout uint32

	// DoubleBuffer receives into two alternating buffers
	DoubleBuffer bool

	// InitialSeq is the sequence number of the first outbound frame
	InitialSeq uint8
}

// DefaultConfig returns the controller board's link settings
func DefaultConfig() Config {
	return Config{
		Link: link.Config{
			Instance: link.USARTC0,
			Mode:     link.Mode0,
			Order:    link.MSBFirst,
			Baud:     2_000_000,
		},
		Priority:      core.PriorityHigh,
		ErrorPriority: core.PriorityMedium,
	}
}

// direction is one half of the link. It receives the DMA interrupts of
// its channel.
type direction struct {
	slot
	ch      Channel
	id      uint8
	since   uint32 // tick the transfer was armed or first saw data
	started bool
	c       *Comms
}

// TransferComplete runs in interrupt context
func (d *direction) TransferComplete() {
	if d.id == dirRX && d.c.cfg.DoubleBuffer && d.c.tx.load() != Pending {
		// Keep the other half fed; a waiting send gets the link instead
		d.c.armClock()
	}
	if d.swap(Armed, Complete) {
		return
	}
	d.c.overruns.Add(1)
	core.RecordLinkEvent(core.EvtOverrun, d.id, 0)
}

// TransferError runs in interrupt context. The message is dropped.
func (d *direction) TransferError() {
	if d.id == dirRX {
		d.c.stopClock()
	}
	d.swap(Armed, Idle)
	d.c.transferErrors.Add(1)
	core.RecordLinkEvent(core.EvtDMAError, d.id, 0)
}

const (
	dirTX = 0
	dirRX = 1
)

// Comms is the transport for one link. It owns its DMA buffers; create one
// per link at startup and keep it for the life of the firmware.
type Comms struct {
	link  Link
	cfg   Config
	tx    direction
	rx    direction
	clock Channel
	ready bool

	txBuf [protocol.FrameBufferSize]byte
	rxBuf [2][protocol.FrameBufferSize]byte
	idle  [protocol.FrameBufferSize]byte // all zero: a TypeNone header
	txLen uint16

	inbound protocol.Message
	seq     uint8
	lastSeq uint8
	haveSeq bool

	sent     uint32
	received uint32
	framing  uint32
	stalls   uint32
	gaps     uint32

	transferErrors atomic.Uint32
	overruns       atomic.Uint32
}

// New creates the transport. Nothing touches hardware until Init.
func New(l Link, ch Channels, cfg Config) *Comms {
	c := &Comms{link: l, cfg: cfg, clock: ch.Clock}
	c.tx = direction{ch: ch.TX, id: dirTX, c: c}
	c.rx = direction{ch: ch.RX, id: dirRX, c: c}
	return c
}

// Init resets both slots and the counters, configures the link and both
// DMA channels. No transfer is armed.
func (c *Comms) Init() error {
	c.ready = false
	c.tx.ch.Disarm()
	c.rx.ch.Disarm()
	c.stopClock()
	c.tx.store(Idle)
	c.rx.store(Idle)
	c.tx.started, c.rx.started = false, false

	c.sent, c.received, c.framing, c.stalls, c.gaps = 0, 0, 0, 0, 0
	c.transferErrors.Store(0)
	c.overruns.Store(0)
	c.seq = c.cfg.InitialSeq
	c.haveSeq = false
	c.inbound.Reset()

	c.link.Configure(c.cfg.Link)
	txTrigger, rxTrigger := c.link.Triggers()

	txDesc := dma.Descriptor{
		RepeatCount:   1,
		Length:        protocol.FrameBufferSize,
		Burst:         dma.Burst1,
		Trigger:       txTrigger,
		Priority:      c.cfg.Priority,
		ErrorPriority: c.cfg.ErrorPriority,
		Source: dma.Endpoint{
			Buffer:    c.txBuf[:],
			Direction: dma.AddressIncrement,
			Reload:    dma.ReloadTransaction,
		},
		Destination: dma.Endpoint{
			Register:  c.link.Data(),
			Direction: dma.AddressFixed,
		},
	}
	if err := c.tx.ch.Init(&txDesc); err != nil {
		return err
	}

	rxDesc := dma.Descriptor{
		RepeatCount:   1,
		Length:        protocol.FrameBufferSize,
		Burst:         dma.Burst1,
		Trigger:       rxTrigger,
		DoubleBuffer:  c.cfg.DoubleBuffer,
		Priority:      c.cfg.Priority,
		ErrorPriority: c.cfg.ErrorPriority,
		Source: dma.Endpoint{
			Register:  c.link.Data(),
			Direction: dma.AddressFixed,
		},
		Destination: dma.Endpoint{
			Buffer:    c.rxBuf[0][:],
			Direction: dma.AddressIncrement,
			Reload:    dma.ReloadTransaction,
		},
	}
	if c.cfg.DoubleBuffer {
		rxDesc.Alternate = c.rxBuf[1][:]
	}
	if err := c.rx.ch.Init(&rxDesc); err != nil {
		return err
	}

	if c.clock != nil {
		clockDesc := dma.Descriptor{
			RepeatCount:   1,
			Length:        protocol.FrameBufferSize,
			Burst:         dma.Burst1,
			Trigger:       txTrigger,
			Priority:      core.PriorityOff,
			ErrorPriority: core.PriorityOff,
			Source: dma.Endpoint{
				Buffer:    c.idle[:],
				Direction: dma.AddressIncrement,
				Reload:    dma.ReloadTransaction,
			},
			Destination: dma.Endpoint{
				Register:  c.link.Data(),
				Direction: dma.AddressFixed,
			},
		}
		if err := c.clock.Init(&clockDesc); err != nil {
			return err
		}
	}

	c.tx.ch.Bind(&c.tx)
	c.rx.ch.Bind(&c.rx)
	c.ready = true
	return nil
}

// SendMessage encodes m into the transmit buffer and starts sending it.
// It stamps m with the outbound sequence number. Returns ErrLinkBusy while
// the previous message is still in the outbound slot; retry on a later pass.
func (c *Comms) SendMessage(m *protocol.Message) error {
	if !c.ready {
		return ErrNotInitialised
	}
	if c.tx.load() != Idle {
		return ErrLinkBusy
	}
	if m.Header.Type == protocol.TypeNone {
		// On the wire that is idle fill
		return protocol.ErrMessageType
	}

	prev := m.Header.Seq
	m.Header.Seq = c.seq
	n, err := c.cfg.Codec.EncodeInto(c.txBuf[:], m)
	if err != nil {
		m.Header.Seq = prev
		return err
	}
	c.seq++
	c.txLen = uint16(n)
	c.tx.store(Pending)
	c.startTX()
	return nil
}

// startTX arms the pending frame once the link is free. A listen window that
// has not seen data is given up; one that is receiving is left to finish.
func (c *Comms) startTX() {
	state := core.DisableInterrupts()
	receiving := c.rx.ch.Transferred() > 0 && (c.rx.load() == Armed || c.rx.ch.Busy())
	if receiving {
		core.RestoreInterrupts(state)
		return
	}
	if c.rx.ch.Busy() {
		c.rx.ch.Disarm()
	}
	c.stopClock()
	c.rx.swap(Armed, Idle)
	core.RestoreInterrupts(state)

	c.link.DisableRX()
	c.link.EnableTX()

	c.tx.since = core.GetTime()
	c.tx.store(Armed)
	if err := c.tx.ch.Arm(c.txLen); err != nil {
		c.tx.store(Idle)
		c.transferErrors.Add(1)
		core.RecordLinkEvent(core.EvtDMAError, dirTX, 0)
		return
	}
	core.RecordLinkEvent(core.EvtTxArm, dirTX, uint32(c.txLen))
}

// Update advances both directions. Call once per scheduler pass; never from
// an interrupt. Outbound is handled before inbound.
func (c *Comms) Update() {
	if !c.ready {
		return
	}
	c.updateTX()
	c.updateRX()
	c.listen()
}

func (c *Comms) updateTX() {
	switch c.tx.load() {
	case Pending:
		c.startTX()
	case Complete:
		c.tx.store(Idle)
		c.sent++
		core.RecordLinkEvent(core.EvtTxDone, dirTX, c.sent)
	case Armed:
		if c.cfg.StallTimeout != 0 && core.Elapsed(c.tx.since) >= c.cfg.StallTimeout {
			c.abort(&c.tx)
		}
	}
}

func (c *Comms) updateRX() {
	switch c.rx.load() {
	case Complete:
		buf := c.rx.ch.Completed()
		if len(buf) > 0 && protocol.MessageType(buf[protocol.HeaderPositionType]) == protocol.TypeNone {
			// Idle fill: the peer had nothing to say this window
			c.rx.store(Idle)
			return
		}
		if err := c.cfg.Codec.DecodeFrom(buf, len(buf), &c.inbound); err != nil {
			c.rx.store(Idle)
			c.framing++
			core.RecordLinkEvent(core.EvtFrameError, dirRX, uint32(len(buf)))
			return
		}
		seq := c.inbound.Header.Seq
		if c.haveSeq && seq != c.lastSeq+1 {
			c.gaps++
			core.RecordLinkEvent(core.EvtSequenceGap, dirRX, uint32(seq))
		}
		c.lastSeq, c.haveSeq = seq, true
		c.received++
		c.rx.store(Delivered)
		core.RecordLinkEvent(core.EvtRxDone, dirRX, uint32(c.inbound.Header.DataSize))
	case Armed:
		if c.cfg.StallTimeout == 0 {
			return
		}
		// An empty listen window never stalls; a frame in progress can
		if !c.rx.started {
			if c.rx.ch.Transferred() > 0 {
				c.rx.started = true
				c.rx.since = core.GetTime()
			}
			return
		}
		if core.Elapsed(c.rx.since) >= c.cfg.StallTimeout {
			c.abort(&c.rx)
		}
	}
}

// abort gives up a transfer that did not finish in time
func (c *Comms) abort(d *direction) {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	if d.ch.Finished() {
		// Done just now; the completion interrupt is on its way
		return
	}
	if !d.swap(Armed, Idle) {
		return
	}
	d.ch.Disarm()
	if d.id == dirRX {
		c.stopClock()
	}
	c.stalls++
	core.RecordLinkEvent(core.EvtStall, d.id, core.Elapsed(d.since))
}

// listen arms the receiver whenever the inbound slot is free and the
// transmitter does not need the link. The window is a poll: the clock
// shifts a full buffer and a peer with nothing to send answers with zeros.
func (c *Comms) listen() {
	if c.rx.load() != Idle {
		return
	}
	switch c.tx.load() {
	case Pending, Armed:
		return
	}

	c.link.EnableRX()
	c.rx.started = false
	c.rx.store(Armed)
	if c.rx.ch.Busy() {
		// Double buffering keeps the other half listening
		return
	}
	err := c.rx.ch.Arm(protocol.FrameBufferSize)
	if err == nil {
		err = c.armClock()
	}
	if err != nil {
		c.rx.ch.Disarm()
		c.rx.store(Idle)
		c.transferErrors.Add(1)
		core.RecordLinkEvent(core.EvtDMAError, dirRX, 0)
		return
	}
	core.RecordLinkEvent(core.EvtRxArm, dirRX, protocol.FrameBufferSize)
}

// armClock starts shifting one buffer of idle bytes out so the peer's
// bytes shift in. Also called from the RX completion interrupt.
func (c *Comms) armClock() error {
	if c.clock == nil {
		return nil
	}
	c.clock.Disarm()
	return c.clock.Arm(protocol.FrameBufferSize)
}

func (c *Comms) stopClock() {
	if c.clock != nil {
		c.clock.Disarm()
	}
}

// ReceiveMessage copies the delivered inbound message into out and frees
// the inbound slot. Returns false if nothing has been delivered.
func (c *Comms) ReceiveMessage(out *protocol.Message) bool {
	if c.rx.load() != Delivered {
		return false
	}
	*out = c.inbound
	c.rx.store(Idle)
	c.listen()
	return true
}

// State returns the outbound and inbound slot states
func (c *Comms) State() (tx, rx SlotState) {
	return c.tx.load(), c.rx.load()
}

// Stats returns a snapshot of the counters
func (c *Comms) Stats() Stats {
	return Stats{
		Sent:           c.sent,
		Received:       c.received,
		FramingErrors:  c.framing,
		TransferErrors: c.transferErrors.Load(),
		Overruns:       c.overruns.Load(),
		Stalls:         c.stalls,
		SequenceGaps:   c.gaps,
	}
}

// Config returns the configuration the transport was created with
func (c *Comms) Config() Config {
	return c.cfg
}
