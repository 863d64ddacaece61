package dma

import "muffin/core"

// Notifier receives a channel's interrupt-time events. Both methods run in
// interrupt context: they must not block, loop or allocate.
type Notifier interface {
	TransferComplete()
	TransferError()
}

// Channel is one logical DMA channel. When double buffered it also drives
// the odd channel of its pair, which is then unavailable on its own.
type Channel struct {
	id   uint8
	regs *ChannelRegisters
	ctrl *Controller

	desc   Descriptor
	bufs   [2][]byte // memory-side buffer per half
	ready  bool
	pair   *Channel // partner driven by this channel
	owner  *Channel // set on a partner, points back at its owner
	notify Notifier

	armed  uint16 // count of the current transfer
	done   uint16 // bytes moved by the last finished transfer
	last   uint8  // half that finished last
	active uint8  // half the hardware works on
	errors uint32
}

// ID returns the physical channel number
func (c *Channel) ID() uint8 {
	return c.id
}

// Bind sets the receiver of completion and error events
func (c *Channel) Bind(n Notifier) {
	state := core.DisableInterrupts()
	c.notify = n
	core.RestoreInterrupts(state)
}

// Init validates desc and programs the channel. No transfer starts until Arm.
func (c *Channel) Init(desc *Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if c.owner != nil || c.Busy() {
		return ErrChannelBusy
	}

	var partner *Channel
	if desc.DoubleBuffer {
		if c.id%2 != 0 {
			return errPairChannel
		}
		partner = &c.ctrl.ch[c.id+1]
		if partner.ready || partner.Busy() || (partner.owner != nil && partner.owner != c) {
			return ErrChannelBusy
		}
	}

	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	if c.pair != nil && c.pair != partner {
		c.pair.owner = nil
	}

	c.desc = *desc
	c.bufs = [2][]byte{}
	if mem := c.desc.memory(); mem != nil {
		c.bufs[0] = mem.Buffer
		c.bufs[1] = desc.Alternate
	}
	c.pair = partner
	c.armed, c.done, c.last, c.active = 0, 0, 0, 0

	c.program(c.regs, 0)
	if partner != nil {
		partner.owner = c
		c.program(partner.regs, 1)
	}
	c.ctrl.setDoubleBuffer(c.id, partner != nil)

	c.ready = true
	return nil
}

// program writes the full channel configuration for one half
func (c *Channel) program(regs *ChannelRegisters, half uint8) {
	regs.CTRLA.Set(c.desc.control())
	regs.CTRLB.Set(c.desc.interruptLevels())
	core.AckFlags(&regs.CTRLB, CTRLB_ERRIF|CTRLB_TRNIF)
	regs.ADDRCTRL.Set(c.desc.addressControl())
	regs.TRIGSRC.Set(uint8(c.desc.Trigger))
	regs.REPCNT.Set(c.desc.RepeatCount)
	c.load(regs, half, c.desc.Length)
}

// load sets the count and start addresses of one half
func (c *Channel) load(regs *ChannelRegisters, half uint8, n uint16) {
	regs.SetCount(n)
	regs.SetSource(c.address(&c.desc.Source, half))
	regs.SetDestination(c.address(&c.desc.Destination, half))
}

func (c *Channel) address(e *Endpoint, half uint8) uintptr {
	if e.isBuffer() {
		return core.BufferAddress(c.bufs[half])
	}
	return core.Address(e.Register)
}

// Arm starts a transfer of n bytes, or the descriptor length when n is 0.
// Ownership of the buffer passes to the DMA engine until the completion
// or error interrupt.
func (c *Channel) Arm(n uint16) error {
	if !c.ready {
		return errNotReady
	}
	if n == 0 {
		n = c.desc.Length
	}
	if c.bufs[0] != nil && int(n) > len(c.bufs[0]) {
		return errLength
	}

	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	c.armed = n
	c.done = 0
	c.active = 0
	c.load(c.regs, 0, n)
	core.AckFlags(&c.regs.CTRLB, CTRLB_ERRIF|CTRLB_TRNIF)
	if c.pair != nil {
		c.load(c.pair.regs, 1, n)
		core.AckFlags(&c.pair.regs.CTRLB, CTRLB_ERRIF|CTRLB_TRNIF)
	}
	c.regs.CTRLA.SetBits(CTRLA_ENABLE)
	return nil
}

// Disarm stops the channel (and its partner). A burst in progress finishes.
func (c *Channel) Disarm() {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	c.done = c.transferred()
	c.regs.CTRLA.ClearBits(CTRLA_ENABLE)
	if c.pair != nil {
		c.pair.regs.CTRLA.ClearBits(CTRLA_ENABLE)
	}
	c.armed = 0
}

// Busy reports whether the channel (or its partner) is enabled or moving data
func (c *Channel) Busy() bool {
	if channelBusy(c.regs) {
		return true
	}
	return c.pair != nil && channelBusy(c.pair.regs)
}

func channelBusy(regs *ChannelRegisters) bool {
	return regs.CTRLA.HasBits(CTRLA_ENABLE) || regs.CTRLB.HasBits(CTRLB_CHBUSY|CTRLB_CHPEND)
}

// Finished reports a completion flag the interrupt handler has not yet
// acknowledged. The transfer is over even though Notifier has not heard.
func (c *Channel) Finished() bool {
	if c.regs.CTRLB.HasBits(CTRLB_TRNIF) {
		return true
	}
	return c.pair != nil && c.pair.regs.CTRLB.HasBits(CTRLB_TRNIF)
}

// Transferred returns the bytes moved so far by the armed transfer. After
// Disarm or an error it returns what the stopped transfer managed.
func (c *Channel) Transferred() uint16 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return c.transferred()
}

func (c *Channel) transferred() uint16 {
	regs := c.regs
	if c.active == 1 && c.pair != nil {
		regs = c.pair.regs
	}
	if c.armed == 0 {
		return c.done
	}
	remaining := regs.Count()
	if remaining > c.armed {
		return 0
	}
	return c.armed - remaining
}

// Completed returns the buffer of the last completed transfer, trimmed to
// the bytes moved. Nil for register-to-register channels.
func (c *Channel) Completed() []byte {
	buf := c.bufs[c.last]
	if buf == nil {
		return nil
	}
	return buf[:c.done]
}

// Errors returns the number of transfer errors seen
func (c *Channel) Errors() uint32 {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)
	return c.errors
}

// interrupt handles the flags of one physical channel of this logical one
func (c *Channel) interrupt(regs *ChannelRegisters, half uint8) {
	flags := regs.CTRLB.Get() & (CTRLB_ERRIF | CTRLB_TRNIF)
	if flags == 0 {
		return
	}
	core.AckFlags(&regs.CTRLB, flags)

	if flags&CTRLB_ERRIF != 0 {
		c.errors++
		if remaining := regs.Count(); remaining <= c.armed {
			c.done = c.armed - remaining
		}
		c.armed = 0
		if c.notify != nil {
			c.notify.TransferError()
		}
		return
	}

	c.last = half
	c.done = c.armed
	if c.pair != nil {
		// The partner now runs; reload this half for its next turn
		c.active = half ^ 1
		c.load(regs, half, c.armed)
	}
	if c.notify != nil {
		c.notify.TransferComplete()
	}
}
