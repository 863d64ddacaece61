//go:build !tinygo

package sim

import (
	"muffin/core"
	"muffin/dma"
	"muffin/link"
)

// Peer is the device on the far end of a link. Every byte the master
// shifts out shifts one back in, so the peer only speaks when clocked.
type Peer interface {
	// Select marks the start of a master transfer
	Select()
	// Receive takes a byte clocked out by the master
	Receive(b byte)
	// Transmit returns the byte shifted back for the one just received,
	// zero when the peer has nothing to say
	Transmit() byte
}

type attachment struct {
	inst link.Instance
	peer Peer
}

// DefaultBytesPerStep is how many bytes each channel moves per Step
const DefaultBytesPerStep = 8

// Engine is the DMA engine of a Chip. Interrupts are delivered to the
// controller only while the simulated interrupt flag is set; otherwise they
// stay pending until a later Step.
type Engine struct {
	chip  *Chip
	ctrl  *dma.Controller
	peers []attachment

	// BytesPerStep limits the bytes each channel moves per Step
	BytesPerStep int

	pending   [dma.NumChannels]bool
	failNext  [dma.NumChannels]bool
	running   [dma.NumChannels]bool
	fresh     [dma.NumChannels]bool
	remaining [dma.NumChannels]uint16
	latched   [link.NumInstances]bool
	moved     uint64
}

// NewEngine creates an engine that raises interrupts on ctrl
func NewEngine(chip *Chip, ctrl *dma.Controller) *Engine {
	return &Engine{
		chip:         chip,
		ctrl:         ctrl,
		BytesPerStep: DefaultBytesPerStep,
	}
}

// Attach connects a peer to a USART
func (e *Engine) Attach(i link.Instance, p Peer) {
	e.peers = append(e.peers, attachment{inst: i, peer: p})
}

// FailNext makes the next byte moved by channel n fail with a bus error
func (e *Engine) FailNext(n uint8) {
	e.failNext[n] = true
}

// Moved returns the total bytes moved by the engine
func (e *Engine) Moved() uint64 {
	return e.moved
}

// Pending reports whether an interrupt of channel n is waiting for delivery
func (e *Engine) Pending(n uint8) bool {
	return e.pending[n]
}

// Step runs BytesPerStep rounds. Each round gives every enabled channel,
// in channel order, the chance to move one byte; interrupts are delivered
// before and after if they are enabled.
func (e *Engine) Step() {
	e.deliver()
	if e.chip.DMA.CTRL.HasBits(dma.CTRL_ENABLE) {
		for i := 0; i < e.BytesPerStep; i++ {
			for n := uint8(0); n < dma.NumChannels; n++ {
				e.shift(n)
			}
		}
	}
	e.deliver()
}

// Run steps until cond returns true or steps run out; reports cond
func (e *Engine) Run(steps int, cond func() bool) bool {
	for i := 0; i < steps; i++ {
		if cond() {
			return true
		}
		e.Step()
	}
	return cond()
}

func (e *Engine) deliver() {
	if !core.InterruptsEnabled() {
		return
	}
	for n := range e.pending {
		if e.pending[n] {
			e.pending[n] = false
			e.ctrl.HandleInterrupt(uint8(n))
		}
	}
}

// endpoint finds the attachment a trigger source belongs to
func (e *Engine) endpoint(trig dma.TriggerSource) (a attachment, tx bool, ok bool) {
	for _, a := range e.peers {
		txTrig, rxTrig := link.TriggersFor(a.inst)
		switch trig {
		case txTrig:
			return a, true, true
		case rxTrig:
			return a, false, true
		}
	}
	return attachment{}, false, false
}

// shift moves one byte on channel n. A TX-triggered byte goes out to the
// peer and, with the receiver on, latches the peer's answer in DATA. An
// RX-triggered channel only moves a latched byte.
func (e *Engine) shift(n uint8) {
	regs := &e.chip.DMA.CH[n]
	if !regs.CTRLA.HasBits(dma.CTRLA_ENABLE) || regs.Count() == 0 {
		e.running[n] = false
		return
	}
	a, tx, ok := e.endpoint(dma.TriggerSource(regs.TRIGSRC.Get()))
	if !ok {
		return
	}
	if !e.running[n] || regs.Count() > e.remaining[n] {
		// Re-armed since the last byte
		e.running[n] = true
		e.fresh[n] = true
	}
	e.remaining[n] = regs.Count()

	u := &e.chip.USART[a.inst]
	if tx && !u.CTRLB.HasBits(link.CTRLB_TXEN) {
		return
	}
	if !tx && (!u.CTRLB.HasBits(link.CTRLB_RXEN) || !e.latched[a.inst]) {
		return
	}

	if e.failNext[n] {
		e.failNext[n] = false
		e.fail(n, regs)
		return
	}
	src := core.Resolve(regs.Source())
	dst := core.Resolve(regs.Destination())
	if src == nil || dst == nil {
		e.fail(n, regs)
		return
	}

	if tx {
		if e.fresh[n] {
			e.fresh[n] = false
			e.latched[a.inst] = false
			a.peer.Select()
		}
		*dst = *src
		a.peer.Receive(u.DATA.Get())
		if u.CTRLB.HasBits(link.CTRLB_RXEN) {
			u.DATA.Set(a.peer.Transmit())
			e.latched[a.inst] = true
		}
	} else {
		*dst = *src
		e.latched[a.inst] = false
	}
	e.moved++

	addrctrl := regs.ADDRCTRL.Get()
	regs.SetSource(step(regs.Source(), addrctrl>>dma.ADDRCTRL_SRCDIR_gp))
	regs.SetDestination(step(regs.Destination(), addrctrl>>dma.ADDRCTRL_DESTDIR_gp))
	regs.SetCount(regs.Count() - 1)
	e.remaining[n] = regs.Count()

	if regs.Count() == 0 {
		e.complete(n, regs)
	}
}

func step(addr uintptr, mode uint8) uintptr {
	switch dma.AddressMode(mode & 0x03) {
	case dma.AddressIncrement:
		return addr + 1
	case dma.AddressDecrement:
		return addr - 1
	}
	return addr
}

func (e *Engine) complete(n uint8, regs *dma.ChannelRegisters) {
	e.running[n] = false
	regs.CTRLA.ClearBits(dma.CTRLA_ENABLE)
	regs.CTRLB.SetBits(dma.CTRLB_TRNIF)

	// Double buffering hands over to the other channel of the pair
	var pairMode uint8 = dma.CTRL_DBUFMODE_01
	if n >= 2 {
		pairMode = dma.CTRL_DBUFMODE_23
	}
	if e.chip.DMA.CTRL.HasBits(pairMode) {
		partner := &e.chip.DMA.CH[n^1]
		if partner.Count() > 0 {
			partner.CTRLA.SetBits(dma.CTRLA_ENABLE)
		}
	}

	if regs.CTRLB.Get()&dma.CTRLB_TRNINTLVL_gm != 0 {
		e.pending[n] = true
	}
}

func (e *Engine) fail(n uint8, regs *dma.ChannelRegisters) {
	e.running[n] = false
	regs.CTRLA.ClearBits(dma.CTRLA_ENABLE)
	regs.CTRLB.SetBits(dma.CTRLB_ERRIF)
	if regs.CTRLB.Get()&dma.CTRLB_ERRINTLVL_gm != 0 {
		e.pending[n] = true
	}
}
