package dma

import "muffin/core"

// Controller is the DMA controller and its four channels
type Controller struct {
	regs *ControllerRegisters
	ch   [NumChannels]Channel
}

// NewController wraps a DMA register block
func NewController(regs *ControllerRegisters) *Controller {
	c := &Controller{regs: regs}
	for i := range c.ch {
		c.ch[i] = Channel{
			id:   uint8(i),
			regs: &regs.CH[i],
			ctrl: c,
		}
	}
	return c
}

// Enable resets the controller and switches it on. Call once at startup,
// before any channel is initialised.
func (c *Controller) Enable() {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	c.regs.CTRL.Set(0)
	for i := range c.regs.CH {
		c.regs.CH[i].CTRLA.Set(0)
	}
	c.regs.CTRL.Set(CTRL_ENABLE)
}

// Enabled reports whether the controller is switched on
func (c *Controller) Enabled() bool {
	return c.regs.CTRL.HasBits(CTRL_ENABLE)
}

// Channel returns logical channel n
func (c *Controller) Channel(n uint8) *Channel {
	if n >= NumChannels {
		return nil
	}
	return &c.ch[n]
}

func (c *Controller) setDoubleBuffer(owner uint8, on bool) {
	mask := uint8(CTRL_DBUFMODE_01)
	if owner >= 2 {
		mask = CTRL_DBUFMODE_23
	}
	if on {
		c.regs.CTRL.SetBits(mask)
	} else {
		c.regs.CTRL.ClearBits(mask)
	}
}

// HandleInterrupt services the interrupt of physical channel n. Wire it to
// the DMA_CHn vector; an odd channel of a double-buffered pair is routed
// to its owner.
func (c *Controller) HandleInterrupt(n uint8) {
	if n >= NumChannels {
		return
	}
	ch := &c.ch[n]
	if ch.owner != nil {
		ch.owner.interrupt(ch.regs, 1)
		return
	}
	ch.interrupt(ch.regs, 0)
}
