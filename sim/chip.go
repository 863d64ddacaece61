//go:build !tinygo

// Package sim runs the link firmware on a host. It holds the XMEGA register
// blocks the firmware touches in ordinary memory and moves bytes for armed
// DMA channels the way the hardware would, so the transport can be tested
// without a board.
package sim

import (
	"muffin/dma"
	"muffin/link"
)

// DefaultClock is the CPU clock the controller board runs at
const DefaultClock = 32_000_000

// Chip is the simulated register file
type Chip struct {
	DMA   dma.ControllerRegisters
	USART [link.NumInstances]link.Registers
	Port  [3]link.Port // PORTC, PORTD, PORTE
	Power link.PowerReduction

	clock uint32
}

// NewChip creates a chip running at hz with every peripheral powered down,
// as after reset.
func NewChip(hz uint32) *Chip {
	c := &Chip{clock: hz}
	c.Power.PRPC.Set(0x7F)
	c.Power.PRPD.Set(0x7F)
	c.Power.PRPE.Set(0x7F)
	return c
}

// Clock returns the CPU clock in Hz. Usable as a link.ClockSource.
func (c *Chip) Clock() uint32 {
	return c.clock
}

// SetClock changes the CPU clock
func (c *Chip) SetClock(hz uint32) {
	c.clock = hz
}

// Hardware returns the register set of one USART link
func (c *Chip) Hardware(i link.Instance) link.Hardware {
	return link.Hardware{
		USART:          &c.USART[i],
		Port:           &c.Port[i.PortIndex()],
		PowerReduction: c.Power.For(i),
	}
}
