// Package link drives an XMEGA USART as a master SPI link to a peripheral
// board. Configure leaves the receiver off and the transmitter on; traffic
// only moves when a DMA channel bound to Data is armed.
package link

import (
	"muffin/core"
	"muffin/dma"
)

// Instance identifies a USART on the chip
type Instance uint8

const (
	USARTC0 Instance = iota
	USARTC1
	USARTD0
	USARTD1
	USARTE0
	NumInstances
)

var instanceNames = [NumInstances]string{"USARTC0", "USARTC1", "USARTD0", "USARTD1", "USARTE0"}

func (i Instance) String() string {
	if i >= NumInstances {
		return "USART?"
	}
	return instanceNames[i]
}

// Valid reports whether i names a USART that exists
func (i Instance) Valid() bool {
	return i < NumInstances
}

// second reports whether the instance is the USART1 of its port. Those are
// always on the upper pins.
func (i Instance) second() bool {
	return i == USARTC1 || i == USARTD1
}

// powerMask returns the instance's bit in its port's power reduction register
func (i Instance) powerMask() uint8 {
	if i.second() {
		return POWER_USART1_bm
	}
	return POWER_USART0_bm
}

// PortIndex returns the instance's I/O port: 0 for PORTC, 1 for PORTD,
// 2 for PORTE
func (i Instance) PortIndex() int {
	switch i {
	case USARTC0, USARTC1:
		return 0
	case USARTD0, USARTD1:
		return 1
	}
	return 2
}

// DMA trigger sources (receive complete, data register empty)
var triggers = [NumInstances][2]dma.TriggerSource{
	USARTC0: {0x4B, 0x4C},
	USARTC1: {0x4E, 0x4F},
	USARTD0: {0x6B, 0x6C},
	USARTD1: {0x6E, 0x6F},
	USARTE0: {0x8B, 0x8C},
}

// SPIMode is the clock polarity/phase mode
type SPIMode uint8

const (
	Mode0 SPIMode = iota
	Mode1
	Mode2
	Mode3
)

// BitOrder selects which bit is shifted first
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// Config is the fixed link configuration
type Config struct {
	Instance Instance
	Mode     SPIMode
	Order    BitOrder
	Baud     uint32
}

// ClockSource reports the CPU clock in Hz as it is actually running
type ClockSource func() uint32

// Hardware is the register set one link touches
type Hardware struct {
	USART          *Registers
	Port           *Port
	PowerReduction *core.Register8 // PRPC, PRPD or PRPE for the USART's port
}

// Driver is a USART in master SPI mode
type Driver struct {
	hw    Hardware
	clock ClockSource
	cfg   Config
}

// New creates a driver for the given hardware. clock is queried on every
// Configure, so the CPU clock must be final by then.
func New(hw Hardware, clock ClockSource) *Driver {
	return &Driver{hw: hw, clock: clock}
}

// BaudDivisor returns the BSEL value for baud at clock clk:
// floor(clk/(2*baud)) - 1. Rates at or above clk/2 clamp to the fastest
// divisor 0, rates too slow for 12 bits clamp to the slowest.
func BaudDivisor(clk, baud uint32) uint16 {
	if baud == 0 {
		return MaxDivisor
	}
	if baud >= clk/2 {
		return 0
	}
	div := clk/(2*baud) - 1
	if div > MaxDivisor {
		return MaxDivisor
	}
	return uint16(div)
}

// Configure puts the USART into master SPI mode with the transmitter
// enabled and the receiver disabled. Out of range mode or order values are
// masked to their valid bits.
func (d *Driver) Configure(cfg Config) {
	d.cfg = cfg
	u := d.hw.USART

	d.hw.PowerReduction.ClearBits(cfg.Instance.powerMask())

	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	u.CTRLB.ClearBits(CTRLB_RXEN)
	d.configurePins(cfg)

	u.CTRLC.ReplaceBits(CTRLC_CMODE_MSPI, CTRLC_CMODE_gm, 0)
	if cfg.Mode&1 != 0 {
		u.CTRLC.SetBits(CTRLC_UCPHA)
	} else {
		u.CTRLC.ClearBits(CTRLC_UCPHA)
	}
	if cfg.Order == LSBFirst {
		u.CTRLC.SetBits(CTRLC_UDORD)
	} else {
		u.CTRLC.ClearBits(CTRLC_UDORD)
	}

	// Master SPI has no double speed; BSCALE stays zero
	div := BaudDivisor(d.clock(), cfg.Baud)
	u.BAUDCTRLB.Set(uint8(div>>8) &^ BAUDCTRLB_BSCALE_gm)
	u.BAUDCTRLA.Set(uint8(div))

	u.CTRLB.SetBits(CTRLB_TXEN)
}

// Remapped reports whether the link uses the upper pins (SCK 5, RX 6, TX 7)
func (d *Driver) Remapped() bool {
	if d.cfg.Instance.second() {
		return true
	}
	return d.hw.Port.REMAP.HasBits(REMAP_USART0)
}

// configurePins sets up SCK, RX and TX. SCK idles high; modes 2 and 3
// invert it.
func (d *Driver) configurePins(cfg Config) {
	sck, rx, tx := uint8(pinSCK), uint8(pinRX), uint8(pinTX)
	if d.Remapped() {
		sck += pinRemapped
		rx += pinRemapped
		tx += pinRemapped
	}

	p := d.hw.Port
	pinctrl := uint8(PINCTRL_TOTEM)
	if cfg.Mode >= Mode2 && cfg.Mode <= Mode3 {
		pinctrl |= PINCTRL_INVEN
	}
	p.PINCTRL[sck].Set(pinctrl)

	p.DIR.SetBits(1<<sck | 1<<tx)
	p.DIR.ClearBits(1 << rx)
	p.OUT.SetBits(1 << sck)
}

func (d *Driver) EnableTX() {
	state := core.DisableInterrupts()
	d.hw.USART.CTRLB.SetBits(CTRLB_TXEN)
	core.RestoreInterrupts(state)
}

func (d *Driver) DisableTX() {
	state := core.DisableInterrupts()
	d.hw.USART.CTRLB.ClearBits(CTRLB_TXEN)
	core.RestoreInterrupts(state)
}

func (d *Driver) EnableRX() {
	state := core.DisableInterrupts()
	d.hw.USART.CTRLB.SetBits(CTRLB_RXEN)
	core.RestoreInterrupts(state)
}

func (d *Driver) DisableRX() {
	state := core.DisableInterrupts()
	d.hw.USART.CTRLB.ClearBits(CTRLB_RXEN)
	core.RestoreInterrupts(state)
}

// Data returns the USART data register for DMA binding
func (d *Driver) Data() *core.Register8 {
	return &d.hw.USART.DATA
}

// Triggers returns the DMA trigger sources for transmit (data register
// empty) and receive (receive complete).
func (d *Driver) Triggers() (tx, rx dma.TriggerSource) {
	return TriggersFor(d.cfg.Instance)
}

// TriggersFor returns the transmit and receive DMA trigger sources of i
func TriggersFor(i Instance) (tx, rx dma.TriggerSource) {
	t := triggers[i%NumInstances]
	return t[1], t[0]
}

// Config returns the configuration last applied
func (d *Driver) Config() Config {
	return d.cfg
}
