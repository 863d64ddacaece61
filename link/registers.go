package link

import "muffin/core"

// Registers is an XMEGA USART block
type Registers struct {
	DATA      core.Register8
	STATUS    core.Register8
	_         core.Register8
	CTRLA     core.Register8
	CTRLB     core.Register8
	CTRLC     core.Register8
	BAUDCTRLA core.Register8
	BAUDCTRLB core.Register8
}

// Port is an XMEGA I/O port block
type Port struct {
	DIR      core.Register8
	DIRSET   core.Register8
	DIRCLR   core.Register8
	DIRTGL   core.Register8
	OUT      core.Register8
	OUTSET   core.Register8
	OUTCLR   core.Register8
	OUTTGL   core.Register8
	IN       core.Register8
	INTCTRL  core.Register8
	INT0MASK core.Register8
	INT1MASK core.Register8
	INTFLAGS core.Register8
	_        core.Register8
	REMAP    core.Register8
	_        core.Register8
	PINCTRL  [8]core.Register8
}

// USART CTRLB bits
const (
	CTRLB_RXEN = 0x10
	CTRLB_TXEN = 0x08
)

// USART CTRLC bits (master SPI layout)
const (
	CTRLC_CMODE_gm   = 0xC0
	CTRLC_CMODE_MSPI = 0xC0
	CTRLC_UDORD      = 0x04
	CTRLC_UCPHA      = 0x02
)

// USART STATUS bits
const (
	STATUS_RXCIF = 0x80
	STATUS_TXCIF = 0x40
	STATUS_DREIF = 0x20
)

const (
	BAUDCTRLB_BSCALE_gm = 0xF0

	// MaxDivisor is the largest 12-bit BSEL value
	MaxDivisor = 0x0FFF
)

// PORT bits
const (
	REMAP_USART0    = 0x10
	PINCTRL_INVEN   = 0x40
	PINCTRL_OPC_gm  = 0x38
	PINCTRL_TOTEM   = 0x00
	POWER_USART0_bm = 0x10
	POWER_USART1_bm = 0x20
)

// Pin numbers within the port
const (
	pinSCK      = 1
	pinRX       = 2
	pinTX       = 3
	pinRemapped = 4 // offset added when the port remaps the USART
)

// PowerReduction is the PR block. Setting a bit stops the peripheral's clock.
type PowerReduction struct {
	PRGEN core.Register8
	PRPA  core.Register8
	_     core.Register8
	PRPC  core.Register8
	PRPD  core.Register8
	PRPE  core.Register8
	PRPF  core.Register8
}

// For returns the register gating the given USART's port
func (p *PowerReduction) For(i Instance) *core.Register8 {
	switch i.PortIndex() {
	case 0:
		return &p.PRPC
	case 1:
		return &p.PRPD
	}
	return &p.PRPE
}
