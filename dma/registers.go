package dma

import "muffin/core"

// ControllerRegisters is the XMEGA DMA controller block
type ControllerRegisters struct {
	CTRL     core.Register8
	_        core.Register8
	_        core.Register8
	INTFLAGS core.Register8
	STATUS   core.Register8
	_        core.Register8
	TEMPL    core.Register8
	TEMPH    core.Register8
	_        [8]core.Register8
	CH       [NumChannels]ChannelRegisters
}

// ChannelRegisters is one XMEGA DMA channel block
type ChannelRegisters struct {
	CTRLA     core.Register8
	CTRLB     core.Register8
	ADDRCTRL  core.Register8
	TRIGSRC   core.Register8
	TRFCNTL   core.Register8
	TRFCNTH   core.Register8
	REPCNT    core.Register8
	_         core.Register8
	SRCADDR0  core.Register8
	SRCADDR1  core.Register8
	SRCADDR2  core.Register8
	_         core.Register8
	DESTADDR0 core.Register8
	DESTADDR1 core.Register8
	DESTADDR2 core.Register8
	_         core.Register8
}

// NumChannels is the number of DMA channels on the controller
const NumChannels = 4

// Controller CTRL bits
const (
	CTRL_ENABLE      = 0x80
	CTRL_RESET       = 0x40
	CTRL_DBUFMODE_gm = 0x0C
	CTRL_DBUFMODE_01 = 0x04 // channels 0 and 1 paired
	CTRL_DBUFMODE_23 = 0x08 // channels 2 and 3 paired
)

// Channel CTRLA bits
const (
	CTRLA_ENABLE      = 0x80
	CTRLA_RESET       = 0x40
	CTRLA_REPEAT      = 0x20
	CTRLA_TRFREQ      = 0x10
	CTRLA_SINGLE      = 0x04
	CTRLA_BURSTLEN_gm = 0x03
)

// Channel CTRLB bits
const (
	CTRLB_CHBUSY       = 0x80
	CTRLB_CHPEND       = 0x40
	CTRLB_ERRIF        = 0x20
	CTRLB_TRNIF        = 0x10
	CTRLB_ERRINTLVL_gm = 0x0C
	CTRLB_ERRINTLVL_gp = 2
	CTRLB_TRNINTLVL_gm = 0x03
)

// Channel ADDRCTRL field positions
const (
	ADDRCTRL_SRCRELOAD_gp  = 6
	ADDRCTRL_SRCDIR_gp     = 4
	ADDRCTRL_DESTRELOAD_gp = 2
	ADDRCTRL_DESTDIR_gp    = 0
)

// Count returns the remaining transfer count
func (r *ChannelRegisters) Count() uint16 {
	return uint16(r.TRFCNTL.Get()) | uint16(r.TRFCNTH.Get())<<8
}

// SetCount writes the transfer count
func (r *ChannelRegisters) SetCount(n uint16) {
	r.TRFCNTL.Set(uint8(n))
	r.TRFCNTH.Set(uint8(n >> 8))
}

// Source returns the 24-bit source address
func (r *ChannelRegisters) Source() uintptr {
	return uintptr(r.SRCADDR0.Get()) | uintptr(r.SRCADDR1.Get())<<8 | uintptr(r.SRCADDR2.Get())<<16
}

// SetSource writes the 24-bit source address
func (r *ChannelRegisters) SetSource(addr uintptr) {
	r.SRCADDR0.Set(uint8(addr))
	r.SRCADDR1.Set(uint8(addr >> 8))
	r.SRCADDR2.Set(uint8(addr >> 16))
}

// Destination returns the 24-bit destination address
func (r *ChannelRegisters) Destination() uintptr {
	return uintptr(r.DESTADDR0.Get()) | uintptr(r.DESTADDR1.Get())<<8 | uintptr(r.DESTADDR2.Get())<<16
}

// SetDestination writes the 24-bit destination address
func (r *ChannelRegisters) SetDestination(addr uintptr) {
	r.DESTADDR0.Set(uint8(addr))
	r.DESTADDR1.Set(uint8(addr >> 8))
	r.DESTADDR2.Set(uint8(addr >> 16))
}
