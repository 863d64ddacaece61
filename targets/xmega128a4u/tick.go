//go:build tinygo && avr

package main

import (
	"unsafe"

	"muffin/core"
)

// tcRegisters is the head of an XMEGA timer/counter type 0 block
type tcRegisters struct {
	CTRLA    core.Register8
	CTRLB    core.Register8
	CTRLC    core.Register8
	CTRLD    core.Register8
	CTRLE    core.Register8
	_        core.Register8
	INTCTRLA core.Register8
	INTCTRLB core.Register8
	CTRLFCLR core.Register8
	CTRLFSET core.Register8
	CTRLGCLR core.Register8
	CTRLGSET core.Register8
	INTFLAGS core.Register8
	_        [19]core.Register8
	CNTL     core.Register8
	CNTH     core.Register8
	_        [4]core.Register8
	PERL     core.Register8
	PERH     core.Register8
}

const (
	TC_CLKSEL_DIV64 = 0x05
	TC_OVFINTLVL_LO = 0x01
	PMIC_LOLVLEN    = 0x01
	PMIC_MEDLVLEN   = 0x02
	PMIC_HILVLEN    = 0x04
	pmicCTRL        = addrPMIC + 0x02
)

var (
	tcc0     = (*tcRegisters)(unsafe.Pointer(uintptr(addrTCC0)))
	pmicCtrl = (*core.Register8)(unsafe.Pointer(uintptr(pmicCTRL)))
)

// enableInterruptLevels turns on all three PMIC levels so the DMA
// completion and error levels chosen in the link config are serviced
func enableInterruptLevels() {
	pmicCtrl.Set(PMIC_LOLVLEN | PMIC_MEDLVLEN | PMIC_HILVLEN)
}

// startTick runs TCC0 as the scheduler tick at core.TickRate
func startTick(clkPER uint32) {
	per := clkPER/64/core.TickRate - 1
	state := core.DisableInterrupts()
	tcc0.CTRLA.Set(0)
	tcc0.CNTL.Set(0)
	tcc0.CNTH.Set(0)
	// 16-bit registers take the low byte first
	tcc0.PERL.Set(uint8(per))
	tcc0.PERH.Set(uint8(per >> 8))
	tcc0.INTCTRLA.Set(TC_OVFINTLVL_LO)
	tcc0.CTRLA.Set(TC_CLKSEL_DIV64)
	core.RestoreInterrupts(state)
}
