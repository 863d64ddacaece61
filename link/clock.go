package link

import "muffin/core"

// ClockRegisters is the XMEGA CLK block
type ClockRegisters struct {
	CTRL    core.Register8
	PSCTRL  core.Register8
	LOCK    core.Register8
	RTCCTRL core.Register8
	USBCTRL core.Register8
}

// OscillatorRegisters is the XMEGA OSC block
type OscillatorRegisters struct {
	CTRL     core.Register8
	STATUS   core.Register8
	XOSCCTRL core.Register8
	XOSCFAIL core.Register8
	RC32KCAL core.Register8
	PLLCTRL  core.Register8
	DFLLCTRL core.Register8
}

const (
	CLK_SCLKSEL_gm = 0x07
	CLK_PSADIV_gm  = 0x7C
	CLK_PSADIV_gp  = 2
	CLK_PSBCDIV_gm = 0x03
	OSC_PLLSRC_gm  = 0xC0
	OSC_PLLSRC_gp  = 6
	OSC_PLLFAC_gm  = 0x1F
)

// System clock sources (CLK.CTRL SCLKSEL)
const (
	SCLKSEL_RC2M  = 0
	SCLKSEL_RC32M = 1
	SCLKSEL_RC32K = 2
	SCLKSEL_XOSC  = 3
	SCLKSEL_PLL   = 4
)

// PLL inputs (OSC.PLLCTRL PLLSRC)
const (
	PLLSRC_RC2M  = 0
	PLLSRC_RC32M = 2 // divided by 4 ahead of the PLL
	PLLSRC_XOSC  = 3
)

const (
	rc2MHz  = 2_000_000
	rc32MHz = 32_000_000
	rc32kHz = 32_768
)

// Clock reads back the running peripheral clock from the CLK and OSC
// blocks. External is the crystal or clock input frequency, 0 if none.
type Clock struct {
	CLK      *ClockRegisters
	OSC      *OscillatorRegisters
	External uint32
}

// Frequency returns clkPER in Hz, the clock the USART baud generator runs
// from. Usable as a ClockSource.
func (c *Clock) Frequency() uint32 {
	return PeripheralClock(c.CLK.CTRL.Get(), c.CLK.PSCTRL.Get(), c.OSC.PLLCTRL.Get(), c.External)
}

// PeripheralClock computes clkPER from raw CLK.CTRL, CLK.PSCTRL and
// OSC.PLLCTRL values. Reserved encodings give 0.
func PeripheralClock(ctrl, psctrl, pllctrl uint8, external uint32) uint32 {
	var sys uint32
	switch ctrl & CLK_SCLKSEL_gm {
	case SCLKSEL_RC2M:
		sys = rc2MHz
	case SCLKSEL_RC32M:
		sys = rc32MHz
	case SCLKSEL_RC32K:
		sys = rc32kHz
	case SCLKSEL_XOSC:
		sys = external
	case SCLKSEL_PLL:
		sys = pllOutput(pllctrl, external)
	default:
		return 0
	}

	a, ok := prescalerA((psctrl & CLK_PSADIV_gm) >> CLK_PSADIV_gp)
	if !ok {
		return 0
	}
	b, cdiv := prescalerBC(psctrl & CLK_PSBCDIV_gm)
	return sys / a / b / cdiv
}

func pllOutput(pllctrl uint8, external uint32) uint32 {
	var in uint32
	switch (pllctrl & OSC_PLLSRC_gm) >> OSC_PLLSRC_gp {
	case PLLSRC_RC2M:
		in = rc2MHz
	case PLLSRC_RC32M:
		in = rc32MHz / 4
	case PLLSRC_XOSC:
		in = external
	default:
		return 0
	}
	return in * uint32(pllctrl&OSC_PLLFAC_gm)
}

// prescalerA decodes PSADIV: 0 is divide by one, odd values 1..17 are
// divide by 2..512.
func prescalerA(v uint8) (uint32, bool) {
	if v == 0 {
		return 1, true
	}
	if v%2 == 0 || v > 17 {
		return 0, false
	}
	return 1 << ((v + 1) / 2), true
}

func prescalerBC(v uint8) (b, c uint32) {
	switch v {
	case 1:
		return 1, 2
	case 2:
		return 4, 1
	case 3:
		return 2, 2
	}
	return 1, 1
}
