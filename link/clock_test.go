package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeripheralClock(t *testing.T) {
	tests := []struct {
		name                  string
		ctrl, psctrl, pllctrl uint8
		external              uint32
		want                  uint32
	}{
		{"reset default", SCLKSEL_RC2M, 0, 0, 0, 2_000_000},
		{"rc32m", SCLKSEL_RC32M, 0, 0, 0, 32_000_000},
		{"rc32k", SCLKSEL_RC32K, 0, 0, 0, 32_768},
		{"rc32m div2", SCLKSEL_RC32M, 1 << CLK_PSADIV_gp, 0, 0, 16_000_000},
		{"rc32m div512", SCLKSEL_RC32M, 17 << CLK_PSADIV_gp, 0, 0, 62_500},
		{"rc32m B1C2", SCLKSEL_RC32M, 1, 0, 0, 16_000_000},
		{"rc32m B4C1", SCLKSEL_RC32M, 2, 0, 0, 8_000_000},
		{"rc32m B2C2", SCLKSEL_RC32M, 3, 0, 0, 8_000_000},
		{"pll rc2m x16", SCLKSEL_PLL, 0, PLLSRC_RC2M<<OSC_PLLSRC_gp | 16, 0, 32_000_000},
		{"pll rc32m/4 x4", SCLKSEL_PLL, 0, PLLSRC_RC32M<<OSC_PLLSRC_gp | 4, 0, 32_000_000},
		{"pll xosc x2", SCLKSEL_PLL, 0, PLLSRC_XOSC<<OSC_PLLSRC_gp | 2, 16_000_000, 32_000_000},
		{"xosc", SCLKSEL_XOSC, 0, 0, 12_000_000, 12_000_000},
		{"pll factor zero", SCLKSEL_PLL, 0, 0, 0, 0},
		{"reserved pll source", SCLKSEL_PLL, 0, 1<<OSC_PLLSRC_gp | 4, 0, 0},
		{"reserved sclksel", 7, 0, 0, 0, 0},
		{"reserved psadiv", SCLKSEL_RC32M, 2 << CLK_PSADIV_gp, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeripheralClock(tt.ctrl, tt.psctrl, tt.pllctrl, tt.external))
		})
	}
}

func TestClockFrequencyDrivesBaud(t *testing.T) {
	var clk ClockRegisters
	var osc OscillatorRegisters
	c := &Clock{CLK: &clk, OSC: &osc}

	assert.Equal(t, uint32(2_000_000), c.Frequency())

	clk.CTRL.Set(SCLKSEL_RC32M)
	assert.Equal(t, uint16(7), BaudDivisor(c.Frequency(), 2_000_000))
}
