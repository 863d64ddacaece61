//go:build tinygo && rp2040

package main

import (
	"machine"

	"muffin/core"
)

var debugUART *machine.UART

// InitDebugUART brings up UART0 on GPIO0 (TX) and GPIO1 (RX) at 115200 and
// routes core debug output to it.
func InitDebugUART() {
	debugUART = machine.UART0
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		debugUART = nil
		return
	}
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(true)
	DebugPrintln("=== muffin rp2040 debug ===")
}

// DebugPrintln writes s and a line break to the debug UART
func DebugPrintln(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
