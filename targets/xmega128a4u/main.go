//go:build tinygo && avr

// Controller board firmware for the ATxmega128A4U.
package main

import (
	"runtime/interrupt"
	"unsafe"

	"muffin/board"
	"muffin/comms"
	"muffin/core"
	"muffin/dma"
	"muffin/event"
	"muffin/link"
	"muffin/system"
)

// Data-space addresses of the peripheral blocks
const (
	addrCLK     = 0x0040
	addrOSC     = 0x0050
	addrPR      = 0x0070
	addrPMIC    = 0x00A0
	addrDMA     = 0x0100
	addrPORTC   = 0x0640
	addrPORTD   = 0x0660
	addrPORTE   = 0x0680
	addrTCC0    = 0x0800
	addrUSARTC0 = 0x08A0
	addrUSARTC1 = 0x08B0
	addrUSARTD0 = 0x09A0
	addrUSARTD1 = 0x09B0
	addrUSARTE0 = 0x0AA0
)

// Interrupt vector numbers
const (
	vectTCC0OVF = 14
	vectDMACH0  = 6
	vectDMACH1  = 7
	vectDMACH2  = 8
	vectDMACH3  = 9
)

// DMA channels used by the link. The receive channel is even so it can
// take its odd partner for double buffering. The clock channel shifts idle
// bytes out on the TX trigger while the receiver listens.
const (
	txChannel    = 0
	clockChannel = 1
	rxChannel    = 2
)

var (
	clkRegs   = (*link.ClockRegisters)(unsafe.Pointer(uintptr(addrCLK)))
	oscRegs   = (*link.OscillatorRegisters)(unsafe.Pointer(uintptr(addrOSC)))
	powerRegs = (*link.PowerReduction)(unsafe.Pointer(uintptr(addrPR)))
	dmaRegs   = (*dma.ControllerRegisters)(unsafe.Pointer(uintptr(addrDMA)))

	usarts = [link.NumInstances]uintptr{
		link.USARTC0: addrUSARTC0,
		link.USARTC1: addrUSARTC1,
		link.USARTD0: addrUSARTD0,
		link.USARTD1: addrUSARTD1,
		link.USARTE0: addrUSARTE0,
	}
	ports = [...]uintptr{addrPORTC, addrPORTD, addrPORTE}
)

var (
	controller *dma.Controller
	sched      = core.NewScheduler()
	events     event.Queue
)

func init() {
	interrupt.New(vectDMACH0, func(interrupt.Interrupt) { handleDMA(0) })
	interrupt.New(vectDMACH1, func(interrupt.Interrupt) { handleDMA(1) })
	interrupt.New(vectDMACH2, func(interrupt.Interrupt) { handleDMA(2) })
	interrupt.New(vectDMACH3, func(interrupt.Interrupt) { handleDMA(3) })
	interrupt.New(vectTCC0OVF, func(interrupt.Interrupt) { core.Tick() })
}

func handleDMA(n uint8) {
	if controller != nil {
		controller.HandleInterrupt(n)
	}
}

func hardware(i link.Instance) link.Hardware {
	return link.Hardware{
		USART:          (*link.Registers)(unsafe.Pointer(usarts[i])),
		Port:           (*link.Port)(unsafe.Pointer(ports[i.PortIndex()])),
		PowerReduction: powerRegs.For(i),
	}
}

func main() {
	clock := &link.Clock{CLK: clkRegs, OSC: oscRegs}
	enableInterruptLevels()
	startTick(clock.Frequency())

	controller = dma.NewController(dmaRegs)
	controller.Enable()

	cfg := board.DefaultConfig()
	drv := link.New(hardware(cfg.Comms.Link.Instance), clock.Frequency)
	brd := board.New(drv, comms.Channels{
		TX:    controller.Channel(txChannel),
		RX:    controller.Channel(rxChannel),
		Clock: controller.Channel(clockChannel),
	}, cfg)

	sys := system.New(brd, sched, nil)
	if err := sys.Init(); err != nil {
		halt(err)
	}
	// The USB stack lives outside this firmware; nothing shares the DMA levels
	if err := sys.InitOSThreads(nil, &events); err != nil {
		halt(err)
	}

	for {
		sched.Dispatch()
	}
}

func halt(err error) {
	core.DebugPrintln(err.Error())
	core.DumpLinkEvents()
	for {
	}
}
