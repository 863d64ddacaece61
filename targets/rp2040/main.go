//go:build tinygo && rp2040

// RP2040 bring-up build of the controller firmware. The board link runs on
// a PIO state machine instead of an XMEGA USART; everything above the link
// driver and DMA channels is the same code.
package main

import (
	"machine"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"muffin/board"
	"muffin/comms"
	"muffin/core"
	"muffin/event"
	"muffin/system"
)

var (
	sched  = core.NewScheduler()
	events event.Queue
	usb    *system.USBBridge
)

// rngEntropy seeds sequence numbers from the ring oscillator. There is no
// storage to persist the next seed in.
type rngEntropy struct{}

func (rngEntropy) Seed() uint8 {
	v, err := machine.GetRNG()
	if err != nil {
		return 0
	}
	return uint8(v)
}

func (rngEntropy) Store(uint8) {}

func main() {
	// Clear any watchdog state left from before the reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	UpdateSystemTime()

	cfg := board.DefaultConfig()
	cfg.Comms.Link.Baud = 1_000_000

	l := newPIOLink(rp2pio.PIO0, 0)
	l.Configure(cfg.Comms.Link)
	if l.spi != nil && !probeLink(l.spi, cfg.Comms.Codec) {
		core.DebugPrintln("link: no answer from encoder board")
	}

	tx, rx := newFIFOChannels(l)
	brd := board.New(l, comms.Channels{TX: tx, RX: rx}, cfg)
	usb = system.NewUSBBridge(usbPort{}, core.PriorityLow, brd, &events)

	sys := system.New(brd, sched, rngEntropy{})
	if err := sys.Init(); err != nil {
		fatal("board init: " + err.Error())
	}
	if err := sys.InitOSThreads(usb, &events); err != nil {
		fatal("threads: " + err.Error())
	}
	sched.Start(usb.ThreadEntry())
	go usbReaderLoop()

	var faults uint32
	for {
		UpdateSystemTime()
		sched.Dispatch()

		if s := brd.Stats(); s.TransferErrors+s.Stalls != faults {
			faults = s.TransferErrors + s.Stalls
			core.DumpLinkEvents()
		}
		time.Sleep(10 * time.Microsecond)
	}
}

func fatal(msg string) {
	core.DebugPrintln(msg)
	core.DumpLinkEvents()
	for {
		time.Sleep(time.Second)
	}
}
