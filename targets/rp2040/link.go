//go:build tinygo && rp2040

package main

import (
	"device/rp"
	"machine"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
	"tinygo.org/x/drivers"

	"muffin/core"
	"muffin/dma"
	"muffin/link"
	"muffin/protocol"
)

// Link pins
const (
	linkSCK = machine.GPIO2
	linkSDO = machine.GPIO3
	linkSDI = machine.GPIO4
)

// DREQ numbers of the PIO0 FIFOs, state machine 0
const (
	dreqPIO0TX0 = 0x0
	dreqPIO0RX0 = 0x4
)

var _ drivers.SPI = (*piolib.SPI)(nil)

// pioLink runs the board link on a PIO state machine loaded with the SPI
// master program. The state machine is always full duplex; the DMA
// channels decide which FIFO carries the frame.
type pioLink struct {
	sm   rp2pio.StateMachine
	idx  uint8
	spi  *piolib.SPI
	cfg  link.Config
	err  error
	rxOn bool
	txOn bool
}

func newPIOLink(block *rp2pio.PIO, idx uint8) *pioLink {
	return &pioLink{sm: block.StateMachine(idx), idx: idx}
}

// Configure loads the SPI program. Modes 2 and 3 are not supported by the
// PIO program and leave the link down.
func (l *pioLink) Configure(cfg link.Config) {
	if l.spi != nil && cfg == l.cfg {
		return
	}
	l.cfg = cfg
	l.sm.TryClaim()
	spi, err := piolib.NewSPI(l.sm, machine.SPIConfig{
		Frequency: cfg.Baud,
		SCK:       linkSCK,
		SDO:       linkSDO,
		SDI:       linkSDI,
		Mode:      uint8(cfg.Mode),
		LSBFirst:  cfg.Order == link.LSBFirst,
	})
	if err != nil {
		l.err = err
		core.DebugPrintln("link: " + err.Error())
		return
	}
	l.spi, l.err = spi, nil
}

func (l *pioLink) EnableTX()  { l.txOn = true }
func (l *pioLink) DisableTX() { l.txOn = false }
func (l *pioLink) EnableRX()  { l.rxOn = true }
func (l *pioLink) DisableRX() { l.rxOn = false }

// txFIFO and rxFIFO are the state machine's FIFO registers. Byte writes to
// TXF are replicated across the word by the bus fabric.
func (l *pioLink) txFIFO() uintptr {
	return uintptr(unsafe.Pointer(&rp.PIO0.TXF0)) + 4*uintptr(l.idx)
}

func (l *pioLink) rxFIFO() uintptr {
	return uintptr(unsafe.Pointer(&rp.PIO0.RXF0)) + 4*uintptr(l.idx)
}

// Data returns the TX FIFO as the transfer register
func (l *pioLink) Data() *core.Register8 {
	return (*core.Register8)(unsafe.Pointer(l.txFIFO()))
}

// Triggers returns the FIFO DREQs
func (l *pioLink) Triggers() (tx, rx dma.TriggerSource) {
	return dma.TriggerSource(dreqPIO0TX0 + l.idx), dma.TriggerSource(dreqPIO0RX0 + l.idx)
}

// probeLink polls the encoder board with a heartbeat before DMA takes over
// the state machine. The board answers on the following exchange.
func probeLink(bus drivers.SPI, codec protocol.Codec) bool {
	var m protocol.Message
	m.Header.Type = protocol.TypeHeartbeat

	var w, r [protocol.FrameBufferSize]byte
	if _, err := codec.EncodeInto(w[:], &m); err != nil {
		return false
	}
	if err := bus.Tx(w[:], r[:]); err != nil {
		return false
	}
	clear(w[:])
	if err := bus.Tx(w[:], r[:]); err != nil {
		return false
	}
	if err := codec.DecodeFrom(r[:], len(r), &m); err != nil {
		return false
	}
	return m.Header.Type != protocol.TypeNone
}
