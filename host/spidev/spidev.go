// Package spidev drives the board link from a Linux host acting as the SPI
// master, for bench testing an encoder board without a controller.
package spidev

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"muffin/link"
	"muffin/protocol"
)

// Master exchanges one DMA-sized block per transaction, the way the
// controller's link does
type Master struct {
	port  spi.PortCloser
	conn  spi.Conn
	codec protocol.Codec
	seq   uint8

	w, r [protocol.FrameBufferSize]byte
}

// Mode converts a link mode to the periph mode
func Mode(cfg link.Config) spi.Mode {
	m := spi.Mode(cfg.Mode)
	if cfg.Order == link.LSBFirst {
		m |= spi.LSBFirst
	}
	return m
}

// Open initialises periph and connects to the named spidev port
func Open(name string, cfg link.Config, codec protocol.Codec) (*Master, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open SPI port %s: %w", name, err)
	}
	conn, err := port.Connect(physic.Frequency(cfg.Baud)*physic.Hertz, Mode(cfg), 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect SPI: %w", err)
	}
	m := New(conn, codec)
	m.port = port
	return m, nil
}

// New wraps an already connected SPI conn
func New(conn spi.Conn, codec protocol.Codec) *Master {
	return &Master{conn: conn, codec: codec}
}

// Exchange clocks one block: out (or an idle block when nil) goes to the
// board while the board's block comes back into in. Returns true when the
// board sent a frame; an all-zero block decodes as TypeNone.
func (m *Master) Exchange(out, in *protocol.Message) (bool, error) {
	clear(m.w[:])
	if out != nil {
		out.Header.Seq = m.seq
		if _, err := m.codec.EncodeInto(m.w[:], out); err != nil {
			return false, err
		}
		m.seq++
	}
	if err := m.conn.Tx(m.w[:], m.r[:]); err != nil {
		return false, fmt.Errorf("spi transaction: %w", err)
	}
	if in == nil {
		return false, nil
	}
	if err := m.codec.DecodeFrom(m.r[:], len(m.r), in); err != nil {
		return false, err
	}
	return in.Header.Type != protocol.TypeNone, nil
}

// SetIndicator sends an indicator update, discarding whatever comes back
func (m *Master) SetIndicator(index uint8, value uint16) error {
	var out protocol.Message
	if err := (protocol.Indicator{Index: index, Value: value}).Encode(&out); err != nil {
		return err
	}
	_, err := m.Exchange(&out, nil)
	return err
}

// Poll clocks an idle block and returns the board's frame, if any
func (m *Master) Poll(in *protocol.Message) (bool, error) {
	return m.Exchange(nil, in)
}

// String names the underlying connection
func (m *Master) String() string {
	return m.conn.String()
}

// Close releases the port
func (m *Master) Close() error {
	if m.port == nil {
		return nil
	}
	return m.port.Close()
}
