// Package bridge is the host end of a controller board's USB stream: it
// sends indicator updates and heartbeats, and delivers the encoder events
// the board forwards.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"muffin/internal/syncutil"
	"muffin/protocol"
)

var (
	ErrClosed  = errors.New("bridge closed")
	ErrTimeout = errors.New("timed out")
)

// Bridge runs a read loop on port until Close
type Bridge struct {
	port io.ReadWriteCloser

	writeMu syncutil.Mutex
	out     []byte
	seq     atomic.Uint32

	readMu syncutil.Mutex
	in     *protocol.FifoBuffer
	dec    *protocol.StreamDecoder

	events chan protocol.Message
	pongs  chan uint8

	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// New starts a bridge on port
func New(port io.ReadWriteCloser) *Bridge {
	b := &Bridge{
		port:   port,
		out:    make([]byte, 0, protocol.FrameBufferSize+protocol.StreamOverhead),
		in:     protocol.NewFifoBuffer(512),
		dec:    protocol.NewStreamDecoder(),
		events: make(chan protocol.Message, 64),
		pongs:  make(chan uint8, 4),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.readLoop()
	return b
}

// Send stamps m with the next host sequence number and writes it
func (b *Bridge) Send(m *protocol.Message) error {
	select {
	case <-b.stop:
		return ErrClosed
	default:
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	m.Header.Seq = uint8(b.seq.Add(1) - 1)
	out, err := protocol.AppendStreamFrame(b.out[:0], m)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", m.Header.Type, err)
	}
	b.out = out

	n, err := b.port.Write(out)
	if err != nil {
		return fmt.Errorf("write %s frame: %w", m.Header.Type, err)
	}
	if n != len(out) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(out))
	}
	glog.V(3).Infof("sent %s seq=%d size=%d", m.Header.Type, m.Header.Seq, m.Header.DataSize)
	return nil
}

// SetIndicator sets an encoder's indicator ring value on the board
func (b *Bridge) SetIndicator(index uint8, value uint16) error {
	var m protocol.Message
	if err := (protocol.Indicator{Index: index, Value: value}).Encode(&m); err != nil {
		return err
	}
	return b.Send(&m)
}

// Ping sends a heartbeat and waits for the board to echo it
func (b *Bridge) Ping(timeout time.Duration) (time.Duration, error) {
	// Drop echoes of earlier pings that timed out
	for len(b.pongs) > 0 {
		<-b.pongs
	}

	var m protocol.Message
	m.Header.Type = protocol.TypeHeartbeat
	start := time.Now()
	if err := b.Send(&m); err != nil {
		return 0, err
	}

	deadline := time.After(timeout)
	for {
		select {
		case seq := <-b.pongs:
			if seq == m.Header.Seq {
				return time.Since(start), nil
			}
		case <-deadline:
			return 0, fmt.Errorf("heartbeat %d: %w", m.Header.Seq, ErrTimeout)
		case <-b.stop:
			return 0, ErrClosed
		}
	}
}

// Events delivers encoder and switch frames from the board. When nobody
// reads, the oldest frames are dropped.
func (b *Bridge) Events() <-chan protocol.Message {
	return b.events
}

// StreamErrors returns the number of corrupt frames skipped
func (b *Bridge) StreamErrors() uint32 {
	b.readMu.Lock()
	defer b.readMu.Unlock()
	return b.dec.Errors()
}

// Close stops the read loop and closes the port
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	close(b.stop)
	err := b.port.Close()
	<-b.done
	return err
}

func (b *Bridge) readLoop() {
	defer close(b.done)

	buffer := make([]byte, 256)
	for {
		n, err := b.port.Read(buffer)
		if n > 0 {
			b.readMu.Lock()
			b.in.Write(buffer[:n])
			b.dec.Decode(b.in, b.dispatch)
			b.readMu.Unlock()
		}
		if err == nil {
			continue
		}

		select {
		case <-b.stop:
			return
		default:
		}
		// tarm/serial reports a read timeout as io.EOF
		if !errors.Is(err, io.EOF) {
			glog.Warningf("read: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (b *Bridge) dispatch(m *protocol.Message) {
	glog.V(3).Infof("received %s seq=%d size=%d", m.Header.Type, m.Header.Seq, m.Header.DataSize)

	if m.Header.Type == protocol.TypeHeartbeat {
		select {
		case b.pongs <- m.Header.Seq:
		default:
		}
		return
	}

	msg := *m
	select {
	case b.events <- msg:
	default:
		// Full, drop oldest
		select {
		case <-b.events:
		default:
		}
		b.events <- msg
	}
}
