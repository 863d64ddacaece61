package main

import (
	"errors"
	"time"

	"muffin/host/bridge"
	"muffin/host/spidev"
	"muffin/protocol"
)

var errNoFrame = errors.New("no frame")

// endpoint is one way of reaching a board: a controller's USB stream or
// an encoder board's SPI link driven directly
type endpoint interface {
	SetIndicator(index uint8, value uint16) error
	Ping(timeout time.Duration) (time.Duration, error)
	Next(timeout time.Duration) (protocol.Message, error)
	Close() error
}

type streamEndpoint struct {
	*bridge.Bridge
}

func (e streamEndpoint) Next(timeout time.Duration) (protocol.Message, error) {
	select {
	case m := <-e.Events():
		return m, nil
	case <-time.After(timeout):
		return protocol.Message{}, errNoFrame
	}
}

type spiEndpoint struct {
	*spidev.Master
	interval time.Duration
}

// Ping sends a heartbeat and polls until the board answers with any frame
func (e spiEndpoint) Ping(timeout time.Duration) (time.Duration, error) {
	var hb protocol.Message
	hb.Header.Type = protocol.TypeHeartbeat
	start := time.Now()
	if _, err := e.Exchange(&hb, nil); err != nil {
		return 0, err
	}
	if _, err := e.Next(timeout); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (e spiEndpoint) Next(timeout time.Duration) (protocol.Message, error) {
	deadline := time.Now().Add(timeout)
	var in protocol.Message
	for time.Now().Before(deadline) {
		ok, err := e.Poll(&in)
		if err != nil {
			return in, err
		}
		if ok {
			return in, nil
		}
		time.Sleep(e.interval)
	}
	return in, errNoFrame
}
