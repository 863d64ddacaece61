// Package serial opens the USB CDC port of a controller board.
package serial

import (
	"errors"
	"io"
	"time"
)

var (
	errNoConfig = errors.New("serial: no config")
	errNoDevice = errors.New("serial: no device")
)

// Port is an open serial port. Tests and the simulator substitute pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush drops input the host has not read yet
	Flush() error
}

// Config describes how to open a controller board
type Config struct {
	Device string // e.g. /dev/ttyACM0 or COM3

	// Baud is passed through to the driver; the board's CDC port ignores it
	Baud int

	// ReadTimeout bounds each Read. Zero blocks.
	ReadTimeout time.Duration

	// FlushOnOpen discards events the board queued before the host attached
	FlushOnOpen bool
}

// DefaultConfig returns the settings for a controller board on device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
		FlushOnOpen: true,
	}
}

func (c *Config) validate() error {
	switch {
	case c == nil:
		return errNoConfig
	case c.Device == "":
		return errNoDevice
	}
	return nil
}
