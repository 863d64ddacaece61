package serial

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

type tarmPort struct {
	*serial.Port
	device string
}

// Open opens the port 8N1
func Open(cfg *Config) (Port, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}

	if cfg.FlushOnOpen {
		if err := p.Flush(); err != nil {
			glog.Warningf("%s: flush: %v", cfg.Device, err)
		}
	}
	glog.V(1).Infof("%s: open at %d baud", cfg.Device, cfg.Baud)
	return &tarmPort{Port: p, device: cfg.Device}, nil
}

func (p *tarmPort) String() string {
	return p.device
}
