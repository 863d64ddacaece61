//go:build tinygo && rp2040

package main

import (
	"machine"
	"time"
)

// InitUSB configures the USB CDC port. TinyGo sets up the descriptors.
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// usbPort adapts machine.Serial to system.Port
type usbPort struct{}

func (usbPort) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}

// usbReaderLoop hands host bytes to the bridge. It runs as a goroutine;
// TinyGo schedules goroutines cooperatively so Feed never races Update.
func usbReaderLoop() {
	var buf [64]byte
	for {
		n := 0
		for n < len(buf) && machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			buf[n] = b
			n++
		}
		if n > 0 {
			if usb.Feed(buf[:n]) < n {
				// Input full; let the bridge thread catch up
				time.Sleep(time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}
