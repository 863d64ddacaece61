package dma

import "muffin/core"

// TriggerSource selects the peripheral event that starts a burst
type TriggerSource uint8

// TriggerSoftware starts the whole block on a software request
const TriggerSoftware TriggerSource = 0x00

// BurstLength is the number of bytes moved per trigger
type BurstLength uint8

const (
	Burst1 BurstLength = iota
	Burst2
	Burst4
	Burst8
)

// AddressMode controls how an address register changes after each byte
type AddressMode uint8

const (
	AddressFixed AddressMode = iota
	AddressIncrement
	AddressDecrement
)

// Reload controls when an address register is reset to its start value
type Reload uint8

const (
	ReloadNone Reload = iota
	ReloadBlock
	ReloadBurst
	ReloadTransaction
)

// Endpoint is one side of a transfer: either a memory buffer or a
// peripheral register, never both.
type Endpoint struct {
	Buffer    []byte
	Register  *core.Register8
	Direction AddressMode
	Reload    Reload
}

func (e *Endpoint) isBuffer() bool {
	return e.Buffer != nil
}

// Descriptor is the configuration of one DMA channel. Buffers referenced
// here belong to the channel from Arm until the completion or error
// interrupt; nothing else may touch them in that window.
type Descriptor struct {
	RepeatCount   uint8 // 1 for single shot
	Length        uint16
	Burst         BurstLength
	Trigger       TriggerSource
	DoubleBuffer  bool
	Priority      core.Priority // completion interrupt level
	ErrorPriority core.Priority
	Source        Endpoint
	Destination   Endpoint

	// Alternate replaces the memory-side buffer on the paired channel when
	// DoubleBuffer is set. It must have the same length.
	Alternate []byte
}

// memory returns the memory-side endpoint, nil for register-to-register
func (d *Descriptor) memory() *Endpoint {
	if d.Source.isBuffer() {
		return &d.Source
	}
	if d.Destination.isBuffer() {
		return &d.Destination
	}
	return nil
}

func validateEndpoint(e *Endpoint, length uint16) error {
	if e.isBuffer() == (e.Register != nil) {
		return errEndpoint
	}
	if e.Direction > AddressDecrement || e.Reload > ReloadTransaction {
		return errAddressMode
	}
	if e.isBuffer() && int(length) > len(e.Buffer) {
		return errLength
	}
	return nil
}

// Validate checks the descriptor without touching hardware
func (d *Descriptor) Validate() error {
	if d.Length == 0 {
		return errLength
	}
	if err := validateEndpoint(&d.Source, d.Length); err != nil {
		return err
	}
	if err := validateEndpoint(&d.Destination, d.Length); err != nil {
		return err
	}
	if d.Burst > Burst8 || !d.Priority.Valid() || !d.ErrorPriority.Valid() {
		return errShape
	}

	if d.DoubleBuffer {
		if d.Source.isBuffer() && d.Destination.isBuffer() {
			return errDoubleBuffer
		}
		mem := d.memory()
		if mem == nil || len(d.Alternate) != len(mem.Buffer) {
			return errDoubleBuffer
		}
	} else if d.Alternate != nil {
		return errDoubleBuffer
	}

	// Repeat is bounded and only meaningful when two buffers alternate
	if d.RepeatCount == 0 || (d.RepeatCount != 1 && !d.DoubleBuffer) {
		return errRepeat
	}
	return nil
}

func (d *Descriptor) addressControl() uint8 {
	return uint8(d.Source.Reload)<<ADDRCTRL_SRCRELOAD_gp |
		uint8(d.Source.Direction)<<ADDRCTRL_SRCDIR_gp |
		uint8(d.Destination.Reload)<<ADDRCTRL_DESTRELOAD_gp |
		uint8(d.Destination.Direction)<<ADDRCTRL_DESTDIR_gp
}

func (d *Descriptor) control() uint8 {
	ctrla := uint8(d.Burst) & CTRLA_BURSTLEN_gm
	if d.Trigger != TriggerSoftware {
		ctrla |= CTRLA_SINGLE
	}
	if d.RepeatCount != 1 {
		ctrla |= CTRLA_REPEAT
	}
	return ctrla
}

func (d *Descriptor) interruptLevels() uint8 {
	return uint8(d.ErrorPriority)<<CTRLB_ERRINTLVL_gp | uint8(d.Priority)&CTRLB_TRNINTLVL_gm
}
