package dma

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid DMA configuration")
	ErrChannelBusy   = errors.New("DMA channel busy")
)

// configError names what was wrong with a descriptor. It unwraps to
// ErrInvalidConfig; the values are static so rejecting a descriptor does not
// allocate.
type configError struct {
	reason string
}

func (e *configError) Error() string { return "invalid DMA configuration: " + e.reason }
func (e *configError) Unwrap() error { return ErrInvalidConfig }

var (
	errLength       error = &configError{"length exceeds buffer or is zero"}
	errEndpoint     error = &configError{"endpoint must be a buffer or a register"}
	errAddressMode  error = &configError{"address mode out of range"}
	errShape        error = &configError{"burst or interrupt level out of range"}
	errDoubleBuffer error = &configError{"double buffering needs one memory side and an equal alternate buffer"}
	errRepeat       error = &configError{"repeat count must be 1 unless double buffered"}
	errPairChannel  error = &configError{"double buffering needs an even channel"}
	errNotReady     error = &configError{"channel not initialised"}
)
