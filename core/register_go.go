//go:build !tinygo

package core

// Register8 is an 8-bit peripheral register. On host builds it is plain
// memory so register blocks can be allocated and inspected by tests.
type Register8 struct {
	Reg uint8
}

func (r *Register8) Get() uint8 {
	return r.Reg
}

func (r *Register8) Set(value uint8) {
	r.Reg = value
}

func (r *Register8) SetBits(value uint8) {
	r.Reg |= value
}

func (r *Register8) ClearBits(value uint8) {
	r.Reg &^= value
}

func (r *Register8) HasBits(value uint8) bool {
	return r.Reg&value > 0
}

// ReplaceBits replaces the bits under mask<<pos with value<<pos
func (r *Register8) ReplaceBits(value uint8, mask uint8, pos uint8) {
	r.Reg = r.Reg&^(mask<<pos) | value<<pos
}

// AckFlags acknowledges write-one-to-clear interrupt flags. Plain memory
// has no such semantics, so host builds clear the bits directly.
func AckFlags(r *Register8, flags uint8) {
	r.Reg &^= flags
}
