package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// VLQLen returns how many bytes PutVLQInt needs for v
func VLQLen(v int32) int {
	n := 1
	if !(-(1<<26) <= v && v < (3<<26)) {
		n++
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		n++
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		n++
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		n++
	}
	return n
}

// PutVLQInt encodes a signed integer most significant group first, 7 bits
// per byte with the high bit marking continuation. Returns the number of
// bytes written, or 0 if buf is too small.
func PutVLQInt(buf []byte, v int32) int {
	n := VLQLen(v)
	if n > len(buf) {
		return 0
	}
	for i := 0; i < n; i++ {
		shift := uint(7 * (n - 1 - i))
		b := byte((v >> shift) & 0x7F)
		if i < n-1 {
			b |= 0x80
		}
		buf[i] = b
	}
	return n
}

// PutVLQUint encodes an unsigned integer
func PutVLQUint(buf []byte, v uint32) int {
	return PutVLQInt(buf, int32(v))
}

// DecodeVLQInt decodes a VLQ signed integer from the data slice.
// The data slice is advanced past the consumed bytes
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	// Sign extension for negative numbers
	if (c & 0x60) == 0x60 {
		v |= ^uint32(0x1F)
	}

	// Read continuation bytes
	for i := 0; c&0x80 != 0; i++ {
		if i == 4 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = (v << 7) | (c & 0x7F)
	}

	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}
