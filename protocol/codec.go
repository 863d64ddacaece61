package protocol

import "errors"

var (
	ErrLength  = errors.New("message does not fit frame buffer")
	ErrFraming = errors.New("malformed frame")

	// ErrChecksum is a framing error detected by the CRC trailer
	ErrChecksum error = &wrappedError{msg: "frame checksum mismatch", err: ErrFraming}
)

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.err }

// Codec encodes and decodes frames. It holds no state; the zero value is
// the plain header+payload layout. Checksum appends a big-endian CRC16 of
// header and payload.
type Codec struct {
	Checksum bool
}

// WireSize returns the number of bytes the message occupies on the wire
func (c Codec) WireSize(m *Message) int {
	n := WireSize(m)
	if c.Checksum {
		n += ChecksumSize
	}
	return n
}

// EncodeInto writes header then payload contiguously into buf and returns
// the frame length.
func (c Codec) EncodeInto(buf []byte, m *Message) (int, error) {
	if int(m.Header.DataSize) > MaxDataSize {
		return 0, ErrLength
	}
	n := c.WireSize(m)
	if n > len(buf) {
		return 0, ErrLength
	}

	m.Header.put(buf)
	copy(buf[HeaderSize:], m.Data[:m.Header.DataSize])

	if c.Checksum {
		crc := CRC16(buf[:n-ChecksumSize])
		buf[n-2] = uint8(crc >> 8)
		buf[n-1] = uint8(crc)
	}
	return n, nil
}

// DecodeFrom reads a frame from the first length bytes of buf into m.
// On error m is left untouched and the buffer contents must be discarded.
func (c Codec) DecodeFrom(buf []byte, length int, m *Message) error {
	if length > len(buf) {
		length = len(buf)
	}
	if length < HeaderSize {
		return ErrFraming
	}

	var h Header
	h.get(buf)
	if int(h.DataSize) > MaxDataSize {
		return ErrFraming
	}

	n := HeaderSize + int(h.DataSize)
	if c.Checksum {
		n += ChecksumSize
	}
	if n > length {
		return ErrFraming
	}

	if c.Checksum {
		frameCRC := uint16(buf[n-2])<<8 | uint16(buf[n-1])
		if frameCRC != CRC16(buf[:n-ChecksumSize]) {
			return ErrChecksum
		}
	}

	m.Header = h
	copy(m.Data[:], buf[HeaderSize:HeaderSize+int(h.DataSize)])
	clear(m.Data[h.DataSize:])
	return nil
}
