package protocol

import "errors"

// ErrReservedType is returned for a message whose type byte equals SyncByte;
// such a frame would be skipped as padding by the stream decoder.
var ErrReservedType = errors.New("message type collides with stream sync byte")

// streamCodec is the frame format carried on byte-stream bridges
var streamCodec = Codec{Checksum: true}

// StreamOverhead is the number of bytes a stream frame adds to WireSize
const StreamOverhead = ChecksumSize + 1

// AppendStreamFrame appends m as a stream frame: the checksummed frame
// followed by SyncByte.
func AppendStreamFrame(dst []byte, m *Message) ([]byte, error) {
	if m.Header.Type == SyncByte {
		return dst, ErrReservedType
	}
	var buf [FrameBufferSize + 1]byte
	n, err := streamCodec.EncodeInto(buf[:], m)
	if err != nil {
		return dst, err
	}
	buf[n] = SyncByte
	return append(dst, buf[:n+1]...), nil
}

// StreamDecoder splits a byte stream (USB CDC, UART bridge) into messages.
// After a bad frame it discards input up to the next SyncByte.
type StreamDecoder struct {
	synchronized bool
	errors       uint32
	frames       uint32
	msg          Message
}

// NewStreamDecoder creates a decoder that starts synchronized
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{synchronized: true}
}

// Decode consumes complete frames from input and calls handle for each.
// The message passed to handle is reused; copy it to keep it. Incomplete
// trailing data is left in input for the next call.
func (d *StreamDecoder) Decode(input InputBuffer, handle func(*Message)) {
	data := input.Data()

	for len(data) > 0 {
		if !d.synchronized {
			// Look for sync byte to resynchronize
			syncPos := -1
			for i, b := range data {
				if b == SyncByte {
					syncPos = i
					break
				}
			}

			if syncPos >= 0 {
				data = data[syncPos+1:]
				d.synchronized = true
			} else {
				data = nil
			}
			continue
		}

		// Skip leading sync bytes
		if data[0] == SyncByte {
			data = data[1:]
			continue
		}

		if len(data) < HeaderSize {
			break
		}

		size := int(data[HeaderPositionSize]) | int(data[HeaderPositionSize+1])<<8
		if size > MaxDataSize {
			d.desync()
			continue
		}

		frameLen := HeaderSize + size + ChecksumSize
		if len(data) < frameLen+1 {
			// Wait for full frame
			break
		}

		if data[frameLen] != SyncByte {
			d.desync()
			continue
		}

		if err := streamCodec.DecodeFrom(data, frameLen, &d.msg); err != nil {
			d.desync()
			continue
		}
		data = data[frameLen+1:]
		d.frames++

		if handle != nil {
			handle(&d.msg)
		}
	}

	// Remove consumed bytes from input
	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (d *StreamDecoder) desync() {
	d.synchronized = false
	d.errors++
}

// Synchronized reports whether the decoder is aligned on frame boundaries
func (d *StreamDecoder) Synchronized() bool {
	return d.synchronized
}

// Errors returns the number of frames discarded
func (d *StreamDecoder) Errors() uint32 {
	return d.errors
}

// Frames returns the number of frames decoded
func (d *StreamDecoder) Frames() uint32 {
	return d.frames
}

// Reset drops synchronization state and counters
func (d *StreamDecoder) Reset() {
	d.synchronized = true
	d.errors = 0
	d.frames = 0
}
