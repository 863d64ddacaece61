package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamFrame(t *testing.T, typ MessageType, seq uint8, payload []byte) []byte {
	t.Helper()
	m := &Message{}
	m.Header.Type = typ
	m.Header.Seq = seq
	require.NoError(t, m.SetPayload(payload))
	out, err := AppendStreamFrame(nil, m)
	require.NoError(t, err)
	return out
}

// sliceBuffer is an InputBuffer over a fixed byte slice
type sliceBuffer struct {
	data []byte
}

func sliceInput(data []byte) *sliceBuffer {
	return &sliceBuffer{data: data}
}

func (s *sliceBuffer) Data() []byte   { return s.data }
func (s *sliceBuffer) Available() int { return len(s.data) }

func (s *sliceBuffer) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

func collect(d *StreamDecoder, in InputBuffer) []Message {
	var got []Message
	d.Decode(in, func(m *Message) {
		got = append(got, *m)
	})
	return got
}

func TestStreamRoundTrip(t *testing.T) {
	var stream []byte
	stream = append(stream, streamFrame(t, TypeRaw, 1, []byte{1, 2, 3})...)
	stream = append(stream, streamFrame(t, TypeHeartbeat, 2, nil)...)

	d := NewStreamDecoder()
	in := sliceInput(stream)
	got := collect(d, in)

	require.Len(t, got, 2)
	assert.Equal(t, []byte{1, 2, 3}, got[0].Payload())
	assert.Equal(t, TypeHeartbeat, got[1].Header.Type)
	assert.Equal(t, uint8(2), got[1].Header.Seq)
	assert.Equal(t, 0, in.Available())
	assert.Equal(t, uint32(2), d.Frames())
}

func TestStreamPartialFrameWaits(t *testing.T) {
	frame := streamFrame(t, TypeRaw, 5, []byte{9, 9, 9, 9})

	d := NewStreamDecoder()
	fifo := NewFifoBuffer(128)
	fifo.Write(frame[:5])
	assert.Empty(t, collect(d, fifo))
	assert.Equal(t, 5, fifo.Available())

	fifo.Write(frame[5:])
	got := collect(d, fifo)
	require.Len(t, got, 1)
	assert.Equal(t, uint8(5), got[0].Header.Seq)
	assert.True(t, fifo.IsEmpty())
}

func TestStreamResyncAfterGarbage(t *testing.T) {
	bad := streamFrame(t, TypeRaw, 1, []byte{1, 2, 3})
	bad[HeaderSize] ^= 0x55 // corrupt payload, CRC fails
	good := streamFrame(t, TypeRaw, 2, []byte{4, 5})

	stream := append([]byte{}, bad...)
	stream = append(stream, good...)

	d := NewStreamDecoder()
	got := collect(d, sliceInput(stream))

	require.Len(t, got, 1)
	assert.Equal(t, uint8(2), got[0].Header.Seq)
	assert.Equal(t, uint32(1), d.Errors())
	assert.True(t, d.Synchronized())
}

func TestStreamOversizeLength(t *testing.T) {
	stream := []byte{0x01, 0x00, 0xFF, 0x00, SyncByte}
	stream = append(stream, streamFrame(t, TypeRaw, 3, []byte{1})...)

	d := NewStreamDecoder()
	got := collect(d, sliceInput(stream))
	require.Len(t, got, 1)
	assert.Equal(t, uint8(3), got[0].Header.Seq)
}

func TestAppendStreamFrameReservedType(t *testing.T) {
	m := &Message{}
	m.Header.Type = SyncByte
	_, err := AppendStreamFrame(nil, m)
	assert.ErrorIs(t, err, ErrReservedType)
}
