//go:build !tinygo

package sim

import "muffin/protocol"

// EncoderBoard models a peripheral encoder board on the slave end of the
// link. It drives MISO only while the controller's receiver is on, and
// only as fast as the controller clocks. Frames it sends go out as whole
// DMA-sized blocks, padded with zeros, each starting a transfer; frames it
// receives are split on the header's size field.
type EncoderBoard struct {
	codec protocol.Codec

	out     [][]byte
	pos     int // next byte of out[0]
	clocked int // bytes clocked since Select
	seq     uint8
	in      []byte
	inbox   []protocol.Message

	// Errors counts received frames that failed to decode
	Errors int
}

// NewEncoderBoard creates a board using the same frame format as the controller
func NewEncoderBoard(codec protocol.Codec) *EncoderBoard {
	return &EncoderBoard{codec: codec}
}

// Send queues m for the controller, stamping the board's sequence number
func (b *EncoderBoard) Send(m *protocol.Message) error {
	m.Header.Seq = b.seq
	block := make([]byte, protocol.FrameBufferSize)
	if _, err := b.codec.EncodeInto(block, m); err != nil {
		return err
	}
	b.seq++
	b.out = append(b.out, block)
	return nil
}

// SendRaw queues arbitrary bytes as one block, padded to a full buffer
func (b *EncoderBoard) SendRaw(data []byte) {
	block := make([]byte, protocol.FrameBufferSize)
	copy(block, data)
	b.out = append(b.out, block)
}

// SkipSeq advances the board's sequence number without sending
func (b *EncoderBoard) SkipSeq(n uint8) {
	b.seq += n
}

// Queued returns the number of blocks not yet fully sent
func (b *EncoderBoard) Queued() int {
	return len(b.out)
}

// Select implements Peer. A block cut short by the controller goes out
// again from the top.
func (b *EncoderBoard) Select() {
	b.pos = 0
	b.clocked = 0
	b.in = b.in[:0]
}

// Transmit implements Peer
func (b *EncoderBoard) Transmit() byte {
	defer func() { b.clocked++ }()
	if len(b.out) == 0 || (b.pos == 0 && b.clocked != 0) {
		return 0
	}
	v := b.out[0][b.pos]
	b.pos++
	if b.pos == len(b.out[0]) {
		b.out = b.out[1:]
		b.pos = 0
	}
	return v
}

// Receive implements Peer
func (b *EncoderBoard) Receive(v byte) {
	if len(b.in) == 0 && protocol.MessageType(v) == protocol.TypeNone {
		// Idle clock between frames
		return
	}
	b.in = append(b.in, v)
	if len(b.in) < protocol.HeaderSize {
		return
	}

	size := int(b.in[protocol.HeaderPositionSize]) | int(b.in[protocol.HeaderPositionSize+1])<<8
	if size > protocol.MaxDataSize {
		b.Errors++
		b.in = b.in[:0]
		return
	}
	n := protocol.HeaderSize + size
	if b.codec.Checksum {
		n += protocol.ChecksumSize
	}
	if len(b.in) < n {
		return
	}

	var m protocol.Message
	if err := b.codec.DecodeFrom(b.in, n, &m); err != nil {
		b.Errors++
	} else {
		b.inbox = append(b.inbox, m)
	}
	b.in = b.in[:0]
}

// Received drains the frames the board has received
func (b *EncoderBoard) Received() []protocol.Message {
	msgs := b.inbox
	b.inbox = nil
	return msgs
}

// Reset drops partial input and queued output
func (b *EncoderBoard) Reset() {
	b.in = b.in[:0]
	b.out = nil
	b.pos = 0
	b.clocked = 0
}
