// Package protocol implements the inter-board link message format: a fixed
// header followed by a variable-length payload, sized to fit one DMA buffer.
package protocol

// Version represents the link protocol version
const Version = "0.1.0"

// Frame layout constants
const (
	// FrameBufferSize is the size of one DMA transfer buffer. A frame must
	// fit in it, so it bounds every message on the link.
	FrameBufferSize = 64

	HeaderSize   = 4 // type, sequence, data size (little endian)
	ChecksumSize = 2 // optional CRC16 trailer

	// MaxDataSize leaves room for the checksum trailer so both frame
	// formats fit one buffer.
	MaxDataSize = FrameBufferSize - HeaderSize - ChecksumSize

	HeaderPositionType = 0
	HeaderPositionSeq  = 1
	HeaderPositionSize = 2

	// SyncByte terminates frames on byte-stream bridges (never on the
	// board link itself, whose frames are bounded by the DMA transfer).
	SyncByte = 0x7E
)
