package protocol

// MessageType identifies what a payload carries
type MessageType uint8

const (
	TypeNone         MessageType = 0x00
	TypeEncoderEvent MessageType = 0x01 // encoder board -> controller: rotation delta
	TypeSwitchEvent  MessageType = 0x02 // encoder board -> controller: push switch
	TypeIndicator    MessageType = 0x03 // controller -> encoder board: indicator value
	TypeHeartbeat    MessageType = 0x04 // either direction, empty payload
	TypeRaw          MessageType = 0x10 // opaque application bytes
)

func (t MessageType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeEncoderEvent:
		return "encoder"
	case TypeSwitchEvent:
		return "switch"
	case TypeIndicator:
		return "indicator"
	case TypeHeartbeat:
		return "heartbeat"
	case TypeRaw:
		return "raw"
	}
	return "unknown"
}

// Header is the fixed part of every frame
type Header struct {
	Type     MessageType
	Seq      uint8
	DataSize uint16
}

func (h *Header) put(buf []byte) {
	buf[HeaderPositionType] = uint8(h.Type)
	buf[HeaderPositionSeq] = h.Seq
	buf[HeaderPositionSize] = uint8(h.DataSize)
	buf[HeaderPositionSize+1] = uint8(h.DataSize >> 8)
}

func (h *Header) get(buf []byte) {
	h.Type = MessageType(buf[HeaderPositionType])
	h.Seq = buf[HeaderPositionSeq]
	h.DataSize = uint16(buf[HeaderPositionSize]) | uint16(buf[HeaderPositionSize+1])<<8
}

// Message is the unit of application-level communication. Payload storage
// is inline so messages can live in static slots without allocation.
type Message struct {
	Header Header
	Data   [MaxDataSize]byte
}

// WireSize returns the total frame size: header plus payload
func WireSize(m *Message) int {
	return HeaderSize + int(m.Header.DataSize)
}

// Payload returns the valid part of Data
func (m *Message) Payload() []byte {
	n := int(m.Header.DataSize)
	if n > MaxDataSize {
		n = MaxDataSize
	}
	return m.Data[:n]
}

// SetPayload copies p into the message and sets DataSize
func (m *Message) SetPayload(p []byte) error {
	if len(p) > MaxDataSize {
		return ErrLength
	}
	n := copy(m.Data[:], p)
	clear(m.Data[n:])
	m.Header.DataSize = uint16(n)
	return nil
}

// Reset clears the message to an empty TypeNone message
func (m *Message) Reset() {
	*m = Message{}
}
