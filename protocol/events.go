package protocol

import "errors"

// ErrMessageType is returned when decoding a payload of the wrong type
var ErrMessageType = errors.New("unexpected message type")

// EncoderEvent reports a rotary encoder turning by Delta detents
type EncoderEvent struct {
	Index uint8
	Delta int32
}

// Encode writes the event into m as a TypeEncoderEvent payload
func (e EncoderEvent) Encode(m *Message) error {
	m.Header.Type = TypeEncoderEvent
	m.Data[0] = e.Index
	n := PutVLQInt(m.Data[1:], e.Delta)
	if n == 0 {
		return ErrLength
	}
	m.Header.DataSize = uint16(1 + n)
	return nil
}

// DecodeEncoderEvent extracts an EncoderEvent from m
func DecodeEncoderEvent(m *Message) (EncoderEvent, error) {
	if m.Header.Type != TypeEncoderEvent {
		return EncoderEvent{}, ErrMessageType
	}
	data := m.Payload()
	if len(data) < 2 {
		return EncoderEvent{}, ErrBufferTooSmall
	}
	ev := EncoderEvent{Index: data[0]}
	data = data[1:]
	delta, err := DecodeVLQInt(&data)
	if err != nil {
		return EncoderEvent{}, err
	}
	ev.Delta = delta
	return ev, nil
}

// SwitchEvent reports an encoder's push switch changing state
type SwitchEvent struct {
	Index   uint8
	Pressed bool
}

// Encode writes the event into m as a TypeSwitchEvent payload
func (e SwitchEvent) Encode(m *Message) error {
	m.Header.Type = TypeSwitchEvent
	m.Data[0] = e.Index
	m.Data[1] = 0
	if e.Pressed {
		m.Data[1] = 1
	}
	m.Header.DataSize = 2
	return nil
}

// DecodeSwitchEvent extracts a SwitchEvent from m
func DecodeSwitchEvent(m *Message) (SwitchEvent, error) {
	if m.Header.Type != TypeSwitchEvent {
		return SwitchEvent{}, ErrMessageType
	}
	data := m.Payload()
	if len(data) < 2 {
		return SwitchEvent{}, ErrBufferTooSmall
	}
	return SwitchEvent{Index: data[0], Pressed: data[1] != 0}, nil
}

// Indicator sets the value shown by an encoder's indicator ring
type Indicator struct {
	Index uint8
	Value uint16
}

// Encode writes the indicator update into m as a TypeIndicator payload
func (i Indicator) Encode(m *Message) error {
	m.Header.Type = TypeIndicator
	m.Data[0] = i.Index
	n := PutVLQUint(m.Data[1:], uint32(i.Value))
	if n == 0 {
		return ErrLength
	}
	m.Header.DataSize = uint16(1 + n)
	return nil
}

// DecodeIndicator extracts an Indicator from m
func DecodeIndicator(m *Message) (Indicator, error) {
	if m.Header.Type != TypeIndicator {
		return Indicator{}, ErrMessageType
	}
	data := m.Payload()
	if len(data) < 2 {
		return Indicator{}, ErrBufferTooSmall
	}
	ind := Indicator{Index: data[0]}
	data = data[1:]
	v, err := DecodeVLQUint(&data)
	if err != nil {
		return Indicator{}, err
	}
	if v > 0xFFFF {
		return Indicator{}, ErrInvalidVLQ
	}
	ind.Value = uint16(v)
	return ind, nil
}
