package protocol

import (
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0,
		1,
		-1,
		31,
		-32,
		95,
		96,
		127,
		-127,
		128,
		-128,
		255,
		-255,
		1000,
		-1000,
		65535,
		-65535,
		1000000,
		-1000000,
		1 << 30,
		-(1 << 30),
	}

	for _, expected := range testCases {
		var buf [5]byte
		n := PutVLQInt(buf[:], expected)
		if n == 0 || n != VLQLen(expected) {
			t.Errorf("PutVLQInt(%d) wrote %d bytes, VLQLen says %d", expected, n, VLQLen(expected))
			continue
		}

		data := buf[:n]
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, buf[:n])
		}

		if len(data) != 0 {
			t.Errorf("VLQ decode didn't consume all bytes for value %d: %d bytes remaining", expected, len(data))
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{
		0,
		1,
		127,
		128,
		255,
		1000,
		65535,
		1000000,
	}

	for _, expected := range testCases {
		var buf [5]byte
		n := PutVLQUint(buf[:], expected)

		data := buf[:n]
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, buf[:n])
		}
	}
}

func TestVLQSmallValuesOneByte(t *testing.T) {
	var buf [5]byte
	if n := PutVLQInt(buf[:], 5); n != 1 || buf[0] != 5 {
		t.Errorf("Expected single byte 0x05, got %v", buf[:n])
	}
}

func TestVLQPutShortBuffer(t *testing.T) {
	var buf [1]byte
	if n := PutVLQInt(buf[:], 1000); n != 0 {
		t.Errorf("Expected 0 bytes written into short buffer, got %d", n)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	// Continuation byte but no following byte
	data := []byte{0x80}
	_, err := DecodeVLQInt(&data)
	if err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	_, err := DecodeVLQInt(&data)
	if err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
