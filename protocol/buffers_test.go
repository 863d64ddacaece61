package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFifoBufferFillsToCapacity(t *testing.T) {
	fifo := NewFifoBuffer(4)
	assert.True(t, fifo.IsEmpty())
	assert.Equal(t, 4, fifo.Free())

	assert.Equal(t, 4, fifo.Write([]byte{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, 0, fifo.Free())
	assert.Equal(t, 0, fifo.Write([]byte{7}))
	assert.Equal(t, []byte{1, 2, 3, 4}, fifo.Data())

	out := make([]byte, 3)
	assert.Equal(t, 3, fifo.Read(out))
	assert.Equal(t, []byte{1, 2, 3}, out)
	assert.Equal(t, 1, fifo.Available())
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(3)

	// 4 sits at the end; the next write wraps to the front
	assert.Equal(t, 4, fifo.Write([]byte{5, 6, 7, 8}))
	assert.Equal(t, 5, fifo.Available())

	out := make([]byte, 8)
	n := fifo.Read(out)
	assert.Equal(t, []byte{4, 5, 6, 7, 8}, out[:n])
	assert.True(t, fifo.IsEmpty())
}

func TestFifoBufferDataWrapped(t *testing.T) {
	fifo := NewFifoBuffer(6)
	fifo.Write([]byte{1, 2, 3, 4, 5})
	fifo.Pop(4)
	fifo.Write([]byte{6, 7, 8})

	assert.Equal(t, []byte{5, 6, 7, 8}, fifo.Data())

	// Contents survive the rotation and writing continues after it
	fifo.Pop(1)
	fifo.Write([]byte{9, 10, 11})
	out := make([]byte, 6)
	n := fifo.Read(out)
	assert.Equal(t, []byte{6, 7, 8, 9, 10, 11}, out[:n])
}

func TestFifoBufferReset(t *testing.T) {
	fifo := NewFifoBuffer(3)
	fifo.Write([]byte{1, 2})
	fifo.Pop(1)
	fifo.Reset()
	assert.True(t, fifo.IsEmpty())
	assert.Equal(t, 3, fifo.Write([]byte{7, 8, 9}))
	assert.Equal(t, []byte{7, 8, 9}, fifo.Data())
}
