package protocol

// InputBuffer provides an abstraction for reading incoming stream data
type InputBuffer interface {
	// Data returns the available data slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// FifoBuffer is a byte ring between a port and the stream decoder. The
// whole capacity is usable.
type FifoBuffer struct {
	buf   []byte
	start int
	n     int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns how much that was
func (f *FifoBuffer) Write(data []byte) int {
	if free := len(f.buf) - f.n; len(data) > free {
		data = data[:free]
	}
	end := (f.start + f.n) % len(f.buf)
	k := copy(f.buf[end:], data)
	copy(f.buf, data[k:])
	f.n += len(data)
	return len(data)
}

// Read moves up to len(data) bytes out of the buffer
func (f *FifoBuffer) Read(data []byte) int {
	n := min(len(data), f.n)
	k := copy(data[:n], f.buf[f.start:])
	copy(data[k:n], f.buf)
	f.Pop(n)
	return n
}

// Available returns the number of buffered bytes
func (f *FifoBuffer) Available() int {
	return f.n
}

// Free returns the room left for Write
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.n
}

// Data returns the buffered bytes as one slice, valid until the next
// Write. Wrapped contents are rotated to the front first.
func (f *FifoBuffer) Data() []byte {
	if f.start+f.n > len(f.buf) {
		reverse(f.buf[:f.start])
		reverse(f.buf[f.start:])
		reverse(f.buf)
		f.start = 0
	}
	return f.buf[f.start : f.start+f.n]
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Pop drops n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	n = min(n, f.n)
	f.n -= n
	if f.n == 0 {
		f.start = 0
		return
	}
	f.start = (f.start + n) % len(f.buf)
}

// IsEmpty reports whether nothing is buffered
func (f *FifoBuffer) IsEmpty() bool {
	return f.n == 0
}

// Reset discards everything
func (f *FifoBuffer) Reset() {
	f.start = 0
	f.n = 0
}
