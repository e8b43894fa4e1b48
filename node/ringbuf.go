package node

import "fmt"

// DefaultBufferSize is the per-connection echo buffer capacity.
const DefaultBufferSize = 16 * 1024

// Buffer is the read side of a connection's pending output.
type Buffer interface {
	// DataToWrite returns the contiguous span of bytes waiting to be written.
	DataToWrite() []byte

	Next(n int)

	Len() int
}

// RingBuf is a fixed-capacity circular byte buffer. Bytes are appended
// through FreeSpace/Fill and consumed through DataToWrite/Next.
type RingBuf struct {
	buf  []byte
	head int // index of the first unread byte
	size int // number of unread bytes
}

var _ Buffer = (*RingBuf)(nil)

func NewRingBuf(capacity int) *RingBuf {
	if capacity <= 0 {
		panic(fmt.Sprintf("ringbuf: invalid capacity %d", capacity))
	}
	return &RingBuf{buf: make([]byte, capacity)}
}

// DataToWrite returns the unread bytes up to the physical end of the buffer.
// When the data wraps, the remainder is returned after Next consumes this span.
func (r *RingBuf) DataToWrite() []byte {
	end := r.head + r.size
	if end > len(r.buf) {
		end = len(r.buf)
	}
	return r.buf[r.head:end]
}

// Next consumes n unread bytes.
func (r *RingBuf) Next(n int) {
	if n < 0 || n > r.size {
		panic(fmt.Sprintf("ringbuf: next %d with %d buffered", n, r.size))
	}
	r.size -= n
	if r.size == 0 {
		r.head = 0
		return
	}
	r.head = (r.head + n) % len(r.buf)
}

// FreeSpace returns the contiguous writable span following the unread bytes.
func (r *RingBuf) FreeSpace() []byte {
	if r.size == len(r.buf) {
		return r.buf[:0]
	}
	tail := (r.head + r.size) % len(r.buf)
	if tail < r.head {
		return r.buf[tail:r.head]
	}
	return r.buf[tail:]
}

// Fill commits n bytes that were copied into FreeSpace.
func (r *RingBuf) Fill(n int) {
	if n < 0 || n > r.Free() {
		panic(fmt.Sprintf("ringbuf: fill %d with %d free", n, r.Free()))
	}
	r.size += n
}

func (r *RingBuf) Len() int {
	return r.size
}

func (r *RingBuf) Free() int {
	return len(r.buf) - r.size
}

func (r *RingBuf) Cap() int {
	return len(r.buf)
}

// Reset discards every unread byte.
func (r *RingBuf) Reset() {
	r.head = 0
	r.size = 0
}
