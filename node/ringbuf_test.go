package node

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func write(r *RingBuf, p []byte) int {
	total := 0
	for len(p) > 0 && r.Free() > 0 {
		n := copy(r.FreeSpace(), p)
		r.Fill(n)
		p = p[n:]
		total += n
	}
	return total
}

func drain(r *RingBuf, max int) []byte {
	var out []byte
	for r.Len() > 0 && len(out) < max {
		span := r.DataToWrite()
		if len(span) > max-len(out) {
			span = span[:max-len(out)]
		}
		out = append(out, span...)
		r.Next(len(span))
	}
	return out
}

func TestRingBufEmpty(t *testing.T) {
	r := NewRingBuf(8)

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 8, r.Free())
	assert.Len(t, r.DataToWrite(), 0)
	assert.Len(t, r.FreeSpace(), 8)
}

func TestRingBufFull(t *testing.T) {
	r := NewRingBuf(8)

	assert.Equal(t, 8, write(r, []byte("0123456789")))
	assert.Equal(t, 0, r.Free())
	assert.Len(t, r.FreeSpace(), 0)
	assert.Equal(t, []byte("01234567"), r.DataToWrite())
}

func TestRingBufWrapAround(t *testing.T) {
	r := NewRingBuf(8)

	write(r, []byte("abcdef"))
	assert.Equal(t, []byte("abcd"), drain(r, 4))

	// tail is at 6, head at 4: free span runs to the end first
	assert.Len(t, r.FreeSpace(), 2)
	assert.Equal(t, 6, write(r, []byte("ghijkl")))
	assert.Equal(t, 0, r.Free())

	// readable span stops at the physical end
	assert.Equal(t, []byte("efgh"), r.DataToWrite())
	assert.Equal(t, []byte("efghijkl"), drain(r, 100))
	assert.Equal(t, 0, r.Len())
}

func TestRingBufOrderPreserved(t *testing.T) {
	r := NewRingBuf(7)
	src := bytes.Repeat([]byte("0123456789abcdef"), 64)

	var out []byte
	in := src
	for len(in) > 0 || r.Len() > 0 {
		n := write(r, in[:min(len(in), 5)])
		in = in[n:]
		out = append(out, drain(r, 3)...)
	}
	assert.Equal(t, src, out)
}

func TestRingBufReset(t *testing.T) {
	r := NewRingBuf(4)
	write(r, []byte("abc"))
	r.Next(1)

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Len(t, r.FreeSpace(), 4)
}

func TestRingBufBounds(t *testing.T) {
	r := NewRingBuf(4)
	write(r, []byte("ab"))

	assert.Panics(t, func() { r.Next(3) })
	assert.Panics(t, func() { r.Fill(3) })
	assert.Panics(t, func() { NewRingBuf(0) })
}
