package node

import (
	"fmt"

	"github.com/fzft/go-echo-reactor/db"
	"github.com/fzft/go-echo-reactor/log"
	"go.uber.org/zap"
)

// connMode is how every connection socket is registered.
const connMode = Edge | Oneshot

// Conn is one accepted client. Everything it reads is buffered in buf and
// written back to the same socket.
//
// Conn is not safe for concurrent use; it is only touched from the reactor
// goroutine.
type Conn struct {
	sock           Socket
	buf            *RingBuf
	token          db.Token
	peerHalfClosed bool
	hangupSeen     bool
	interest       Interest
	finished       bool

	// bytesIn and bytesOut count what went through the socket.
	bytesIn  uint64
	bytesOut uint64
}

// NewConn wraps sock with an empty buffer of bufSize bytes. The token is
// set by the server once the conn has a slot.
func NewConn(sock Socket, bufSize int) *Conn {
	return &Conn{
		sock:     sock,
		buf:      NewRingBuf(bufSize),
		interest: Readable | Hangup,
	}
}

func (c *Conn) Token() db.Token {
	return c.token
}

func (c *Conn) Interest() Interest {
	return c.interest
}

func (c *Conn) PeerHalfClosed() bool {
	return c.peerHalfClosed
}

// Finished reports whether the conn was deregistered and must be removed.
func (c *Conn) Finished() bool {
	return c.finished
}

// Buffered returns the number of bytes waiting to be echoed.
func (c *Conn) Buffered() int {
	return c.buf.Len()
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s, fd %d, %v", c.token, c.sock.Fd(), c.sock.RemoteAddr())
}

func (c *Conn) logger() *zap.Logger {
	return log.Logger.With(
		zap.Stringer("token", c.token),
		zap.Int("fd", c.sock.Fd()),
	)
}

// register arms the freshly accepted socket for its initial interest.
func (c *Conn) register(mux Multiplexer) error {
	return mux.Register(c.sock.Fd(), c.token, c.interest, connMode)
}

// readable drains the socket into the free space of the buffer. End of
// stream and read errors both mean the peer will send nothing more.
func (c *Conn) readable(mux Multiplexer) error {
	if c.finished {
		return nil
	}
	c.fill()
	return c.rearm(mux)
}

func (c *Conn) fill() {
	first := true
	for !c.peerHalfClosed && c.buf.Free() > 0 {
		span := c.buf.FreeSpace()
		n, err := c.sock.TryRead(span)
		if err != nil {
			if IsTemporaryError(err) {
				if first {
					c.logger().Debug("spurious readable event")
				}
				return
			}
			c.logger().Debug("read error, treating as hangup", zap.Error(err))
			c.peerHalfClosed = true
			return
		}
		first = false

		if n == 0 {
			c.logger().Debug("peer closed its write side")
			c.peerHalfClosed = true
			return
		}

		c.buf.Fill(n)
		c.bytesIn += uint64(n)
		if n < len(span) {
			// short read; a re-arm reports anything that arrives later
			return
		}
	}
}

// writable drains the buffer into the socket. A write error drops whatever
// is still buffered and treats the peer as gone.
func (c *Conn) writable(mux Multiplexer) error {
	if c.finished {
		return nil
	}
	c.flush()
	return c.rearm(mux)
}

func (c *Conn) flush() {
	for c.buf.Len() > 0 {
		span := c.buf.DataToWrite()
		n, err := c.sock.TryWrite(span)
		if err != nil {
			if IsTemporaryError(err) {
				return
			}
			c.logger().Debug("write error, discarding buffered data",
				zap.Int("bytes", c.buf.Len()), zap.Error(err))
			c.buf.Reset()
			c.peerHalfClosed = true
			return
		}

		c.buf.Next(n)
		c.bytesOut += uint64(n)
		if n < len(span) {
			return
		}
	}
}

// hangup handles the peer's half close. Bytes sent before the FIN are still
// pulled into the buffer so they get echoed. If nothing is left to flush the
// conn is torn down right away, otherwise it stays armed for writing until
// the buffer drains.
func (c *Conn) hangup(mux Multiplexer) error {
	if c.finished {
		return nil
	}
	c.hangupSeen = true
	c.fill()
	return c.rearm(mux)
}

// rearm recomputes the interest set and hands it to the multiplexer. An
// empty set deregisters the socket and finishes the conn.
//
// Once a hangup was delivered it is not armed again: epoll keeps reporting
// RDHUP on every re-arm while the condition holds, and EPOLLHUP/EPOLLERR
// are reported regardless of the armed set.
func (c *Conn) rearm(mux Multiplexer) error {
	c.interest = RecomputeInterest(c.buf.Len(), c.buf.Free(), c.peerHalfClosed)
	if c.hangupSeen {
		c.interest &^= Hangup
	}

	if c.interest.IsEmpty() {
		c.finished = true
		c.logger().Debug("deregister")
		if err := mux.Deregister(c.sock.Fd()); err != nil {
			return fmt.Errorf("conn %s: %w", c.token, err)
		}
		return nil
	}

	if err := mux.Reregister(c.sock.Fd(), c.token, c.interest, connMode); err != nil {
		return fmt.Errorf("conn %s: %w", c.token, err)
	}
	return nil
}

// Close releases the socket.
func (c *Conn) Close() error {
	return c.sock.Close()
}
