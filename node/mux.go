package node

import (
	"net"

	"github.com/fzft/go-echo-reactor/db"
)

// ListenerToken is the token the listening socket is registered under.
// The connection table never hands it out.
const ListenerToken = db.Token(0)

// Event is one entry of a poll batch.
type Event struct {
	Token    db.Token
	Readable bool
	Writable bool
	Hangup   bool
}

// Multiplexer is the readiness notification primitive the reactor runs on.
type Multiplexer interface {
	Register(fd int, tok db.Token, interest Interest, mode Mode) error

	// Reregister replaces the interest set of fd. With Oneshot it must be
	// called after every delivered event for fd to be reported again.
	Reregister(fd int, tok db.Token, interest Interest, mode Mode) error

	Deregister(fd int) error

	// Poll blocks until events are ready or timeout (ms, -1 forever)
	// elapses and fills events, returning how many were filled.
	Poll(events []Event, timeout int) (int, error)

	Close() error
}

// Socket is a non-blocking stream socket. TryRead and TryWrite return
// iox.ErrWouldBlock when no progress can be made right now; TryRead
// returns 0, nil at end of stream.
type Socket interface {
	Fd() int
	TryRead(p []byte) (int, error)
	TryWrite(p []byte) (int, error)
	SetNoDelay(noDelay bool) error
	RemoteAddr() net.Addr
	Close() error
}

// Listener accepts non-blocking sockets. Accept returns iox.ErrWouldBlock
// once the backlog is drained.
type Listener interface {
	Fd() int
	Accept() (Socket, error)
	Addr() net.Addr
	Close() error
}
