package node

import (
	"bytes"
	"net"

	"code.hybscloud.com/iox"
	"github.com/fzft/go-echo-reactor/db"
)

// fakeSocket serves scripted reads and records writes.
type fakeSocket struct {
	fd      int
	chunks  [][]byte // pending inbound data, one chunk per read at most
	eof     bool     // after chunks are consumed reads return 0
	readErr error    // after chunks are consumed reads fail

	out      bytes.Buffer
	window   int // bytes writable before would-block, -1 unlimited
	writeErr error

	noDelay bool
	closed  bool
}

func newFakeSocket(fd int) *fakeSocket {
	return &fakeSocket{fd: fd, window: -1}
}

func (s *fakeSocket) feed(p string) {
	s.chunks = append(s.chunks, []byte(p))
}

func (s *fakeSocket) Fd() int {
	return s.fd
}

func (s *fakeSocket) TryRead(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		switch {
		case s.readErr != nil:
			return 0, s.readErr
		case s.eof:
			return 0, nil
		default:
			return 0, iox.ErrWouldBlock
		}
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if len(s.chunks[0]) == 0 {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *fakeSocket) TryWrite(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.window == 0 {
		return 0, iox.ErrWouldBlock
	}
	n := len(p)
	if s.window > 0 && n > s.window {
		n = s.window
	}
	if s.window > 0 {
		s.window -= n
	}
	s.out.Write(p[:n])
	return n, nil
}

func (s *fakeSocket) SetNoDelay(noDelay bool) error {
	s.noDelay = noDelay
	return nil
}

func (s *fakeSocket) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000 + s.fd}
}

func (s *fakeSocket) Close() error {
	s.closed = true
	return nil
}

type registration struct {
	tok      db.Token
	interest Interest
	mode     Mode
}

// fakeMux records registrations and replays queued poll batches.
type fakeMux struct {
	armed        map[int]registration
	reregistered int
	deregistered []int
	batches      [][]Event
	registerErr  error
	closed       bool
}

func newFakeMux() *fakeMux {
	return &fakeMux{armed: make(map[int]registration)}
}

func (m *fakeMux) Register(fd int, tok db.Token, interest Interest, mode Mode) error {
	if m.registerErr != nil {
		return m.registerErr
	}
	m.armed[fd] = registration{tok, interest, mode}
	return nil
}

func (m *fakeMux) Reregister(fd int, tok db.Token, interest Interest, mode Mode) error {
	if m.registerErr != nil {
		return m.registerErr
	}
	m.reregistered++
	m.armed[fd] = registration{tok, interest, mode}
	return nil
}

func (m *fakeMux) Deregister(fd int) error {
	delete(m.armed, fd)
	m.deregistered = append(m.deregistered, fd)
	return nil
}

func (m *fakeMux) Poll(events []Event, _ int) (int, error) {
	if len(m.batches) == 0 {
		return 0, ErrSignalStopped
	}
	n := copy(events, m.batches[0])
	m.batches = m.batches[1:]
	return n, nil
}

func (m *fakeMux) Close() error {
	m.closed = true
	return nil
}

// fakeListener hands out queued sockets.
type fakeListener struct {
	fd      int
	pending []*fakeSocket
	closed  bool
}

func (l *fakeListener) Fd() int {
	return l.fd
}

func (l *fakeListener) Accept() (Socket, error) {
	if len(l.pending) == 0 {
		return nil, iox.ErrWouldBlock
	}
	s := l.pending[0]
	l.pending = l.pending[1:]
	return s, nil
}

func (l *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 18080}
}

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}
