package node

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/fzft/go-echo-reactor/db"
	"github.com/fzft/go-echo-reactor/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// waker is implemented by multiplexers that can interrupt a blocked Poll.
type waker interface {
	Wake(sig pipeSignal) error
}

// Stats is a snapshot of the server counters.
type Stats struct {
	Active       int64
	Accepted     uint64
	Rejected     uint64
	Closed       uint64
	BytesRead    uint64
	BytesWritten uint64
}

type counters struct {
	active       atomic.Int64
	accepted     atomic.Uint64
	rejected     atomic.Uint64
	closed       atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// Server accepts clients on one listener and echoes their bytes back, all
// from the goroutine that runs Serve.
type Server struct {
	cfg     Config
	ln      Listener
	mux     Multiplexer
	conns   *db.Slab[*Conn]
	events  []Event
	stats   counters
	stopped atomic.Bool

	listening bool
}

// Option customizes a Server.
type Option func(*Server)

// WithListener makes the server use ln instead of opening cfg.Addr.
func WithListener(ln Listener) Option {
	return func(s *Server) {
		s.ln = ln
	}
}

// WithMultiplexer makes the server use mux instead of an epoll poller.
func WithMultiplexer(mux Multiplexer) Option {
	return func(s *Server) {
		s.mux = mux
	}
}

func NewServer(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		conns:  db.NewSlab[*Conn](cfg.MaxConns),
		events: make([]Event, cfg.MaxEvents),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen opens the listener and the poller and registers the listener.
// Calling it again after a successful call does nothing.
func (s *Server) Listen() error {
	if s.listening {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	if s.ln == nil {
		ln, err := Listen(s.cfg.Addr, s.cfg.Backlog)
		if err != nil {
			log.Logger.Error("listen error", zap.String("addr", s.cfg.Addr), zap.Error(err))
			return err
		}
		s.ln = ln
	}

	if s.mux == nil {
		p, err := NewPoller()
		if err != nil {
			_ = s.ln.Close()
			return err
		}
		s.mux = p
	}

	// level triggered: a backlog left behind is reported again
	if err := s.mux.Register(s.ln.Fd(), ListenerToken, Readable, Level); err != nil {
		log.Logger.Error("Failed to add listener to epoll", zap.Error(err))
		_ = s.ln.Close()
		_ = s.mux.Close()
		return err
	}

	s.listening = true
	log.Logger.Info("listening", zap.Stringer("addr", s.ln.Addr()))
	return nil
}

// Addr returns the listener's address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe calls Listen then Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the event loop until Stop is called or the multiplexer fails.
// Everything is closed before it returns. After Stop it returns ErrServerClosed.
func (s *Server) Serve() error {
	defer func() {
		if cerr := s.closeGracefully(); cerr != nil {
			log.Logger.Warn("close error", zap.Error(cerr))
		}
	}()

	for {
		if s.stopped.Load() {
			return ErrServerClosed
		}

		n, err := s.mux.Poll(s.events, -1)
		if err != nil {
			if errors.Is(err, ErrSignalStopped) {
				log.Logger.Info("Received stop signal. Exiting event loop.")
				return ErrServerClosed
			}
			return err
		}

		for i := 0; i < n; i++ {
			if err := s.dispatch(s.events[i]); err != nil {
				log.Logger.Error("Failed to process event", zap.Error(err))
				return err
			}
		}
	}
}

// Stop asks a running Serve to return. Safe to call from any goroutine.
func (s *Server) Stop() error {
	if s.stopped.Swap(true) {
		return nil
	}
	if w, ok := s.mux.(waker); ok {
		return w.Wake(SignalStop)
	}
	return nil
}

// dispatch routes one event. Connection handlers run hangup, readable,
// writable in that order against the same event.
func (s *Server) dispatch(ev Event) error {
	if ev.Token == ListenerToken {
		return s.accept()
	}

	if !s.conns.Contains(ev.Token) {
		log.Logger.Debug("event for unknown token", zap.Stringer("token", ev.Token))
		return nil
	}
	c := s.conns.Get(ev.Token)

	if ev.Hangup {
		if err := c.hangup(s.mux); err != nil {
			return err
		}
	}
	if ev.Readable {
		if err := c.readable(s.mux); err != nil {
			return err
		}
	}
	if ev.Writable {
		if err := c.writable(s.mux); err != nil {
			return err
		}
	}

	if c.Finished() {
		s.release(c)
	}
	return nil
}

// accept drains the listener's backlog.
func (s *Server) accept() error {
	for {
		sock, err := s.ln.Accept()
		if err != nil {
			if IsTemporaryError(err) {
				return nil
			}
			log.Logger.Warn("accept error", zap.Error(err))
			return nil
		}
		s.stats.accepted.Add(1)

		if err := sock.SetNoDelay(true); err != nil {
			log.Logger.Debug("set nodelay error", zap.Int("fd", sock.Fd()), zap.Error(err))
		}

		c := NewConn(sock, s.cfg.BufferSize)
		tok, err := s.conns.Insert(c)
		if err != nil {
			log.Logger.Warn("connection table full, dropping connection",
				zap.Stringer("remote", sock.RemoteAddr()), zap.Int("max", s.conns.Cap()))
			s.stats.rejected.Add(1)
			if cerr := sock.Close(); cerr != nil {
				log.Logger.Debug("close error", zap.Error(cerr))
			}
			continue
		}
		c.token = tok

		if err := c.register(s.mux); err != nil {
			s.conns.Remove(tok)
			_ = sock.Close()
			return fmt.Errorf("register conn %s: %w", tok, err)
		}
		s.stats.active.Add(1)

		log.Logger.Debug("new connection",
			zap.Stringer("token", tok), zap.Int("fd", sock.Fd()), zap.Stringer("remote", sock.RemoteAddr()))
	}
}

// release removes a finished conn from the table and closes its socket.
func (s *Server) release(c *Conn) {
	s.conns.Remove(c.token)
	s.stats.active.Add(-1)
	s.stats.closed.Add(1)
	s.stats.bytesRead.Add(c.bytesIn)
	s.stats.bytesWritten.Add(c.bytesOut)

	log.Logger.Debug("dropping connection", zap.Stringer("conn", c))
	if err := c.Close(); err != nil {
		log.Logger.Debug("close error", zap.Stringer("token", c.token), zap.Error(err))
	}
}

// Len returns the number of live connections.
func (s *Server) Len() int {
	return int(s.stats.active.Load())
}

// Stats returns the current counters. Byte counts cover closed connections.
func (s *Server) Stats() Stats {
	return Stats{
		Active:       s.stats.active.Load(),
		Accepted:     s.stats.accepted.Load(),
		Rejected:     s.stats.rejected.Load(),
		Closed:       s.stats.closed.Load(),
		BytesRead:    s.stats.bytesRead.Load(),
		BytesWritten: s.stats.bytesWritten.Load(),
	}
}

// closeGracefully order: listener, connections, poller
// prevent the fd leak
func (s *Server) closeGracefully() error {
	var errs error

	if s.ln != nil {
		errs = multierr.Append(errs, s.mux.Deregister(s.ln.Fd()))
		errs = multierr.Append(errs, s.ln.Close())
	}

	var live []*Conn
	s.conns.Each(func(_ db.Token, c *Conn) {
		live = append(live, c)
	})
	for _, c := range live {
		if !c.Finished() {
			errs = multierr.Append(errs, s.mux.Deregister(c.sock.Fd()))
		}
		s.conns.Remove(c.token)
		s.stats.active.Add(-1)
		errs = multierr.Append(errs, c.Close())
	}

	errs = multierr.Append(errs, s.mux.Close())
	log.Logger.Info("server closed", zap.Int("connections", len(live)))
	return errs
}
