package node

import (
	"errors"
	"os"

	"github.com/fzft/go-echo-reactor/log"
	"go.uber.org/zap"
)

// Reactor drives a Server for the lifetime of the process: the event loop
// runs on its own goroutine and an OS signal stops it.
type Reactor struct {
	server *Server
	doneCh chan struct{}
	signal chan os.Signal
	err    error
}

func NewReactor(server *Server, signal chan os.Signal) *Reactor {
	return &Reactor{
		server: server,
		doneCh: make(chan struct{}),
		signal: signal,
	}
}

// Run starts the server and blocks until it stops. A stop caused by a
// signal is not an error.
func (r *Reactor) Run() error {
	if err := r.server.Listen(); err != nil {
		return err
	}

	go func() {
		defer close(r.doneCh)
		r.err = r.server.Serve()
	}()
	defer log.Logger.Info("reactor closed")

	select {
	case <-r.doneCh:
	case sig := <-r.signal:
		log.Logger.Info("signal received", zap.Stringer("signal", sig))
		if err := r.server.Stop(); err != nil {
			return err
		}
		<-r.doneCh
	}

	if errors.Is(r.err, ErrServerClosed) {
		return nil
	}
	return r.err
}
