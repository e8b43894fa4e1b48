package node

import (
	"errors"
	"fmt"
	"net"
)

const (
	DefaultAddr      = "127.0.0.1:18080"
	DefaultBacklog   = 256
	DefaultMaxConns  = 256
	DefaultMaxEvents = 128
)

// Config holds everything the server needs to start.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string

	// Backlog is the listen(2) backlog.
	Backlog int

	// MaxConns bounds the connection table. Connections accepted beyond it
	// are closed right away.
	MaxConns int

	// BufferSize is the per-connection echo buffer capacity in bytes.
	BufferSize int

	// MaxEvents is the size of one poll batch.
	MaxEvents int

	LogLevel    string
	Development bool
}

func DefaultConfig() Config {
	return Config{
		Addr:       DefaultAddr,
		Backlog:    DefaultBacklog,
		MaxConns:   DefaultMaxConns,
		BufferSize: DefaultBufferSize,
		MaxEvents:  DefaultMaxEvents,
		LogLevel:   "info",
	}
}

func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("invalid backlog %d", c.Backlog)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("invalid max conns %d", c.MaxConns)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid buffer size %d", c.BufferSize)
	}
	if c.MaxEvents <= 0 {
		return errors.New("max events must be positive")
	}
	return nil
}
