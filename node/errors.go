package node

import (
	"errors"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

var (
	// ErrSignalStopped is returned by Poll when a stop signal was received.
	ErrSignalStopped = errors.New("signal stopped")

	// ErrServerClosed is returned by Serve after Stop.
	ErrServerClosed = errors.New("server closed")
)

// IsTemporaryError reports whether err means "no progress now": the iox
// would-block sentinel or a raw EAGAIN/EWOULDBLOCK.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	return iox.IsWouldBlock(err) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
