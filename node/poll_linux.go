//go:build linux
// +build linux

package node

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/fzft/go-echo-reactor/db"
	"github.com/fzft/go-echo-reactor/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// https://copyconstruct.medium.com/the-method-to-epolls-madness-d9d2d6378642

const (
	readEvents   = unix.EPOLLPRI | unix.EPOLLIN
	writeEvents  = unix.EPOLLOUT
	hangupEvents = unix.EPOLLRDHUP

	// EPOLLET, kept untyped so it fits EpollEvent.Events
	epollET      = 0x80000000
	epollOneshot = unix.EPOLLONESHOT
)

type pipeSignal uint64

const (
	SignalStop pipeSignal = 1
)

// the eventfd is registered under an index the slab can never reach
const wakeIndex = ^uint32(0)

// Poller is the epoll backed Multiplexer. It keeps track of the fds that are
// registered so that Register and Reregister pick ADD or MOD correctly.
type Poller struct {
	epollFd  int
	efd      int
	epollSet map[int]uint32
	events   []unix.EpollEvent
}

var _ Multiplexer = (*Poller)(nil)

func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		log.Logger.Error("Failed to create epoll", zap.Error(err))
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		log.Logger.Error("Failed to create eventfd", zap.Error(err))
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	p := &Poller{
		epollFd:  epfd,
		efd:      efd,
		epollSet: make(map[int]uint32),
	}

	// the eventfd stays level triggered so a pending signal is never lost
	wake := db.NewToken(wakeIndex, 0)
	if err := p.ctl(unix.EPOLL_CTL_ADD, efd, wake, unix.EPOLLIN); err != nil {
		log.Logger.Error("Failed to add eventfd to epoll", zap.Error(err))
		_ = unix.Close(efd)
		_ = unix.Close(epfd)
		return nil, err
	}

	return p, nil
}

func epollEvents(interest Interest, mode Mode) uint32 {
	var events uint32
	if interest&Readable != 0 {
		events |= readEvents
	}
	if interest&Writable != 0 {
		events |= writeEvents
	}
	if interest&Hangup != 0 {
		events |= hangupEvents
	}
	if mode&Edge != 0 {
		events |= epollET
	}
	if mode&Oneshot != 0 {
		events |= epollOneshot
	}
	return events
}

func (p *Poller) ctl(op int, fd int, tok db.Token, events uint32) error {
	ev := &unix.EpollEvent{
		Events: events,
		Fd:     int32(tok.Index()),
		Pad:    int32(tok.Gen()),
	}
	var name string
	switch op {
	case unix.EPOLL_CTL_ADD:
		name = "epoll_ctl add"
	case unix.EPOLL_CTL_MOD:
		name = "epoll_ctl mod"
	default:
		name = "epoll_ctl"
	}
	return os.NewSyscallError(name, unix.EpollCtl(p.epollFd, op, fd, ev))
}

// Register adds fd to epoll. Registering an fd twice modifies it instead.
func (p *Poller) Register(fd int, tok db.Token, interest Interest, mode Mode) error {
	events := epollEvents(interest, mode)

	op := unix.EPOLL_CTL_ADD
	if _, ok := p.epollSet[fd]; ok {
		op = unix.EPOLL_CTL_MOD
	}
	if err := p.ctl(op, fd, tok, events); err != nil {
		return fmt.Errorf("register fd %d: %w", fd, err)
	}

	p.epollSet[fd] = events
	return nil
}

// Reregister replaces the events fd is armed for.
func (p *Poller) Reregister(fd int, tok db.Token, interest Interest, mode Mode) error {
	if _, ok := p.epollSet[fd]; !ok {
		return fmt.Errorf("reregister fd %d: %w", fd, unix.ENOENT)
	}

	events := epollEvents(interest, mode)
	if err := p.ctl(unix.EPOLL_CTL_MOD, fd, tok, events); err != nil {
		return fmt.Errorf("reregister fd %d: %w", fd, err)
	}

	p.epollSet[fd] = events
	return nil
}

// Deregister removes fd from epoll. Unknown fds are ignored.
func (p *Poller) Deregister(fd int) error {
	if _, ok := p.epollSet[fd]; !ok {
		return nil
	}

	err := unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return fmt.Errorf("deregister fd %d: %w", fd, os.NewSyscallError("epoll_ctl del", err))
	}

	delete(p.epollSet, fd)
	return nil
}

// Poll waits for events and translates them. A stop signal on the eventfd
// ends the batch with ErrSignalStopped.
func (p *Poller) Poll(events []Event, msec int) (int, error) {
	if cap(p.events) < len(events) {
		p.events = make([]unix.EpollEvent, len(events))
	}
	raw := p.events[:len(events)]

	// EpollWait blocks until there is an event to report
	// n == 0: the call timed out
	n, err := unix.EpollWait(p.epollFd, raw, msec)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		log.Logger.Error("epoll wait error", zap.Error(err))
		return 0, os.NewSyscallError("epoll_wait", err)
	}

	filled := 0
	for i := 0; i < n; i++ {
		ev := &raw[i]
		tok := db.NewToken(uint32(ev.Fd), uint32(ev.Pad))

		if tok.Index() == wakeIndex {
			if err := p.handleSignal(); err != nil {
				return filled, err
			}
			continue
		}

		events[filled] = Event{
			Token:    tok,
			Readable: ev.Events&readEvents != 0,
			Writable: ev.Events&writeEvents != 0,
			Hangup:   ev.Events&(unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0,
		}
		filled++
	}
	return filled, nil
}

// handleSignal drains the eventfd.
func (p *Poller) handleSignal() error {
	var buf uint64
	_, err := unix.Read(p.efd, (*(*[8]byte)(unsafe.Pointer(&buf)))[:])
	if err != nil {
		if IsTemporaryError(err) {
			return nil
		}
		log.Logger.Error("Failed to read from event fd", zap.Error(err))
		return nil
	}

	// eventfd adds up pending writes
	if pipeSignal(buf) >= SignalStop {
		return ErrSignalStopped
	}
	return nil
}

// Wake sends sig to the goroutine blocked in Poll. Safe to call from any goroutine.
func (p *Poller) Wake(sig pipeSignal) error {
	_, err := unix.Write(p.efd, (*(*[8]byte)(unsafe.Pointer(&sig)))[:])
	if err != nil {
		log.Logger.Error("Failed to write to event fd", zap.Error(err))
		return os.NewSyscallError("write eventfd", err)
	}
	return nil
}

// Close releases the eventfd and the epoll instance. Registered fds are
// owned by their callers and are not closed here.
func (p *Poller) Close() error {
	var errs error
	if err := unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_DEL, p.efd, nil); err != nil {
		log.Logger.Debug("Failed to delete eventfd from epoll", zap.Error(err))
	}
	errs = multierr.Append(errs, CloseFd(p.efd))
	errs = multierr.Append(errs, CloseFd(p.epollFd))
	p.epollSet = make(map[int]uint32)
	return errs
}
