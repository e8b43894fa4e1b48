//go:build linux
// +build linux

package node

import (
	"fmt"
	"net"
	"os"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

// fdSocket is a non-blocking TCP socket owned by the reactor.
type fdSocket struct {
	fd     int
	remote net.Addr
}

var _ Socket = (*fdSocket)(nil)

func (s *fdSocket) Fd() int {
	return s.fd
}

func (s *fdSocket) TryRead(p []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, iox.ErrWouldBlock
		default:
			return 0, os.NewSyscallError("read", err)
		}
	}
}

func (s *fdSocket) TryWrite(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, iox.ErrWouldBlock
		default:
			return 0, os.NewSyscallError("write", err)
		}
	}
}

// SetNoDelay toggles Nagle's algorithm.
func (s *fdSocket) SetNoDelay(noDelay bool) error {
	v := 0
	if noDelay {
		v = 1
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v))
}

func (s *fdSocket) RemoteAddr() net.Addr {
	return s.remote
}

func (s *fdSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return os.NewSyscallError("close", err)
}

func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3]), Port: addr.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, addr.Addr[:])
		return &net.TCPAddr{IP: ip, Port: addr.Port}
	default:
		return nil
	}
}

// tcpListener is a non-blocking listening socket.
type tcpListener struct {
	fd   int
	addr net.Addr
}

var _ Listener = (*tcpListener)(nil)

// Listen opens a non-blocking, close-on-exec TCP listener on addr with
// SO_REUSEADDR set.
func Listen(addr string, backlog int) (Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}

	domain := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa = sa4
	} else {
		domain = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP.To16())
		sa = sa6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	// port 0 binds are resolved by the kernel
	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("getsockname", err)
	}

	return &tcpListener{fd: fd, addr: sockaddrToTCPAddr(bound)}, nil
}

func (l *tcpListener) Fd() int {
	return l.fd
}

func (l *tcpListener) Addr() net.Addr {
	return l.addr
}

// Accept accepts one pending connection as a non-blocking socket.
func (l *tcpListener) Accept() (Socket, error) {
	for {
		connFd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
			return &fdSocket{fd: connFd, remote: sockaddrToTCPAddr(sa)}, nil
		case err == unix.EINTR, err == unix.ECONNABORTED:
			// the peer gave up before we got to it, try the next one
			continue
		case err == unix.EAGAIN:
			return nil, iox.ErrWouldBlock
		default:
			return nil, os.NewSyscallError("accept4", err)
		}
	}
}

func (l *tcpListener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return os.NewSyscallError("close", err)
}
