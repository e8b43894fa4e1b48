package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// EchoClient is a blocking client for the echo server.
type EchoClient struct {
	conn    *net.TCPConn
	timeout time.Duration
}

// Connect dials host:port. A zero timeout waits forever.
func Connect(host string, port int, timeout time.Duration) (*EchoClient, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("connect %s: not a tcp connection", addr)
	}
	if err := tcp.SetKeepAlive(true); err != nil {
		tcp.Close()
		return nil, err
	}
	return &EchoClient{conn: tcp, timeout: timeout}, nil
}

func (c *EchoClient) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Echo sends p and waits until the same number of bytes came back.
func (c *EchoClient) Echo(p []byte) ([]byte, error) {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	if _, err := c.conn.Write(p); err != nil {
		return nil, err
	}
	reply := make([]byte, len(p))
	if _, err := io.ReadFull(c.conn, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Pipe copies r to the server, half closes on EOF, and copies everything
// echoed back to w until the server closes. It returns the bytes received.
func (c *EchoClient) Pipe(r io.Reader, w io.Writer) (int64, error) {
	sendErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(c.conn, r)
		if cerr := c.conn.CloseWrite(); err == nil {
			err = cerr
		}
		sendErr <- err
	}()

	n, err := io.Copy(w, c.conn)
	if serr := <-sendErr; serr != nil && !errors.Is(serr, net.ErrClosed) {
		return n, serr
	}
	return n, err
}

func (c *EchoClient) Close() error {
	return c.conn.Close()
}
