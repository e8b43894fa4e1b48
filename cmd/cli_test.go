package cmd

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fzft/go-echo-reactor/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) (string, int) {
	t.Helper()
	cfg := node.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := node.NewServer(cfg)
	require.NoError(t, s.Listen())

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
		<-done
	})

	addr := s.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestClientEcho(t *testing.T) {
	host, port := startEchoServer(t)
	c, err := Connect(host, port, 5*time.Second)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Echo([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(reply))
}

func TestClientPipe(t *testing.T) {
	host, port := startEchoServer(t)
	c, err := Connect(host, port, 5*time.Second)
	require.NoError(t, err)
	defer c.Close()

	in := strings.Repeat("line of input\n", 5000)
	var out bytes.Buffer
	n, err := c.Pipe(strings.NewReader(in), &out)

	require.NoError(t, err)
	assert.Equal(t, int64(len(in)), n)
	assert.Equal(t, in, out.String())
}

func TestCliPipeMode(t *testing.T) {
	host, port := startEchoServer(t)

	var out, errOut bytes.Buffer
	cli := NewEchoCli()
	cli.stdin = strings.NewReader("abc")
	cli.stdout = &out
	cli.stderr = &errOut

	err := cli.Run([]string{"-h", host, "-p", strconv.Itoa(port)}, "0", "0")

	require.NoError(t, err)
	assert.Equal(t, "abc", out.String())
}

func TestCliConnectError(t *testing.T) {
	var out, errOut bytes.Buffer
	cli := NewEchoCli()
	cli.stdin = strings.NewReader("abc")
	cli.stdout = &out
	cli.stderr = &errOut

	// nothing listens on port 1
	err := cli.Run([]string{"-h", "127.0.0.1", "-p", "1", "-t", "1s"}, "0", "0")
	assert.Error(t, err)
}

func TestCliExecute(t *testing.T) {
	host, port := startEchoServer(t)

	var out bytes.Buffer
	cli := NewEchoCli()
	cli.stdout = &out
	cli.config.connInfo.hostIp = host
	cli.config.connInfo.hostPort = port
	require.NoError(t, cli.connect())
	defer cli.disconnect()

	assert.False(t, cli.execute("hello world"))
	assert.Contains(t, out.String(), "hello world (")

	out.Reset()
	assert.False(t, cli.execute("help"))
	assert.Contains(t, out.String(), "connect")

	out.Reset()
	assert.False(t, cli.execute("connect 127.0.0.1 notaport"))
	assert.Contains(t, out.String(), "Invalid port number")

	assert.True(t, cli.execute("QUIT"))
}

func TestCliVersion(t *testing.T) {
	cli := NewEchoCli()

	assert.Equal(t, "1.0.0", cli.Version("0", "0"))
	assert.Equal(t, "1.0.0 (git:abc123)", cli.Version("abc123", "0"))
	assert.Equal(t, "1.0.0 (git:abc123-dirty)", cli.Version("abc123", "1"))
}

func TestCliVersionFlag(t *testing.T) {
	var out bytes.Buffer
	cli := NewEchoCli()
	cli.stdout = &out

	require.NoError(t, cli.Run([]string{"--version"}, "0", "0"))
	assert.Equal(t, "echo-cli 1.0.0\n", out.String())
}

func TestGetDotfilePath(t *testing.T) {
	t.Setenv("ECHOCLI_HISTFILE", "/tmp/hist")
	assert.Equal(t, "/tmp/hist", getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault))

	t.Setenv("ECHOCLI_HISTFILE", "/dev/null")
	assert.Equal(t, "", getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault))

	t.Setenv("ECHOCLI_HISTFILE", "")
	t.Setenv("HOME", "/home/echo")
	assert.Equal(t, "/home/echo/.echocli_history", getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault))
}
