package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fzft/go-echo-reactor/deps/linenoise"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

var (
	EchoCliHisFileEnv     = "ECHOCLI_HISTFILE"
	EchoCliHisFileDefault = ".echocli_history"
	EchoCliDefaultTimeout = 5 * time.Second
)

type CliConnInfo struct {
	hostIp   string
	hostPort int
}

type EchoCliCfg struct {
	connInfo    *CliConnInfo
	timeout     time.Duration
	interactive bool
	prompt      string
}

// EchoCli is a command line client for the echo server: a REPL when stdin
// is a terminal, a pipe otherwise.
type EchoCli struct {
	config *EchoCliCfg
	client *EchoClient
	line   *linenoise.LineNoise

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func NewEchoCli() *EchoCli {
	return &EchoCli{
		config: &EchoCliCfg{
			connInfo: &CliConnInfo{hostIp: "127.0.0.1", hostPort: 18080},
			timeout:  EchoCliDefaultTimeout,
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (cli *EchoCli) Version(gitSHA1, gitDirty string) string {
	version := "1.0.0"
	// Add git commit and working tree status when available
	if sha1Int, err := strconv.ParseInt(gitSHA1, 16, 64); err == nil && sha1Int != 0 {
		version = fmt.Sprintf("%s (git:%s", version, gitSHA1)
		if dirtyInt, err := strconv.ParseInt(gitDirty, 10, 64); err == nil && dirtyInt != 0 {
			version = fmt.Sprintf("%s-dirty", version)
		}
		version = fmt.Sprintf("%s)", version)
	}
	return version
}

func (cli *EchoCli) Usage(out io.Writer, gitSHA1, gitDirty string) {
	fmt.Fprintf(out, `echo-cli %s

Usage: echo-cli [OPTIONS]
  -h <hostname>      Server hostname (default: 127.0.0.1).
  -p <port>          Server port (default: 18080).
  -t <timeout>       Connect and reply timeout (default: 5s, 0 waits forever).
  --version          Output version and exit.

When stdin is a terminal every line typed is sent to the server and the
echoed reply is printed. Otherwise stdin is streamed to the server, the
write side is closed on EOF and the echoed bytes are written to stdout.
`, cli.Version(gitSHA1, gitDirty))
}

// Run parses args (without the program name) and runs the client.
func (cli *EchoCli) Run(args []string, gitSHA1, gitDirty string) error {
	fs := flag.NewFlagSet("echo-cli", flag.ContinueOnError)
	fs.SetOutput(cli.stderr)
	fs.Usage = func() { cli.Usage(cli.stderr, gitSHA1, gitDirty) }
	fs.StringVar(&cli.config.connInfo.hostIp, "h", cli.config.connInfo.hostIp, "server hostname")
	fs.IntVar(&cli.config.connInfo.hostPort, "p", cli.config.connInfo.hostPort, "server port")
	fs.DurationVar(&cli.config.timeout, "t", cli.config.timeout, "timeout")
	version := fs.Bool("version", false, "print version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *version {
		fmt.Fprintf(cli.stdout, "echo-cli %s\n", cli.Version(gitSHA1, gitDirty))
		return nil
	}

	if f, ok := cli.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		cli.config.interactive = true
	}

	if err := cli.connect(); err != nil {
		if !cli.config.interactive {
			return err
		}
		fmt.Fprintf(cli.stderr, "Could not connect: %s\n", err)
	}
	defer cli.disconnect()

	if cli.config.interactive {
		return cli.repl()
	}
	_, err := cli.client.Pipe(cli.stdin, cli.stdout)
	return err
}

// connect (re)connects to the configured server.
func (cli *EchoCli) connect() error {
	cli.disconnect()
	client, err := Connect(cli.config.connInfo.hostIp, cli.config.connInfo.hostPort, cli.config.timeout)
	if err != nil {
		return err
	}
	cli.client = client
	cli.cliRefreshPrompt()
	return nil
}

func (cli *EchoCli) disconnect() {
	if cli.client != nil {
		cli.client.Close()
		cli.client = nil
	}
}

func (cli *EchoCli) repl() error {
	cli.line = linenoise.Open()
	defer cli.line.Close()

	historyFile := getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault)
	if historyFile != "" {
		cli.line.HistoryLoad(historyFile)
	}

	cli.cliRefreshPrompt()
	for {
		prompt := cli.config.prompt
		if cli.client == nil {
			prompt = "not connected> "
		}
		line, err := cli.line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		cli.line.AppendHistory(line)
		if historyFile != "" {
			cli.line.HistorySave(historyFile)
		}

		if done := cli.execute(line); done {
			return nil
		}
	}
}

// execute runs one REPL line and reports whether the session should end.
func (cli *EchoCli) execute(line string) bool {
	argv := cli.splitArgs(line)
	if cmd := lookupCommand(argv[0]); cmd != nil && len(argv)-1 >= cmd.minArgs {
		switch cmd.name {
		case "quit", "exit":
			return true
		case "help":
			printHelp(cli.stdout)
		case "clear":
			linenoise.ClearScreen(cli.stdout)
		case "connect":
			cli.config.connInfo.hostIp = argv[1]
			port, err := strconv.Atoi(argv[2])
			if err != nil {
				fmt.Fprintln(cli.stdout, "Invalid port number")
				return false
			}
			cli.config.connInfo.hostPort = port
			if err := cli.connect(); err != nil {
				fmt.Fprintf(cli.stdout, "Could not connect: %s\n", err)
			}
			cli.cliRefreshPrompt()
		}
		return false
	}

	if cli.client == nil {
		fmt.Fprintln(cli.stdout, "not connected, use: connect <host> <port>")
		return false
	}

	start := time.Now()
	reply, err := cli.client.Echo([]byte(line + "\n"))
	if err != nil {
		fmt.Fprintf(cli.stdout, "Error: %s\n", err)
		cli.disconnect()
		return false
	}
	fmt.Fprintf(cli.stdout, "%s (%.2fms)\n", strings.TrimSuffix(string(reply), "\n"), float64(time.Since(start).Microseconds())/1000)
	return false
}

func (cli *EchoCli) splitArgs(line string) []string {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return []string{""}
	}
	return argv
}

func (cli *EchoCli) cliRefreshPrompt() {
	cli.config.prompt = fmt.Sprintf("%s:%d> ", cli.config.connInfo.hostIp, cli.config.connInfo.hostPort)
}

func getDotfilePath(envOverride, dotFilename string) string {
	var dotPath string

	path := os.Getenv(envOverride)
	if path != "" {
		if path == "/dev/null" {
			return ""
		}
		dotPath = path
	} else {
		home := os.Getenv("HOME")
		if home != "" {
			dotPath = fmt.Sprintf("%s/%s", home, dotFilename)
		}
	}
	return dotPath
}
