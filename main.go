package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fzft/go-echo-reactor/log"
	"github.com/fzft/go-echo-reactor/node"
	"go.uber.org/zap"
)

func main() {
	cfg := node.DefaultConfig()
	if addr := os.Getenv("ECHO_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address (env ECHO_ADDR)")
	flag.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog")
	flag.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent connections")
	flag.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "per-connection buffer size in bytes")
	flag.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "events per poll")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.BoolVar(&cfg.Development, "dev", cfg.Development, "development logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("echod %s build=%s\n", Version(), EchoBuildIdRaw())
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := log.InitLogger(cfg.LogLevel, cfg.Development); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(2)
	}
	defer log.Sync()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	log.Logger.Info("Starting echo server", zap.String("version", Version()), zap.String("addr", cfg.Addr))
	s := node.NewServer(cfg)
	if err := node.NewReactor(s, signals).Run(); err != nil {
		log.Logger.Error("server error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
	log.Logger.Info("shutting down server", zap.Any("stats", s.Stats()))
}
