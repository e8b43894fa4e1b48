package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fzft/go-echo-reactor/cmd"
)

// set with -ldflags "-X main.gitSHA1=..."
var (
	gitSHA1  = "0"
	gitDirty = "0"
)

func main() {
	cli := cmd.NewEchoCli()
	if err := cli.Run(os.Args[1:], gitSHA1, gitDirty); err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "echo-cli: %s\n", err)
		os.Exit(1)
	}
}
