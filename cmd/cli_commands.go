package cmd

import (
	"fmt"
	"io"
	"strings"
)

// cliCommand is a REPL command handled locally instead of being echoed.
type cliCommand struct {
	name    string
	params  string
	summary string
	minArgs int
}

var cliCommands = []cliCommand{
	{name: "connect", params: "<host> <port>", summary: "Connect to another server", minArgs: 2},
	{name: "clear", summary: "Clear the screen"},
	{name: "help", summary: "Show this help"},
	{name: "quit", summary: "Leave the client"},
	{name: "exit", summary: "Leave the client"},
}

func lookupCommand(name string) *cliCommand {
	for i := range cliCommands {
		if strings.EqualFold(cliCommands[i].name, name) {
			return &cliCommands[i]
		}
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Anything else typed is sent to the server and echoed back.")
	for _, c := range cliCommands {
		fmt.Fprintf(out, "  %-8s %-14s %s\n", c.name, c.params, c.summary)
	}
}
