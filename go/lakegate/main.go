package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "serve", "Serve gateway requests over stdio", `
Read operation requests as JSON lines from stdin and write response
envelopes as JSON lines to stdout, until EOF. Intended to run as a
sidecar of the UI backend.
`, &cmdServe{})

	addCmd(parser, "heartbeat", "Check warehouse connectivity", `
Run a heartbeat against the configured warehouse and report latency.
`, &cmdHeartbeat{})

	addCmd(parser, "query", "Run a named query from the manifest", `
Run a curated named query with typed parameters and print its rows.
`, &cmdQuery{})

	addCmd(parser, "schema", "Browse warehouse metadata", `
List catalogs, schemas, or tables, or show the cached schema of a table.
`, &cmdSchema{})

	addCmd(parser, "print-config", "Print the resolved configuration", `
Print the configuration resolved from the environment, with secrets
masked.
`, &cmdPrintConfig{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addCmd(to interface {
	AddCommand(string, string, string, interface{}) (*flags.Command, error)
}, a, b, c string, iface interface{}) *flags.Command {
	cmd, err := to.AddCommand(a, b, c, iface)
	if err != nil {
		panic(fmt.Sprintf("failed to add flags parser command: %v", err))
	}
	return cmd
}
