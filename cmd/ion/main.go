package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ion/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦┌─┐┌┐┌
  ║│ ││││
  ╩└─┘┘└┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ion",
		Short: "Binary RPC runtime for typed service interfaces",
		Long: `ion serves and calls services over a compact CBOR-based wire format.

Unary calls are HTTP POSTs; streaming calls are WebSocket sessions
authorized by a ticket from the exchange endpoint. This tool runs the
demo calculator service and inspects the wire format:

  • serve: run the calculator with metrics
  • call: invoke a method with integer arguments
  • inspect: print encoded payloads in diagnostic notation
  • ticket: convert tickets to and from base-56`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		callCmd(),
		inspectCmd(),
		ticketCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
