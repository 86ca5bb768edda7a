package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/vango-dev/ion/pkg/client"
	"github.com/vango-dev/ion/pkg/protocol"
)

func callCmd() *cobra.Command {
	var (
		baseURL string
		stream  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <interface> <method> [int args...]",
		Short: "Call a method with integer arguments",
		Long: `Call a unary or streaming method. Arguments are parsed as integers
and sent as the argument tuple; results are printed in CBOR diagnostic
notation, one line per streamed item.

Examples:
  ion call Calculator Add 4 4
  ion call --stream Calculator Count 10
  ion call --url https://calc.example.com Calculator Divide 9 3`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := encodeIntArgs(args[2:])
			if err != nil {
				return err
			}

			cfg := client.DefaultConfig()
			cfg.Stream.MaxAttempts = 1
			c, err := client.New(baseURL, cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return runCall(ctx, cmd.OutOrStdout(), c, args[0], args[1], setup, stream)
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:8080", "Server base URL")
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "Call a streaming method")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Call deadline (0 for none)")

	return cmd
}

func runCall(ctx context.Context, out io.Writer, c *client.Client, iface, method string, setup []byte, stream bool) error {
	if stream {
		return c.Stream(ctx, iface, method, setup, func(item []byte) error {
			return printDiagnostic(out, item)
		})
	}

	resp, err := c.Call(ctx, iface, method, setup)
	if err != nil {
		return err
	}
	if len(resp) == 0 {
		fmt.Fprintln(out, "(void)")
		return nil
	}
	return printDiagnostic(out, resp)
}

// encodeIntArgs encodes args as a tuple of integers.
func encodeIntArgs(args []string) ([]byte, error) {
	w := protocol.NewWriter()
	w.StartArray(len(args))
	for _, a := range args {
		v, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not an integer", a)
		}
		w.WriteInt(v)
	}
	if err := w.EndArray(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func printDiagnostic(out io.Writer, data []byte) error {
	diag, err := cbor.Diagnose(data)
	if err != nil {
		return fmt.Errorf("decode %x: %w", data, err)
	}
	fmt.Fprintln(out, diag)
	return nil
}
