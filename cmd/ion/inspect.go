package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ion/pkg/protocol"
)

func inspectCmd() *cobra.Command {
	var (
		file  string
		frame bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [hex]",
		Short: "Print an encoded payload in diagnostic notation",
		Long: `Decode a payload given as hex (spaces allowed) or read from a file and
print it in CBOR diagnostic notation. With --frame the input is a
stream frame: its opcode is printed, then its payload.

Examples:
  ion inspect 820404
  ion inspect --frame 00 08
  ion inspect --file reply.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := inspectInput(file, args)
			if err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), data, frame)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read raw bytes from a file")
	cmd.Flags().BoolVar(&frame, "frame", false, "Input is a stream frame")

	return cmd
}

func inspectInput(file string, args []string) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("nothing to inspect: pass hex or --file")
	}
	text := strings.Join(args, "")
	text = strings.TrimPrefix(strings.ReplaceAll(text, " ", ""), "0x")
	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func runInspect(out io.Writer, data []byte, frame bool) error {
	if !frame {
		return printDiagnostic(out, data)
	}

	f, err := protocol.DecodeFrame(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", f.Op)
	switch f.Op {
	case protocol.OpData:
		return printDiagnostic(out, f.Payload)
	case protocol.OpError:
		pe := f.Err()
		fmt.Fprintf(out, "%s: %s\n", pe.Code, pe.Message)
	}
	return nil
}
