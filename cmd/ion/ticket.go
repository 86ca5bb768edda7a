package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/ion/pkg/base56"
	"github.com/vango-dev/ion/pkg/protocol"
)

func ticketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Convert stream tickets between hex and base-56",
	}

	encode := &cobra.Command{
		Use:   "encode <hex>",
		Short: "Encode a hex ticket as base-56 and print its sub-protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, base56.Encode(raw))
			fmt.Fprintln(out, protocol.BuildSubProtocol(raw))
			return nil
		},
	}

	decode := &cobra.Command{
		Use:   "decode <base56|sub-protocol>",
		Short: "Decode a base-56 ticket or a full sub-protocol string to hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := decodeTicketText(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(raw))
			return nil
		},
	}

	cmd.AddCommand(encode, decode)
	return cmd
}

func decodeTicketText(s string) ([]byte, error) {
	if _, ok := protocol.FindSubProtocol([]string{s}); ok {
		return protocol.ParseSubProtocol(s)
	}
	return base56.Decode(s)
}
