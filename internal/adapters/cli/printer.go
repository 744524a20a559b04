package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/printfleet/printfleet/internal/adapters/protocol"
	"github.com/printfleet/printfleet/internal/domain/adapter"
	"github.com/printfleet/printfleet/internal/domain/printer"
)

func newPrinterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printer",
		Short: "Printer operations",
	}
	cmd.AddCommand(newPrinterTestCommand())
	return cmd
}

func newPrinterTestCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "test <host> <credentials>",
		Short: "Probe a printer's reachability before adding it to the fleet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, secret := args[0], args[1]

			k, err := parseKind(kind)
			if err != nil {
				return err
			}

			creds := adapter.Credentials{Host: host, Secret: secret}
			if err := protocol.TestConnectionByKind(cmd.Context(), k, creds); err != nil {
				return fmt.Errorf("printer unreachable: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "printer reachable")
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(printer.KindHTTPPoll), "printer transport kind: message_bus, http_poll, or file_session")
	return cmd
}

func parseKind(s string) (printer.Kind, error) {
	switch s {
	case "message_bus", string(printer.KindMessageBus):
		return printer.KindMessageBus, nil
	case "http_poll", string(printer.KindHTTPPoll):
		return printer.KindHTTPPoll, nil
	case "file_session", string(printer.KindFileSession):
		return printer.KindFileSession, nil
	default:
		return "", fmt.Errorf("unknown printer kind %q", s)
	}
}
