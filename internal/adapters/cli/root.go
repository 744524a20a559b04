// Package cli implements fleetctl, the ops CLI surface: one-shot
// invocations against the configured State Store directly, with no daemon
// RPC protocol in between.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/printfleet/printfleet/internal/infrastructure/config"
)

// NewRootCommand creates the root fleetctl command.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "fleetctl",
		Short: "Operations CLI for the print-farm control plane",
		Long: `fleetctl runs one-shot operational commands against the configured
State Store: triggering a scheduler batch, probing a printer's reachability
before it's added to the fleet, and snapshotting the database.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (empty = search default paths)")

	rootCmd.AddCommand(newSchedulerCommand(&configPath))
	rootCmd.AddCommand(newPrinterCommand())
	rootCmd.AddCommand(newBackupCommand(&configPath))

	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
