package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/printfleet/printfleet/internal/infrastructure/backup"
)

func newBackupCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "State Store backup operations",
	}
	cmd.AddCommand(newBackupCreateCommand(configPath))
	return cmd
}

func newBackupCreateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <path>",
		Short: "Snapshot the State Store into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			dest, err := backup.Create(&cfg.Database, args[0])
			if err != nil {
				return fmt.Errorf("backup create: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
}
