package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/printfleet/printfleet/internal/adapters/persistence"
	"github.com/printfleet/printfleet/internal/application/scheduler"
	"github.com/printfleet/printfleet/internal/domain/eventbus"
	"github.com/printfleet/printfleet/internal/infrastructure/database"
)

func newSchedulerCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Scheduler operations",
	}
	cmd.AddCommand(newSchedulerRunCommand(configPath))
	return cmd
}

func newSchedulerRunCommand(configPath *string) *cobra.Command {
	var horizonDays int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scheduler batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if horizonDays > 0 {
				cfg.Scheduler.HorizonDays = horizonDays
			}

			db, err := database.NewConnection(&cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer database.Close(db)

			jobs := persistence.NewJobRepository(db)
			printers := persistence.NewPrinterRepository(db)
			runs := persistence.NewSchedulerRunRepository(db)
			bus := eventbus.New()

			blackout, err := scheduler.ParseBlackoutWindow(cfg.Scheduler.BlackoutStart, cfg.Scheduler.BlackoutEnd)
			if err != nil {
				return fmt.Errorf("parse blackout window: %w", err)
			}

			sched := scheduler.New(jobs, printers, runs, bus, nil, scheduler.Config{
				Blackout:    blackout,
				HorizonDays: cfg.Scheduler.HorizonDays,
			})

			run, err := sched.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("scheduler run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduler run %d: %d jobs scheduled, %d skipped\n", run.ID, run.ScheduledCount, run.SkippedCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&horizonDays, "horizon-days", 0, "override the configured scheduling horizon in days")
	return cmd
}
