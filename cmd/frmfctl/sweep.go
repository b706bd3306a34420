package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/frmf-pipeline/internal/adapters/schedule"
	"github.com/kirillkom/frmf-pipeline/internal/bootstrap"
	"github.com/kirillkom/frmf-pipeline/internal/config"
)

const dateLayout = "2006-01-02"

func newSweepCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-drive unprocessed submissions of one day partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDay(date, time.Now())
			if err != nil {
				return err
			}

			cfg := config.Load()
			sweeper, closeFn, err := bootstrap.NewSweeper(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := sweeper.Sweep(cmd.Context(), day)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "UTC day to sweep as YYYY-MM-DD (default today)")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var expr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the Batch Sweeper on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if !cmd.Flags().Changed("cron") {
				expr = cfg.SweepSchedule
			}
			if _, err := schedule.ParseSchedule(expr); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweeper, closeFn, err := bootstrap.NewSweeper(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			scheduler, err := schedule.NewSweepScheduler(sweeper, expr, schedule.Options{})
			if err != nil {
				return err
			}
			return scheduler.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (default SWEEP_SCHEDULE)")
	return cmd
}

// parseDay returns the UTC day named by value, or now's UTC day when value
// is empty.
func parseDay(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.UTC(), nil
	}
	day, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", value)
	}
	return day, nil
}
