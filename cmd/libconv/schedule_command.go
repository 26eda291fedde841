package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"libconv/internal/logging"
	"libconv/internal/schedule"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var cronExpr string
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run conversion passes on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			spec := strings.TrimSpace(cronExpr)
			if spec == "" {
				spec = cfg.Run.Schedule
			}

			out := cmd.OutOrStdout()
			job := func(jobCtx context.Context) error {
				summary, err := executeRun(jobCtx, cfg, logger, out, runOverrides{})
				if err != nil {
					return err
				}
				if summary.Errored > 0 {
					logging.WarnWithContext(logger, "scheduled run finished with errors", "schedule_run_degraded",
						logging.String(logging.FieldRunID, summary.RunID),
						logging.Int("errored", summary.Errored),
						logging.String(logging.FieldErrorHint, "inspect the failures logged for this run_id"),
						logging.String(logging.FieldImpact, "affected documents keep their current formats"),
					)
				}
				return nil
			}
			scheduler, err := schedule.New(spec, job, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if runNow {
				if err := job(runCtx); err != nil {
					logging.ErrorWithContext(logger, "initial run failed", "schedule_run_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "the schedule keeps running; fix the catalog before the next firing"),
					)
				}
			}
			fmt.Fprintf(out, "Scheduled with %q; press Ctrl+C to stop\n", scheduler.Spec())
			return scheduler.Run(runCtx)
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression overriding run.schedule")
	cmd.Flags().BoolVar(&runNow, "now", false, "Run one pass immediately before waiting for the schedule")
	return cmd
}
