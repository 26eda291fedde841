package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"libconv/internal/config"
	"libconv/internal/logging"
	"libconv/internal/pipeline"
	"libconv/internal/preflight"
	"libconv/internal/runlock"
)

type runOverrides struct {
	limit    int
	limitSet bool
	ids      []string
}

func (o runOverrides) apply(opts *pipeline.Options) {
	if o.limitSet {
		opts.Limit = o.limit
	}
	if len(o.ids) > 0 {
		opts.IDs = o.ids
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var ids []string
	var showTable bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one conversion pass over the library",
		Long: `Run lists the catalog, converts every document that lacks the target
format from its preferred eligible source, and registers the result.

The command exits non-zero only when the catalog cannot be listed or another
run holds the lock. Per-document failures are reported in the summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			overrides := runOverrides{limit: limit, limitSet: cmd.Flags().Changed("limit"), ids: normalizeIDs(ids)}
			if overrides.limitSet && limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			summary, err := executeRun(runCtx, cfg, logger, out, overrides)
			if err != nil {
				return err
			}
			if showTable && len(summary.Failures) > 0 {
				fmt.Fprintln(out, renderFailureTable(summary.Failures))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of conversions to attempt (0 = unlimited)")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "Only process these document ids (repeatable)")
	cmd.Flags().BoolVar(&showTable, "table", false, "Print a table of failed documents after the summary")
	return cmd
}

// executeRun performs one locked pass and prints progress and the summary to
// out. Both `run` and `schedule` go through here.
func executeRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, overrides runOverrides) (pipeline.Summary, error) {
	lock, err := runlock.Acquire(cfg.Run.LockFile)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release run lock", "run_lock_release_failed",
				logging.String("lock_file", lock.Path()),
				logging.Error(err),
			)
		}
	}()

	reportPreflight(logger, preflight.RunAll(ctx, cfg, nil))

	rt, err := buildPipeline(ctx, cfg, logger, out, overrides.apply)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer rt.Close()

	summary, err := rt.driver.Run(ctx)
	if err != nil {
		return summary, err
	}
	fmt.Fprintln(out, summary.String())
	fmt.Fprintln(out, summary.Detail())
	return summary, nil
}

func reportPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run `libconv check` for details"),
			logging.String(logging.FieldImpact, "documents depending on this may fail"),
		)
	}
}

func normalizeIDs(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func renderFailureTable(failures []pipeline.Failure) string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.DocumentID, truncate(f.Title, 40), f.Stage, f.Kind, truncate(f.Message, 80)})
	}
	return renderTable(
		[]string{"ID", "Title", "Stage", "Kind", "Message"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 3 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
