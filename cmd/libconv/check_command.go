package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"libconv/internal/preflight"
	"libconv/internal/runlock"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the library directory and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Target format", statusInfo, cfg.Conversion.TargetFormat, colorize))
			fmt.Fprintln(out, renderStatusLine("Source formats", statusInfo, fmt.Sprint(cfg.Conversion.SourceFormats), colorize))
			fmt.Fprintln(out, renderStatusLine("metadata.db reads", statusInfo, yesNo(cfg.Library.UseMetadataDB), colorize))
			fmt.Fprintln(out, renderLockStatus(cfg.Run.LockFile, colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg, nil)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}

// renderLockStatus probes the run lock without holding it.
func renderLockStatus(path string, colorize bool) string {
	if path == "" {
		return renderStatusLine("Run lock", statusInfo, "disabled", colorize)
	}
	lock, err := runlock.Acquire(path)
	switch {
	case errors.Is(err, runlock.ErrLocked):
		return renderStatusLine("Run lock", statusWarn, path+" (held by another run)", colorize)
	case err != nil:
		return renderStatusLine("Run lock", statusError, err.Error(), colorize)
	}
	_ = lock.Release()
	return renderStatusLine("Run lock", statusOK, path+" (free)", colorize)
}
