package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"libconv/internal/planner"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var ids []string
	var onlyConvert bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do without converting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			rt, err := buildPipeline(cmd.Context(), cfg, logger, nil, runOverrides{ids: normalizeIDs(ids)}.apply)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, listing, err := rt.driver.Plan(cmd.Context())
			if err != nil {
				return err
			}

			counts := map[planner.Action]int{}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				counts[entry.Decision.Action]++
				if onlyConvert && entry.Decision.Action != planner.Convert {
					continue
				}
				rows = append(rows, []string{
					entry.Document.ID,
					truncate(entry.Document.Title, 40),
					entry.Document.Formats.String(),
					entry.Decision.Action.String(),
					entry.Decision.Source.String(),
				})
			}

			out := cmd.OutOrStdout()
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Stored", "Decision", "Source"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
			} else {
				fmt.Fprintln(out, "No documents to show")
			}
			parts := []string{
				fmt.Sprintf("convert=%d", counts[planner.Convert]),
				fmt.Sprintf("already_present=%d", counts[planner.SkipAlreadyPresent]),
				fmt.Sprintf("no_source=%d", counts[planner.SkipNoEligibleSource]),
				fmt.Sprintf("rejected=%d", len(listing.Rejected)),
			}
			fmt.Fprintln(out, strings.Join(parts, " "))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&ids, "id", nil, "Only plan these document ids (repeatable)")
	cmd.Flags().BoolVar(&onlyConvert, "convert-only", false, "Only list documents that would be converted")
	return cmd
}
