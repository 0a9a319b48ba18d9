package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"auditexport/internal/contentstore"
	"auditexport/internal/ledger"
	"auditexport/internal/logging"
	"auditexport/internal/missingcache"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show saved records, missing ids, outstanding failures, and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := contentstore.Open(cmd.Context(), cfg.BucketURL(), logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()
			saved, err := store.CountRecords(cmd.Context())
			if err != nil {
				return fmt.Errorf("count saved records: %w", err)
			}
			missing := missingcache.OpenDir(cfg.Paths.OutputDir, logging.NewNop())

			return withLedger(ctx, func(led *ledger.Store) error {
				counts, err := led.FailureCounts(cmd.Context())
				if err != nil {
					return err
				}
				runs, err := led.RecentRuns(cmd.Context(), runLimit)
				if err != nil {
					return err
				}

				outstanding := 0
				for _, n := range counts {
					outstanding += n
				}
				overview := [][]string{
					{"Output directory", cfg.Paths.OutputDir},
					{"Saved records", fmt.Sprint(saved)},
					{"Missing ids", fmt.Sprint(missing.Count())},
					{"Outstanding failures", fmt.Sprint(outstanding)},
				}
				fmt.Fprintln(out, renderTable("Export status", []string{"Item", "Value"}, overview, []columnAlignment{alignLeft, alignRight}))

				if len(counts) > 0 {
					kinds := make([]string, 0, len(counts))
					for kind := range counts {
						kinds = append(kinds, kind)
					}
					sort.Strings(kinds)
					rows := make([][]string, 0, len(kinds))
					for _, kind := range kinds {
						rows = append(rows, []string{kind, fmt.Sprint(counts[kind])})
					}
					fmt.Fprintln(out, renderTable("Failures by kind", []string{"Kind", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				}

				if len(runs) == 0 {
					fmt.Fprintln(out, "No export runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRuns(runs, time.Now()))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&runLimit, "runs", 5, "Number of recent runs to show")
	return cmd
}

func renderRuns(runs []ledger.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			truncate(run.ID, 8),
			string(run.Status),
			fmt.Sprintf("%d-%d", run.RangeStart, run.RangeEnd),
			fmt.Sprint(run.Saved),
			fmt.Sprint(run.Missing),
			fmt.Sprint(run.Failed),
			fmt.Sprint(run.Calls),
			yesNo(run.Forced),
			formatTimestamp(run.StartedAt),
			run.Duration(now).Round(time.Second).String(),
		})
	}
	headers := []string{"Run", "Status", "Range", "Saved", "Missing", "Failed", "Calls", "Forced", "Started", "Duration"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignRight}
	return renderTable("Recent runs", headers, rows, aligns)
}
