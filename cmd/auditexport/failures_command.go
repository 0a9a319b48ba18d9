package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditexport/internal/ledger"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and clear records that failed to export",
	}

	failuresCmd.AddCommand(newFailuresListCommand(ctx))
	failuresCmd.AddCommand(newFailuresClearCommand(ctx))

	return failuresCmd
}

func newFailuresListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outstanding failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(ctx, func(led *ledger.Store) error {
				failures, err := led.ListFailures(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(failures) == 0 {
					fmt.Fprintln(out, "No outstanding failures")
					return nil
				}
				fmt.Fprintln(out, renderFailures(failures))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum rows to show")
	return cmd
}

func newFailuresClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [record-id...]",
		Short: "Forget failures for the given records, or all with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("pass record ids or --all")
			}
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return withLedger(ctx, func(led *ledger.Store) error {
				removed, err := led.ClearFailures(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failure(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear every failure")
	return cmd
}

func renderFailures(failures []ledger.Failure) string {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		status := "-"
		if f.StatusCode > 0 {
			status = fmt.Sprint(f.StatusCode)
		}
		media := f.MediaID
		if media == "" {
			media = "-"
		}
		rows = append(rows, []string{
			fmt.Sprint(f.RecordID),
			f.Kind,
			media,
			status,
			fmt.Sprint(f.Attempts),
			formatTimestamp(f.RecordedAt),
			truncate(f.Message, 60),
		})
	}
	headers := []string{"Record", "Kind", "Media", "Status", "Attempts", "Recorded", "Message"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
	return renderTable("Outstanding failures", headers, rows, aligns)
}
