package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditexport/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var probeID int64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, credentials, and API access before exporting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("probe-id") {
				probeID = cfg.Export.IDRangeStart
			}
			if probeID <= 0 {
				probeID = 1
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			results := preflight.RunAll(cmd.Context(), cfg, probeID)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if !ranAPICheck(results) {
				fmt.Fprintln(out, renderStatusLine("API access", statusWarn, "skipped until the base URL and credentials are set", colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&probeID, "probe-id", 0, "Record id requested to test API access (default export.id_range_start)")
	return cmd
}

func ranAPICheck(results []preflight.Result) bool {
	for _, r := range results {
		if r.Name == "API access" {
			return true
		}
	}
	return false
}
