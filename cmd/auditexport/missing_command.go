package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditexport/internal/logging"
	"auditexport/internal/missingcache"
)

func newMissingCommand(ctx *commandContext) *cobra.Command {
	missingCmd := &cobra.Command{
		Use:   "missing",
		Short: "Inspect record ids known to return 404",
	}

	missingCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print known-missing ids in the order they were found",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache := missingcache.OpenDir(cfg.Paths.OutputDir, logging.NewNop())
			out := cmd.OutOrStdout()
			ids := cache.List()
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d missing id(s) in %s\n", len(ids), cache.Path())
			return nil
		},
	})

	return missingCmd
}
