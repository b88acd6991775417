package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/school-support/internal/service"
)

func archiveCmd() *cobra.Command {
	var (
		months int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move closed tickets into the archive",
		Long: `Archives Resolved and Cancelled tickets created before the cutoff.

Examples:
  school-support archive --months 6
  school-support archive --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			cutoff := app.cfg.Archive.DefaultCutoffMonths
			if cmd.Flags().Changed("months") {
				cutoff = months
			}
			if all {
				cutoff = service.ArchivePresetAll
			}
			archived, err := app.archive.Archive(ctx, cutoff)
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d tickets\n", archived)
			return err
		},
	}
	cmd.Flags().IntVar(&months, "months", service.ArchivePresetHalfYear, "archive tickets created more than N months (30 days) ago")
	cmd.Flags().BoolVar(&all, "all", false, "archive every closed ticket")
	cmd.MarkFlagsMutuallyExclusive("months", "all")
	return cmd
}
