package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newReindexCmd creates the reindex command.
func newReindexCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the record store",
		Long: `Rebuild the search index. By default the index is dropped and recreated
from scratch; with --incremental the index is reconciled in place, which
leaves existing entries queryable throughout the pass.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.cleanup()

			run := app.manager.Rebuild
			if incremental {
				run = app.manager.Sync
			}
			stats, err := run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"indexed %d record(s), skipped %d, removed %d, took %s\n",
				stats.Indexed, stats.Skipped, stats.Deleted, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "Reconcile in place instead of dropping the index")
	return cmd
}
