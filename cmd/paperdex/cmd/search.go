package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paperdex/paperdex/internal/search"
	"github.com/paperdex/paperdex/internal/ui"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var tenantID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the index from the command line",
		Long: `Run a tenant-scoped search against the local index and print the
results. Useful for inspecting the index without the HTTP server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.cleanup()

			resp := app.service.Search(cmd.Context(), search.Request{
				TenantID: tenantID,
				Query:    strings.Join(args, " "),
			})

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			_, err = out.Write([]byte(ui.NewRenderer(out).Response(resp)))
			return err
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id to search as (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw response as JSON")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
