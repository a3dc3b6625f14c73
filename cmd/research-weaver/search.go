// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-weaver/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the configured search providers directly",
	Long: `Search sends one query to every configured provider, the same way a
research round serves a directive, and prints the merged hits. Results are
deduplicated across providers by URL and title. Useful for checking
provider configuration and credentials before a run.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	providers, err := search.NewProviders(cfg.Retrieval, nil)
	if err != nil {
		return err
	}

	n, _ := cmd.Flags().GetInt("max-results")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Retrieval.DirectiveTimeout)
	defer cancel()
	out, err := search.Search(ctx, args[0], n, providers)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(out, os.Stdout)
	}
	search.FormatTable(out, os.Stdout)
	return nil
}

func init() {
	searchCmd.Flags().Int("max-results", 5, "hits requested from each provider")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}
