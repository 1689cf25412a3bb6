// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twelman/literator/internal/fetch"
	"github.com/twelman/literator/internal/source"
	"github.com/twelman/literator/internal/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <source>",
	Short: "Fetch papers from a bibliographic source into the local database",
	Long: `Fetch runs a search query against a bibliographic source (scopus or
adsabs), normalizes each record, and upserts it into the local database.
Records already present are merged rather than duplicated; a title or year
disagreement between sources is reported as a conflict, never silently
overwritten.

API keys come from .secrets/ (scopus-api-key, ads-api-key), the config
file, or LITERATOR_-prefixed environment variables.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("query", "", "search query (required)")
	fetchCmd.Flags().Int("from-year", 0, "earliest publication year, inclusive")
	fetchCmd.Flags().Int("to-year", 0, "latest publication year, inclusive")
	fetchCmd.Flags().Int("max-results", 0, "stop after this many records (0 = use config default)")
	fetchCmd.Flags().String("output", "", "also write fetched papers to a JSON file")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		return fmt.Errorf("provide a search query with --query")
	}
	fromYear, _ := cmd.Flags().GetInt("from-year")
	toYear, _ := cmd.Flags().GetInt("to-year")
	if fromYear != 0 && toYear != 0 && toYear < fromYear {
		return fmt.Errorf("--to-year %d precedes --from-year %d", toYear, fromYear)
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	output, _ := cmd.Flags().GetString("output")

	cfg := buildConfig()
	if maxResults == 0 {
		maxResults = cfg.Fetch.MaxResults
	}

	client, adapter, err := source.ForSource(args[0], &cfg.Fetch)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Storage, cfg.Merge)
	if err != nil {
		return err
	}
	defer st.Close()

	req := source.SearchRequest{
		Query:      query,
		StartYear:  fromYear,
		EndYear:    toYear,
		MaxResults: maxResults,
	}

	summary, papers, err := fetch.Run(context.Background(), client, adapter, st, req, os.Stdout)
	if err != nil {
		return err
	}

	if output != "" {
		if err := fetch.WriteResults(output, client.Name(), req, summary, papers); err != nil {
			return err
		}
		fmt.Printf("Wrote results to %s\n", output)
	}

	if summary.Errors > 0 {
		return fmt.Errorf("%d record(s) failed during fetch", summary.Errors)
	}
	return nil
}
