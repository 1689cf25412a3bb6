// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/twelman/literator/internal/store"
	"github.com/twelman/literator/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the local database with full-text search and filters",
	Long: `Query searches stored papers using FTS5 full-text search over titles
and abstracts, structured filters (source, year range), or a combination.
Results are ordered most recently fetched first.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("source", "", "filter by source: scopus or adsabs")
	queryCmd.Flags().Int("from-year", 0, "earliest publication year, inclusive")
	queryCmd.Flags().Int("to-year", 0, "latest publication year, inclusive")
	queryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	queryCmd.Flags().String("format", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}

	srcFilter, _ := cmd.Flags().GetString("source")
	fromYear, _ := cmd.Flags().GetInt("from-year")
	toYear, _ := cmd.Flags().GetInt("to-year")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := buildConfig()
	st, err := store.New(cfg.Storage, cfg.Merge)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.Filter{
		Text:      strings.Join(args, " "),
		Source:    types.Source(srcFilter),
		StartYear: fromYear,
		EndYear:   toYear,
		Limit:     limit,
	}

	papers, err := st.Query(context.Background(), filter)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	case "yaml":
		data, err := yaml.Marshal(papers)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		printPaperTable(papers)
		return nil
	}
}

func printPaperTable(papers []types.Paper) {
	if len(papers) == 0 {
		fmt.Println("No papers found.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-22s  %-50s  %-6s  %-8s  %s\n",
		"Source", "ID", "Title", "Year", "Cited", "DOI")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))

	for _, p := range papers {
		title := p.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		id := p.ExternalID
		if len(id) > 22 {
			id = id[:19] + "..."
		}
		year := "-"
		if p.PublicationYear != 0 {
			year = fmt.Sprintf("%d", p.PublicationYear)
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-22s  %-50s  %-6s  %-8d  %s\n",
			p.Source, id, title, year, p.CitationCount, p.DOI)
	}

	fmt.Fprintf(os.Stdout, "\n%d papers\n", len(papers))
}
