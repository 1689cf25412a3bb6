// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/twelman/literator/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the local database",
	Long: `Stats reports totals and breakdowns for the stored papers: counts by
source and publication year, the total number of author entries, and the
most frequent keywords.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("format", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg := buildConfig()
	st, err := store.New(cfg.Storage, cfg.Merge)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "yaml":
		data, err := yaml.Marshal(stats)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	case "table":
		printStats(stats)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}
}

func printStats(stats store.Stats) {
	fmt.Printf("Papers:  %d\n", stats.TotalPapers)
	fmt.Printf("Authors: %d\n", stats.TotalAuthors)

	if len(stats.BySource) > 0 {
		fmt.Println("\nBy source:")
		sources := make([]string, 0, len(stats.BySource))
		for s := range stats.BySource {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			fmt.Printf("  %-10s %d\n", s, stats.BySource[s])
		}
	}

	if len(stats.ByYear) > 0 {
		fmt.Println("\nBy year:")
		years := make([]int, 0, len(stats.ByYear))
		for y := range stats.ByYear {
			years = append(years, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(years)))
		for _, y := range years {
			label := fmt.Sprintf("%d", y)
			if y == 0 {
				label = "unknown"
			}
			fmt.Printf("  %-10s %d\n", label, stats.ByYear[y])
		}
	}

	if len(stats.TopKeywords) > 0 {
		fmt.Println("\nTop keywords:")
		for _, kc := range stats.TopKeywords {
			fmt.Printf("  %-30s %d\n", kc.Keyword, kc.Count)
		}
	}
}
