// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch runs a search against a bibliographic source and folds
// the results into the local store, page by page.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/twelman/literator/internal/source"
	"github.com/twelman/literator/internal/store"
	"github.com/twelman/literator/pkg/types"
)

// Summary holds the outcome of a fetch run.
type Summary struct {
	Fetched   int      `json:"fetched" yaml:"fetched"`
	Inserted  int      `json:"inserted" yaml:"inserted"`
	Merged    int      `json:"merged" yaml:"merged"`
	Rejected  int      `json:"rejected" yaml:"rejected"`
	Errors    int      `json:"errors" yaml:"errors"`
	Conflicts []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// Total returns the number of raw records processed.
func (s Summary) Total() int {
	return s.Inserted + s.Merged + s.Rejected + s.Errors
}

// HasFailures reports whether any record failed to normalize or store.
func (s Summary) HasFailures() bool {
	return s.Rejected > 0 || s.Errors > 0
}

// Run pages through the source until it is exhausted or req.MaxResults
// records have been fetched, normalizing and upserting each record. It
// continues after individual record failures and prints per-item status
// to w. A page-level fetch error aborts the run; the summary still
// reflects the records processed before the failure.
func Run(ctx context.Context, client source.Client, adapter source.Adapter, st *store.Store, req source.SearchRequest, w io.Writer) (Summary, []types.Paper, error) {
	var (
		summary Summary
		papers  []types.Paper
		token   string
	)

	for {
		page, err := client.FetchPage(ctx, req, token)
		if err != nil {
			return summary, papers, fmt.Errorf("fetching page from %s: %w", client.Name(), err)
		}

		for _, raw := range page.Items {
			if err := ctx.Err(); err != nil {
				return summary, papers, err
			}
			if req.MaxResults > 0 && summary.Fetched >= req.MaxResults {
				break
			}
			summary.Fetched++

			paper, err := adapter.Normalize(raw)
			if err != nil {
				var aerr *source.AdapterError
				if errors.As(err, &aerr) {
					fmt.Fprintf(w, "rejected: %s\n", aerr.Reason)
					summary.Rejected++
				} else {
					fmt.Fprintf(w, "error:    %v\n", err)
					summary.Errors++
				}
				continue
			}

			action, err := st.Upsert(ctx, paper)
			if err != nil {
				fmt.Fprintf(w, "error:    %s (%v)\n", paper.ExternalID, err)
				summary.Errors++
				continue
			}

			switch action.Kind {
			case store.ActionInserted:
				fmt.Fprintf(w, "inserted: %s (%s)\n", paper.ExternalID, paper.Title)
				summary.Inserted++
				papers = append(papers, paper)
			case store.ActionMerged:
				fmt.Fprintf(w, "merged:   %s (%s)\n", paper.ExternalID, paper.Title)
				summary.Merged++
				papers = append(papers, paper)
				for _, c := range action.Conflicts {
					fmt.Fprintf(w, "  conflict: %s\n", c)
					summary.Conflicts = append(summary.Conflicts, fmt.Sprintf("%s: %s", paper.ExternalID, c))
				}
			case store.ActionRejected:
				fmt.Fprintf(w, "rejected: %s (%v)\n", paper.ExternalID, action.Err)
				summary.Rejected++
			}
		}

		if page.NextToken == "" || (req.MaxResults > 0 && summary.Fetched >= req.MaxResults) {
			break
		}
		token = page.NextToken
	}

	fmt.Fprintf(w, "\nFetch summary: %d inserted, %d merged, %d rejected, %d errors (total: %d)\n",
		summary.Inserted, summary.Merged, summary.Rejected, summary.Errors, summary.Total())
	return summary, papers, nil
}

// result is the shape of an exported result file.
type result struct {
	Source  string        `json:"source"`
	Query   string        `json:"query"`
	Summary Summary       `json:"summary"`
	Papers  []types.Paper `json:"papers"`
}

// WriteResults exports the papers touched by a fetch run to a JSON file,
// creating parent directories as needed.
func WriteResults(path string, sourceName string, req source.SearchRequest, summary Summary, papers []types.Paper) error {
	if papers == nil {
		papers = []types.Paper{}
	}
	out := result{
		Source:  sourceName,
		Query:   req.Query,
		Summary: summary,
		Papers:  papers,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
