// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"fmt"
	"strings"

	"github.com/twelman/literator/pkg/types"
)

// ActionKind tags the outcome of one upsert.
type ActionKind string

const (
	ActionInserted ActionKind = "inserted"
	ActionMerged   ActionKind = "merged"
	ActionRejected ActionKind = "rejected"
)

// Action is the outcome of upserting one paper. Merged actions carry a
// diff of changed fields and any conflict flags; rejected actions carry
// the validation error.
type Action struct {
	Kind      ActionKind
	Diff      []string
	Conflicts []string
	Err       error
}

// Merge combines a freshly fetched paper into an already-stored one.
// Identity fields (source, external_id, doi) and title keep their
// first-seen values unless the policy says otherwise; citation count takes
// the maximum; fetched_at takes the new timestamp unconditionally; empty
// descriptive fields fill from the new record; author and keyword lists
// union, preserving stored order.
//
// Title and year disagreements are never reconciled silently: they come
// back as conflict flags for the caller to surface.
func Merge(existing, incoming types.Paper, pol types.MergePolicy) (types.Paper, []string, []string) {
	merged := existing
	var diff, conflicts []string

	if incoming.Title != "" && !strings.EqualFold(strings.TrimSpace(existing.Title), strings.TrimSpace(incoming.Title)) {
		if pol.PreferLatestTitle {
			merged.Title = incoming.Title
			diff = append(diff, fmt.Sprintf("title: %q -> %q", existing.Title, incoming.Title))
		} else {
			conflicts = append(conflicts, fmt.Sprintf("title mismatch: kept %q, got %q", existing.Title, incoming.Title))
		}
	}

	switch {
	case existing.PublicationYear == 0 && incoming.PublicationYear != 0:
		merged.PublicationYear = incoming.PublicationYear
		diff = append(diff, fmt.Sprintf("publication_year: 0 -> %d", incoming.PublicationYear))
	case incoming.PublicationYear != 0 && existing.PublicationYear != incoming.PublicationYear:
		if pol.PreferLatestYear {
			merged.PublicationYear = incoming.PublicationYear
			diff = append(diff, fmt.Sprintf("publication_year: %d -> %d", existing.PublicationYear, incoming.PublicationYear))
		} else {
			conflicts = append(conflicts, fmt.Sprintf("year mismatch: kept %d, got %d", existing.PublicationYear, incoming.PublicationYear))
		}
	}

	// Citation counts are monotonic in practice; tolerate a stale re-fetch
	// by taking the maximum.
	if incoming.CitationCount > existing.CitationCount {
		merged.CitationCount = incoming.CitationCount
		diff = append(diff, fmt.Sprintf("citation_count: %d -> %d", existing.CitationCount, incoming.CitationCount))
	}

	if existing.Abstract == "" && incoming.Abstract != "" {
		merged.Abstract = incoming.Abstract
		diff = append(diff, "abstract: filled")
	}
	if existing.Journal == "" && incoming.Journal != "" {
		merged.Journal = incoming.Journal
		diff = append(diff, "journal: filled")
	}
	if existing.URL == "" && incoming.URL != "" {
		merged.URL = incoming.URL
		diff = append(diff, "url: filled")
	}

	if added := unionAuthors(&merged, incoming.Authors); added > 0 {
		diff = append(diff, fmt.Sprintf("authors: %d added", added))
	}
	if added := unionKeywords(&merged, incoming.Keywords); added > 0 {
		diff = append(diff, fmt.Sprintf("keywords: %d added", added))
	}

	merged.FetchedAt = incoming.FetchedAt

	return merged, diff, conflicts
}

// unionAuthors appends incoming authors not already present by
// case-insensitive name match, preserving the stored order. Returns the
// number of authors added.
func unionAuthors(merged *types.Paper, incoming []types.Author) int {
	seen := make(map[string]bool, len(merged.Authors))
	for _, a := range merged.Authors {
		seen[strings.ToLower(strings.TrimSpace(a.Name))] = true
	}

	added := 0
	for _, a := range incoming {
		key := strings.ToLower(strings.TrimSpace(a.Name))
		if key == "" || seen[key] {
			continue
		}
		merged.Authors = append(merged.Authors, a)
		seen[key] = true
		added++
	}
	return added
}

// unionKeywords appends incoming keywords not already present,
// case-insensitively. Returns the number of keywords added.
func unionKeywords(merged *types.Paper, incoming []string) int {
	seen := make(map[string]bool, len(merged.Keywords))
	for _, kw := range merged.Keywords {
		seen[strings.ToLower(kw)] = true
	}

	added := 0
	for _, kw := range incoming {
		key := strings.ToLower(kw)
		if key == "" || seen[key] {
			continue
		}
		merged.Keywords = append(merged.Keywords, kw)
		seen[key] = true
		added++
	}
	return added
}
