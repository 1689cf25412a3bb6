// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twelman/literator/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return testStoreWithPolicy(t, types.MergePolicy{})
}

func testStoreWithPolicy(t *testing.T, pol types.MergePolicy) *Store {
	t.Helper()
	cfg := types.StorageConfig{
		DBPath:     filepath.Join(t.TempDir(), "literator.db"),
		MaxResults: 100,
	}
	s, err := New(cfg, pol)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePaper(mutate ...func(*types.Paper)) types.Paper {
	p := types.Paper{
		Source:          types.SourceScopus,
		ExternalID:      "E1",
		Title:           "T1",
		Abstract:        "An abstract.",
		Authors:         []types.Author{{Name: "Smith, J.", Affiliation: "MIT"}},
		PublicationYear: 2021,
		DOI:             "10.1/x",
		CitationCount:   5,
		Keywords:        []string{"attention"},
		FetchedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, m := range mutate {
		m(&p)
	}
	return p
}

// --- schema ---

func TestNewCreatesSchema(t *testing.T) {
	s := testStore(t)

	for _, table := range []string{"papers", "papers_fts"} {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		require.NoError(t, err)
		assert.NotZero(t, count, "table %s does not exist", table)
	}
}

func TestSchemaEnforcesUniquenessAtConstraintLevel(t *testing.T) {
	s := testStore(t)

	// Bypass the merge path and insert duplicates directly: the
	// constraints must hold even without application logic.
	_, err := s.db.Exec(
		`INSERT INTO papers (source, external_id, title, doi, fetched_at) VALUES ('scopus','E1','T','10.1/x','2026')`)
	require.NoError(t, err)

	_, err = s.db.Exec(
		`INSERT INTO papers (source, external_id, title, doi, fetched_at) VALUES ('scopus','E1','T2','','2026')`)
	assert.Error(t, err, "duplicate (source, external_id) must violate a constraint")

	_, err = s.db.Exec(
		`INSERT INTO papers (source, external_id, title, doi, fetched_at) VALUES ('adsabs','B1','T3','10.1/x','2026')`)
	assert.Error(t, err, "duplicate doi must violate a constraint")

	// Empty DOI is exempt from uniqueness.
	_, err = s.db.Exec(
		`INSERT INTO papers (source, external_id, title, doi, fetched_at) VALUES ('adsabs','B2','T4','','2026')`)
	assert.NoError(t, err)
	_, err = s.db.Exec(
		`INSERT INTO papers (source, external_id, title, doi, fetched_at) VALUES ('adsabs','B3','T5','','2026')`)
	assert.NoError(t, err)
}

// --- upsert ---

func TestUpsertDistinctPapersInserted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a1, err := s.Upsert(ctx, samplePaper())
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, a1.Kind)

	a2, err := s.Upsert(ctx, samplePaper(func(p *types.Paper) {
		p.ExternalID = "E2"
		p.DOI = "10.1/y"
	}))
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, a2.Kind)

	papers, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, papers, 2)
}

func TestUpsertSameIdentityMergesCitationMax(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, samplePaper())
	require.NoError(t, err)

	a, err := s.Upsert(ctx, samplePaper(func(p *types.Paper) {
		p.CitationCount = 9
		p.FetchedAt = p.FetchedAt.Add(time.Hour)
	}))
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, a.Kind)
	assert.NotEmpty(t, a.Diff)

	papers, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, 9, papers[0].CitationCount)

	// A stale re-fetch with a lower count keeps the maximum.
	a, err = s.Upsert(ctx, samplePaper(func(p *types.Paper) { p.CitationCount = 3 }))
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, a.Kind)

	papers, err = s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, 9, papers[0].CitationCount)
}

func TestUpsertCrossSourceDOIMerge(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Paper A from Scopus.
	_, err := s.Upsert(ctx, samplePaper())
	require.NoError(t, err)

	// Paper B from ADS sharing the DOI but disagreeing on the title.
	b := samplePaper(func(p *types.Paper) {
		p.Source = types.SourceADS
		p.ExternalID = "AD9"
		p.Title = "T2"
		p.CitationCount = 9
		p.FetchedAt = p.FetchedAt.Add(time.Hour)
	})
	a, err := s.Upsert(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, a.Kind)
	require.Len(t, a.Conflicts, 1)
	assert.Contains(t, a.Conflicts[0], "title mismatch")

	papers, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	// First-seen identity fields win; mutable fields merged.
	got := papers[0]
	assert.Equal(t, "E1", got.ExternalID)
	assert.Equal(t, types.SourceScopus, got.Source)
	assert.Equal(t, "T1", got.Title)
	assert.Equal(t, "10.1/x", got.DOI)
	assert.Equal(t, 9, got.CitationCount)
}

func TestUpsertIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := samplePaper()
	a, err := s.Upsert(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ActionInserted, a.Kind)

	before, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, before, 1)

	p.FetchedAt = p.FetchedAt.Add(time.Hour)
	a, err = s.Upsert(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, a.Kind)
	assert.Empty(t, a.Diff, "identical re-fetch should change nothing but fetched_at")
	assert.Empty(t, a.Conflicts)

	after, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, p.FetchedAt, after[0].FetchedAt)

	after[0].FetchedAt = before[0].FetchedAt
	assert.Equal(t, before[0], after[0])
}

func TestUpsertRejectsInvalid(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, err := s.Upsert(ctx, samplePaper(func(p *types.Paper) { p.Title = "" }))
	require.NoError(t, err)
	assert.Equal(t, ActionRejected, a.Kind)

	var verr *types.ValidationError
	require.ErrorAs(t, a.Err, &verr)
	assert.Equal(t, "title", verr.Field)

	papers, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, papers, "rejected paper must not be stored")
}

func TestUpsertMergesAuthorsAndAbstract(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, samplePaper(func(p *types.Paper) { p.Abstract = "" }))
	require.NoError(t, err)

	a, err := s.Upsert(ctx, samplePaper(func(p *types.Paper) {
		p.Abstract = "Filled in later."
		p.Authors = []types.Author{
			{Name: "SMITH, J."}, // dup by case-insensitive name
			{Name: "Doe, A.", Affiliation: "ETH"},
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, a.Kind)

	papers, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, papers, 1)

	got := papers[0]
	assert.Equal(t, "Filled in later.", got.Abstract)
	require.Len(t, got.Authors, 2)
	assert.Equal(t, "Smith, J.", got.Authors[0].Name, "stored order preserved")
	assert.Equal(t, "Doe, A.", got.Authors[1].Name)
}

func TestUpsertMergePolicyPreferLatest(t *testing.T) {
	s := testStoreWithPolicy(t, types.MergePolicy{PreferLatestTitle: true, PreferLatestYear: true})
	ctx := context.Background()

	_, err := s.Upsert(ctx, samplePaper())
	require.NoError(t, err)

	a, err := s.Upsert(ctx, samplePaper(func(p *types.Paper) {
		p.Title = "T1 (revised)"
		p.PublicationYear = 2022
	}))
	require.NoError(t, err)
	assert.Equal(t, ActionMerged, a.Kind)
	assert.Empty(t, a.Conflicts, "policy overwrite is not a conflict")

	papers, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "T1 (revised)", papers[0].Title)
	assert.Equal(t, 2022, papers[0].PublicationYear)
}

// --- merge engine ---

func TestMergeYearFillAndConflict(t *testing.T) {
	existing := samplePaper(func(p *types.Paper) { p.PublicationYear = 0 })
	incoming := samplePaper(func(p *types.Paper) { p.PublicationYear = 2021 })

	merged, diff, conflicts := Merge(existing, incoming, types.MergePolicy{})
	assert.Equal(t, 2021, merged.PublicationYear, "unknown year fills from incoming")
	assert.NotEmpty(t, diff)
	assert.Empty(t, conflicts)

	existing.PublicationYear = 2020
	merged, _, conflicts = Merge(existing, incoming, types.MergePolicy{})
	assert.Equal(t, 2020, merged.PublicationYear, "first-seen year wins")
	require.Len(t, conflicts, 1)
	assert.Contains(t, conflicts[0], "year mismatch")
}

func TestMergeKeepsIdentityFields(t *testing.T) {
	existing := samplePaper()
	incoming := samplePaper(func(p *types.Paper) {
		p.Source = types.SourceADS
		p.ExternalID = "AD9"
		p.DOI = "10.1/x"
	})

	merged, _, _ := Merge(existing, incoming, types.MergePolicy{})
	assert.Equal(t, existing.Source, merged.Source)
	assert.Equal(t, existing.ExternalID, merged.ExternalID)
	assert.Equal(t, existing.DOI, merged.DOI)
}
