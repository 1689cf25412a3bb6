// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/twelman/literator/pkg/types"
)

const qualifiedPaperColumns = `p.id, p.source, p.external_id, p.title, p.abstract, p.authors,
	p.publication_year, p.journal, p.doi, p.url, p.citation_count, p.keywords, p.fetched_at`

// Filter holds parameters for store queries. Zero values mean "no filter".
type Filter struct {
	// Text is a full-text search string matched against title and abstract.
	Text string

	// Source restricts results to one origin database.
	Source types.Source

	// StartYear and EndYear bound the publication year, inclusive.
	StartYear int
	EndYear   int

	// Limit caps result count. Zero uses the store default.
	Limit int
}

// Query returns stored papers matching the filter, ordered by fetched_at
// descending with external_id ascending as the tie-breaker. An empty
// result is an empty slice, not an error.
func (s *Store) Query(ctx context.Context, f Filter) ([]types.Paper, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)

	if f.Text != "" {
		qb.WriteString(
			`SELECT ` + qualifiedPaperColumns + ` FROM papers_fts
			JOIN papers p ON p.id = papers_fts.rowid
			WHERE papers_fts MATCH ?`)
		args = append(args, f.Text)
	} else {
		qb.WriteString(`SELECT ` + qualifiedPaperColumns + ` FROM papers p WHERE 1=1`)
	}

	if f.Source != "" {
		qb.WriteString(` AND p.source = ?`)
		args = append(args, string(f.Source))
	}
	if f.StartYear > 0 {
		qb.WriteString(` AND p.publication_year >= ?`)
		args = append(args, f.StartYear)
	}
	if f.EndYear > 0 {
		qb.WriteString(` AND p.publication_year <= ?`)
		args = append(args, f.EndYear)
	}

	qb.WriteString(` ORDER BY p.fetched_at DESC, p.external_id ASC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	papers := []types.Paper{}
	for rows.Next() {
		p, _, err := scanPaper(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		papers = append(papers, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	return papers, nil
}

// KeywordCount is one entry in the keyword frequency ranking.
type KeywordCount struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Count   int    `json:"count" yaml:"count"`
}

// Stats holds aggregate counts over the stored papers. ByYear buckets
// papers with an unknown year under 0.
type Stats struct {
	TotalPapers  int            `json:"total_papers" yaml:"total_papers"`
	TotalAuthors int            `json:"total_authors" yaml:"total_authors"`
	BySource     map[string]int `json:"papers_by_source" yaml:"papers_by_source"`
	ByYear       map[int]int    `json:"papers_by_year" yaml:"papers_by_year"`
	TopKeywords  []KeywordCount `json:"top_keywords" yaml:"top_keywords"`
}

const topKeywordLimit = 10

// Stats aggregates over the stored records. It never fails on an empty
// store; all counts come back zero.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		BySource: make(map[string]int),
		ByYear:   make(map[int]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&stats.TotalPapers); err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM papers, json_each(papers.authors)`,
	).Scan(&stats.TotalAuthors); err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}

	if err := s.countGroups(ctx,
		`SELECT source, COUNT(*) FROM papers GROUP BY source`,
		func(key string, count int) { stats.BySource[key] = count },
	); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT publication_year, COUNT(*) FROM papers GROUP BY publication_year`)
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var year, count int
		if err := rows.Scan(&year, &count); err != nil {
			return Stats{}, &StorageError{Op: "stats", Err: err}
		}
		stats.ByYear[year] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}

	kwRows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT value, COUNT(*) AS n FROM papers, json_each(papers.keywords)
		 GROUP BY value ORDER BY n DESC, value ASC LIMIT %d`, topKeywordLimit))
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	defer kwRows.Close()
	for kwRows.Next() {
		var kc KeywordCount
		if err := kwRows.Scan(&kc.Keyword, &kc.Count); err != nil {
			return Stats{}, &StorageError{Op: "stats", Err: err}
		}
		stats.TopKeywords = append(stats.TopKeywords, kc)
	}
	if err := kwRows.Err(); err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}

	return stats, nil
}

func (s *Store) countGroups(ctx context.Context, query string, visit func(key string, count int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return &StorageError{Op: "stats", Err: err}
		}
		visit(key, count)
	}
	return rows.Err()
}
