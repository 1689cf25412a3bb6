// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists canonical Paper records in SQLite and decides,
// for each freshly fetched record, whether it is a new paper or a
// duplicate of one already stored. Identity is the (source, external_id)
// pair, or a shared DOI across sources.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/twelman/literator/pkg/types"
)

const defaultDBFile = "literator.db"

// StorageError reports a transactional failure the merge path could not
// resolve. The orchestrator aborts the current item and continues.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store manages the paper database.
type Store struct {
	db         *sql.DB
	policy     types.MergePolicy
	maxResults int
}

// New opens or creates the SQLite database at cfg.DBPath and creates the
// schema if it does not exist. Uniqueness of (source, external_id) and of
// non-empty DOIs is enforced at the constraint level.
func New(cfg types.StorageConfig, pol types.MergePolicy) (*Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = defaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	s := &Store{db: db, policy: pol, maxResults: maxResults}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			title TEXT NOT NULL,
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			publication_year INTEGER NOT NULL DEFAULT 0,
			journal TEXT NOT NULL DEFAULT '',
			doi TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			citation_count INTEGER NOT NULL DEFAULT 0 CHECK (citation_count >= 0),
			keywords TEXT NOT NULL DEFAULT '[]',
			fetched_at TEXT NOT NULL,
			UNIQUE (source, external_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi) WHERE doi != ''`,
		`CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(publication_year)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_fetched_at ON papers(fetched_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table over title/abstract with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, content=papers, content_rowid=id)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.id, new.title, new.abstract);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.id, old.title, old.abstract);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.id, old.title, old.abstract);
				INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.id, new.title, new.abstract);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Upsert stores one canonical paper. The identity and merge decision runs
// inside a single transaction together with exactly one write, so two
// concurrent upserts of the same identity cannot both insert. Invalid
// papers come back as a rejected Action without touching the store.
func (s *Store) Upsert(ctx context.Context, paper types.Paper) (Action, error) {
	if err := paper.Validate(); err != nil {
		return Action{Kind: ActionRejected, Err: err}, nil
	}
	if paper.FetchedAt.IsZero() {
		paper.FetchedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Action{}, &StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	// Identity lookup: (source, external_id) first, then DOI across sources.
	existing, id, err := lookup(ctx, tx, paper)
	if err != nil {
		return Action{}, &StorageError{Op: "lookup", Err: err}
	}

	if existing == nil {
		if err := insertPaper(ctx, tx, paper); err != nil {
			return Action{}, &StorageError{Op: "insert", Err: err}
		}
		if err := tx.Commit(); err != nil {
			return Action{}, &StorageError{Op: "commit", Err: err}
		}
		return Action{Kind: ActionInserted}, nil
	}

	merged, diff, conflicts := Merge(*existing, paper, s.policy)
	if err := updatePaper(ctx, tx, id, merged); err != nil {
		return Action{}, &StorageError{Op: "update", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Action{}, &StorageError{Op: "commit", Err: err}
	}
	return Action{Kind: ActionMerged, Diff: diff, Conflicts: conflicts}, nil
}

const paperColumns = `id, source, external_id, title, abstract, authors,
	publication_year, journal, doi, url, citation_count, keywords, fetched_at`

// lookup finds the stored paper sharing an identity with the given one.
// Returns (nil, 0, nil) when the paper is new.
func lookup(ctx context.Context, tx *sql.Tx, paper types.Paper) (*types.Paper, int64, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE source = ? AND external_id = ?`,
		string(paper.Source), paper.ExternalID,
	)
	existing, id, err := scanPaper(row)
	if err == nil {
		return existing, id, nil
	}
	if err != sql.ErrNoRows {
		return nil, 0, err
	}

	if paper.DOI == "" {
		return nil, 0, nil
	}
	row = tx.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE doi = ?`, paper.DOI,
	)
	existing, id, err = scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return existing, id, nil
}

func insertPaper(ctx context.Context, tx *sql.Tx, p types.Paper) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO papers (source, external_id, title, abstract, authors,
			publication_year, journal, doi, url, citation_count, keywords, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.Source), p.ExternalID, p.Title, p.Abstract, jsonArray(p.Authors),
		p.PublicationYear, p.Journal, p.DOI, p.URL, p.CitationCount,
		jsonArray(p.Keywords), p.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func updatePaper(ctx context.Context, tx *sql.Tx, id int64, p types.Paper) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE papers SET title = ?, abstract = ?, authors = ?,
			publication_year = ?, journal = ?, url = ?, citation_count = ?,
			keywords = ?, fetched_at = ?
		 WHERE id = ?`,
		p.Title, p.Abstract, jsonArray(p.Authors),
		p.PublicationYear, p.Journal, p.URL, p.CitationCount,
		jsonArray(p.Keywords), p.FetchedAt.UTC().Format(time.RFC3339Nano),
		id,
	)
	return err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*types.Paper, int64, error) {
	var (
		p            types.Paper
		id           int64
		source       string
		authorsJSON  string
		keywordsJSON string
		fetchedAt    string
	)
	err := row.Scan(
		&id, &source, &p.ExternalID, &p.Title, &p.Abstract, &authorsJSON,
		&p.PublicationYear, &p.Journal, &p.DOI, &p.URL, &p.CitationCount,
		&keywordsJSON, &fetchedAt,
	)
	if err != nil {
		return nil, 0, err
	}

	p.Source = types.Source(source)
	json.Unmarshal([]byte(authorsJSON), &p.Authors)
	json.Unmarshal([]byte(keywordsJSON), &p.Keywords)
	if t, perr := time.Parse(time.RFC3339Nano, fetchedAt); perr == nil {
		p.FetchedAt = t
	}
	return &p, id, nil
}

// jsonArray marshals a slice as JSON, mapping nil to an empty array so
// json_each aggregation always sees valid arrays.
func jsonArray(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}
