package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// SQLiteStore is a SQLite-backed Store.
//
// Records are stored as JSON blobs next to the columns needed for lookups.
// Designed for single-process workflows that need persistence with zero
// setup; WAL mode keeps concurrent readers from blocking the writer.
//
// Example:
//
//	st, err := NewSQLiteStore("./research.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			paper_id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS themes (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_paper ON notes(paper_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const sqliteUpsert = `INSERT INTO %s (id, data) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET data = excluded.data`

func (s *SQLiteStore) upsert(ctx context.Context, table, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table, err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(sqliteUpsert, table), id, string(data))
	return err
}

// SavePaper implements Store.
func (s *SQLiteStore) SavePaper(ctx context.Context, p research.Paper) error {
	return s.upsert(ctx, "papers", p.ID, p)
}

// GetPaper implements Store.
func (s *SQLiteStore) GetPaper(ctx context.Context, id string) (*research.Paper, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM papers WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p research.Paper
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, err)
	}
	return &p, nil
}

// SearchPapers implements Store. Matching and ranking happen Go-side so all
// store implementations order results identically.
func (s *SQLiteStore) SearchPapers(ctx context.Context, query string, limit int, sortBy SortBy) ([]research.Paper, error) {
	all, err := s.GetAllPapers(ctx)
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, p := range all {
		if matchesQuery(&p, query) {
			matched = append(matched, p)
		}
	}
	return rankPapers(matched, query, limit, sortBy), nil
}

// GetAllPapers implements Store.
func (s *SQLiteStore) GetAllPapers(ctx context.Context) ([]research.Paper, error) {
	return scanAll[research.Paper](ctx, s.db, `SELECT data FROM papers ORDER BY created_at, id`)
}

// SavePaperNotes implements Store. The paper and its notes commit in one
// transaction.
func (s *SQLiteStore) SavePaperNotes(ctx context.Context, p research.Paper, notes []research.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	paperData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(sqliteUpsert, "papers"), p.ID, string(paperData)); err != nil {
		return err
	}
	for _, n := range notes {
		noteData, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal note: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, paper_id, data) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
			n.ID, n.PaperID, string(noteData)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveNote implements Store.
func (s *SQLiteStore) SaveNote(ctx context.Context, n research.Note) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, paper_id, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		n.ID, n.PaperID, string(data))
	return err
}

// GetAllNotes implements Store.
func (s *SQLiteStore) GetAllNotes(ctx context.Context) ([]research.Note, error) {
	return scanAll[research.Note](ctx, s.db, `SELECT data FROM notes ORDER BY created_at, id`)
}

// SaveTheme implements Store.
func (s *SQLiteStore) SaveTheme(ctx context.Context, t research.Theme) error {
	return s.upsert(ctx, "themes", t.ID, t)
}

// GetAllThemes implements Store.
func (s *SQLiteStore) GetAllThemes(ctx context.Context) ([]research.Theme, error) {
	return scanAll[research.Theme](ctx, s.db, `SELECT data FROM themes ORDER BY created_at, id`)
}

// SaveCitation implements Store.
func (s *SQLiteStore) SaveCitation(ctx context.Context, c research.Citation) error {
	return s.upsert(ctx, "citations", c.ID, c)
}

// GetAllCitations implements Store.
func (s *SQLiteStore) GetAllCitations(ctx context.Context) ([]research.Citation, error) {
	return scanAll[research.Citation](ctx, s.db, `SELECT data FROM citations ORDER BY created_at, id`)
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	return countStats(ctx, s.db)
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// scanAll decodes every JSON row of a single-column query.
func scanAll[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// countStats tallies record counts shared by the SQL-backed stores.
func countStats(ctx context.Context, db *sql.DB) (Stats, error) {
	var st Stats
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"papers", &st.Papers},
		{"notes", &st.Notes},
		{"themes", &st.Themes},
		{"citations", &st.Citations},
	} {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}
