package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// MySQLStore is a MySQL-backed Store for shared or long-running deployments.
//
// The DSN must include parseTime=true so timestamp columns scan cleanly:
//
//	st, err := NewMySQLStore("user:pass@tcp(localhost:3306)/research?parseTime=true")
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to the database described by dsn and ensures the
// schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id VARCHAR(255) PRIMARY KEY,
			data JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id VARCHAR(255) PRIMARY KEY,
			paper_id VARCHAR(255) NOT NULL,
			data JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_notes_paper (paper_id)
		)`,
		`CREATE TABLE IF NOT EXISTS themes (
			id VARCHAR(255) PRIMARY KEY,
			data JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			id VARCHAR(255) PRIMARY KEY,
			data JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const mysqlUpsert = `INSERT INTO %s (id, data) VALUES (?, ?)
	ON DUPLICATE KEY UPDATE data = VALUES(data)`

func (s *MySQLStore) upsert(ctx context.Context, table, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table, err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(mysqlUpsert, table), id, string(data))
	return err
}

// SavePaper implements Store.
func (s *MySQLStore) SavePaper(ctx context.Context, p research.Paper) error {
	return s.upsert(ctx, "papers", p.ID, p)
}

// GetPaper implements Store.
func (s *MySQLStore) GetPaper(ctx context.Context, id string) (*research.Paper, error) {
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

// SearchPapers implements Store.
func (s *MySQLStore) SearchPapers(ctx context.Context, query string, limit int, sortBy SortBy) ([]research.Paper, error) {
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
func (s *MySQLStore) GetAllPapers(ctx context.Context) ([]research.Paper, error) {
	return scanAll[research.Paper](ctx, s.db, `SELECT data FROM papers ORDER BY created_at, id`)
}

// SavePaperNotes implements Store.
func (s *MySQLStore) SavePaperNotes(ctx context.Context, p research.Paper, notes []research.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	paperData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(mysqlUpsert, "papers"), p.ID, string(paperData)); err != nil {
		return err
	}
	for _, n := range notes {
		noteData, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal note: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, paper_id, data) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE data = VALUES(data)`,
			n.ID, n.PaperID, string(noteData)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveNote implements Store.
func (s *MySQLStore) SaveNote(ctx context.Context, n research.Note) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, paper_id, data) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE data = VALUES(data)`,
		n.ID, n.PaperID, string(data))
	return err
}

// GetAllNotes implements Store.
func (s *MySQLStore) GetAllNotes(ctx context.Context) ([]research.Note, error) {
	return scanAll[research.Note](ctx, s.db, `SELECT data FROM notes ORDER BY created_at, id`)
}

// SaveTheme implements Store.
func (s *MySQLStore) SaveTheme(ctx context.Context, t research.Theme) error {
	return s.upsert(ctx, "themes", t.ID, t)
}

// GetAllThemes implements Store.
func (s *MySQLStore) GetAllThemes(ctx context.Context) ([]research.Theme, error) {
	return scanAll[research.Theme](ctx, s.db, `SELECT data FROM themes ORDER BY created_at, id`)
}

// SaveCitation implements Store.
func (s *MySQLStore) SaveCitation(ctx context.Context, c research.Citation) error {
	return s.upsert(ctx, "citations", c.ID, c)
}

// GetAllCitations implements Store.
func (s *MySQLStore) GetAllCitations(ctx context.Context) ([]research.Citation, error) {
	return scanAll[research.Citation](ctx, s.db, `SELECT data FROM citations ORDER BY created_at, id`)
}

// Stats implements Store.
func (s *MySQLStore) Stats(ctx context.Context) (Stats, error) {
	return countStats(ctx, s.db)
}

// Close implements Store.
func (s *MySQLStore) Close() error { return s.db.Close() }
