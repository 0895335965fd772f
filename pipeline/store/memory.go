package store

import (
	"context"
	"sync"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// MemStore is an in-memory Store.
//
// Designed for testing and short-lived runs where persistence is not
// required. Thread-safe. Data is lost when the process exits; use
// SQLiteStore or MySQLStore for durable storage.
type MemStore struct {
	mu        sync.RWMutex
	papers    map[string]research.Paper
	order     []string // paper insertion order
	notes     map[string]research.Note
	noteOrder []string
	themes    map[string]research.Theme
	themeIDs  []string
	citations map[string]research.Citation
	citeIDs   []string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		papers:    make(map[string]research.Paper),
		notes:     make(map[string]research.Note),
		themes:    make(map[string]research.Theme),
		citations: make(map[string]research.Citation),
	}
}

// SavePaper implements Store.
func (s *MemStore) SavePaper(ctx context.Context, p research.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertPaper(p)
	return nil
}

func (s *MemStore) upsertPaper(p research.Paper) {
	if _, exists := s.papers[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.papers[p.ID] = p
}

// GetPaper implements Store.
func (s *MemStore) GetPaper(ctx context.Context, id string) (*research.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// SearchPapers implements Store.
func (s *MemStore) SearchPapers(ctx context.Context, query string, limit int, sortBy SortBy) ([]research.Paper, error) {
	s.mu.RLock()
	matched := make([]research.Paper, 0, len(s.order))
	for _, id := range s.order {
		p := s.papers[id]
		if matchesQuery(&p, query) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()
	return rankPapers(matched, query, limit, sortBy), nil
}

// GetAllPapers implements Store.
func (s *MemStore) GetAllPapers(ctx context.Context) ([]research.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]research.Paper, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.papers[id])
	}
	return out, nil
}

// SavePaperNotes implements Store. The paper and its notes commit together
// under one lock acquisition.
func (s *MemStore) SavePaperNotes(ctx context.Context, p research.Paper, notes []research.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertPaper(p)
	for _, n := range notes {
		s.upsertNote(n)
	}
	return nil
}

// SaveNote implements Store.
func (s *MemStore) SaveNote(ctx context.Context, n research.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertNote(n)
	return nil
}

func (s *MemStore) upsertNote(n research.Note) {
	if _, exists := s.notes[n.ID]; !exists {
		s.noteOrder = append(s.noteOrder, n.ID)
	}
	s.notes[n.ID] = n
}

// GetAllNotes implements Store.
func (s *MemStore) GetAllNotes(ctx context.Context) ([]research.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]research.Note, 0, len(s.noteOrder))
	for _, id := range s.noteOrder {
		out = append(out, s.notes[id])
	}
	return out, nil
}

// SaveTheme implements Store.
func (s *MemStore) SaveTheme(ctx context.Context, t research.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.themes[t.ID]; !exists {
		s.themeIDs = append(s.themeIDs, t.ID)
	}
	s.themes[t.ID] = t
	return nil
}

// GetAllThemes implements Store.
func (s *MemStore) GetAllThemes(ctx context.Context) ([]research.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]research.Theme, 0, len(s.themeIDs))
	for _, id := range s.themeIDs {
		out = append(out, s.themes[id])
	}
	return out, nil
}

// SaveCitation implements Store.
func (s *MemStore) SaveCitation(ctx context.Context, c research.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.citations[c.ID]; !exists {
		s.citeIDs = append(s.citeIDs, c.ID)
	}
	s.citations[c.ID] = c
	return nil
}

// GetAllCitations implements Store.
func (s *MemStore) GetAllCitations(ctx context.Context) ([]research.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]research.Citation, 0, len(s.citeIDs))
	for _, id := range s.citeIDs {
		out = append(out, s.citations[id])
	}
	return out, nil
}

// Stats implements Store.
func (s *MemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Papers:    len(s.papers),
		Notes:     len(s.notes),
		Themes:    len(s.themes),
		Citations: len(s.citations),
	}, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
