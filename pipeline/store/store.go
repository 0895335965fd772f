// Package store defines the persistent-store contract the pipeline writes
// papers, notes, themes, and citations through, plus three implementations:
// in-memory (testing), SQLite (single-process persistence), and MySQL
// (shared production persistence).
//
// Implementations are thread-safe; concurrent callers see atomic
// single-record writes, and SavePaperNotes persists a paper and its notes in
// one transaction.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SortBy selects the ordering for SearchPapers.
type SortBy string

// Paper search orderings.
const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
	SortCitations SortBy = "citations"
)

// Stats summarizes stored record counts.
type Stats struct {
	Papers    int `json:"papers"`
	Notes     int `json:"notes"`
	Themes    int `json:"themes"`
	Citations int `json:"citations"`
}

// Store is the outbound persistence contract required by the pipeline.
type Store interface {
	// SavePaper upserts a single paper atomically.
	SavePaper(ctx context.Context, p research.Paper) error

	// GetPaper returns the paper with the given id, or ErrNotFound.
	GetPaper(ctx context.Context, id string) (*research.Paper, error)

	// SearchPapers returns up to limit papers matching the free-text query,
	// ordered by sortBy.
	SearchPapers(ctx context.Context, query string, limit int, sortBy SortBy) ([]research.Paper, error)

	// GetAllPapers returns every stored paper.
	GetAllPapers(ctx context.Context) ([]research.Paper, error)

	// SavePaperNotes persists a paper together with its notes in a single
	// transaction.
	SavePaperNotes(ctx context.Context, p research.Paper, notes []research.Note) error

	// SaveNote upserts a single note atomically.
	SaveNote(ctx context.Context, n research.Note) error

	// GetAllNotes returns every stored note.
	GetAllNotes(ctx context.Context) ([]research.Note, error)

	// SaveTheme upserts a single theme atomically.
	SaveTheme(ctx context.Context, t research.Theme) error

	// GetAllThemes returns every stored theme.
	GetAllThemes(ctx context.Context) ([]research.Theme, error)

	// SaveCitation upserts a single citation atomically.
	SaveCitation(ctx context.Context, c research.Citation) error

	// GetAllCitations returns every stored citation.
	GetAllCitations(ctx context.Context) ([]research.Citation, error)

	// Stats reports record counts per collection.
	Stats(ctx context.Context) (Stats, error)

	// Close releases underlying resources.
	Close() error
}

// rankPapers orders papers for SearchPapers. Relevance is a token-overlap
// count of the query against title+abstract; the Go-side ranking keeps the
// three implementations consistent.
func rankPapers(papers []research.Paper, query string, limit int, sortBy SortBy) []research.Paper {
	switch sortBy {
	case SortDate:
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].Published.After(papers[j].Published)
		})
	case SortCitations:
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].Citations > papers[j].Citations
		})
	default:
		scores := make(map[string]int, len(papers))
		tokens := strings.Fields(strings.ToLower(query))
		for _, p := range papers {
			text := strings.ToLower(p.Title + " " + p.Abstract)
			n := 0
			for _, tok := range tokens {
				if strings.Contains(text, tok) {
					n++
				}
			}
			scores[p.ID] = n
		}
		sort.SliceStable(papers, func(i, j int) bool {
			return scores[papers[i].ID] > scores[papers[j].ID]
		})
	}
	if limit > 0 && len(papers) > limit {
		papers = papers[:limit]
	}
	return papers
}

// matchesQuery reports whether the paper matches any query token.
func matchesQuery(p *research.Paper, query string) bool {
	text := strings.ToLower(p.Title + " " + p.Abstract)
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return query == ""
}
