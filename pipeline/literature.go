package pipeline

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/dedup"
	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

// Per-source retry schedule for the literature stage.
const (
	sourceMaxAttempts = 3
	sourceBackoffBase = 30 * time.Second
	sourceBackoffCap  = 300 * time.Second
)

// Composite ranking weights. Relevance dominates; recency decays with a
// five-year half-life scale; citation counts saturate at 100.
const (
	weightRelevance = 0.5
	weightRecency   = 0.3
	weightCitations = 0.2
)

type literatureInput struct {
	Topic     string
	Aspects   []string
	MaxPapers int
	DateFrom  time.Time
}

// runLiterature fans out to every configured source concurrently, merges
// and deduplicates the results, and ranks them against the query. A
// source that fails all its retries is skipped; the stage fails with
// ErrNoPapersFound only when nothing survives from any source.
func (w *Workflow) runLiterature(ctx context.Context, in literatureInput) ([]research.Paper, error) {
	query := in.Topic
	if len(in.Aspects) > 0 {
		query += " " + strings.Join(in.Aspects, " ")
	}

	type sourceResult struct {
		papers []research.Paper
		err    error
	}

	results := make([]sourceResult, len(w.sources))
	var wg sync.WaitGroup
	for i := range w.sources {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			papers, err := w.searchSource(ctx, &w.sources[idx], query, in.MaxPapers, in.DateFrom)
			results[idx] = sourceResult{papers: papers, err: err}
		}(i)
	}
	wg.Wait()

	var merged []research.Paper
	for i, res := range results {
		if res.err != nil {
			w.emitEvent(in.Topic, stageLiterature, 1, "source_failed", map[string]interface{}{
				"source": w.sources[i].adapter.Name(),
				"error":  res.err.Error(),
			})
			continue
		}
		merged = append(merged, res.papers...)
	}
	// Empty results and all-sources-failed end the same way.
	if len(merged) == 0 {
		return nil, ErrNoPapersFound
	}

	before := len(merged)
	merged = dedup.Merge(merged)
	w.metrics.PapersDeduped(before - len(merged))

	rankPapersByQuery(merged, query)
	if len(merged) > in.MaxPapers {
		merged = merged[:in.MaxPapers]
	}
	return merged, nil
}

// searchSource runs one adapter search under its rate limiter, retrying
// transient failures with exponential backoff.
func (w *Workflow) searchSource(ctx context.Context, src *workflowSource, query string, maxResults int, dateFrom time.Time) ([]research.Paper, error) {
	var lastErr error
	for attempt := 0; attempt < sourceMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := sourceBackoffBase * (1 << (attempt - 1))
			if backoff > sourceBackoffCap {
				backoff = sourceBackoffCap
			}
			if err := w.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if err := src.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		papers, err := src.adapter.Search(ctx, query, maxResults, dateFrom)
		if err == nil {
			return papers, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, source.ErrRateLimited):
			w.metrics.SourceError(src.adapter.Name(), "rate_limited")
			src.limiter.Cooldown(err.Error())
		case errors.Is(err, source.ErrUnavailable):
			w.metrics.SourceError(src.adapter.Name(), "unavailable")
		default:
			// Malformed payloads and the like are not transient.
			w.metrics.SourceError(src.adapter.Name(), "invalid_response")
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// rankPapersByQuery sorts papers in place by the composite score
// 0.5*relevance + 0.3*recency + 0.2*normalized citations. Ties break on
// paper id so ranking is deterministic for identical inputs.
func rankPapersByQuery(papers []research.Paper, query string) {
	queryTokens := tokenize(query)
	nowYear := time.Now().Year()

	scores := make(map[string]float64, len(papers))
	for i := range papers {
		scores[papers[i].ID] = compositeScore(&papers[i], queryTokens, nowYear)
	}
	sort.SliceStable(papers, func(i, j int) bool {
		si, sj := scores[papers[i].ID], scores[papers[j].ID]
		if si != sj {
			return si > sj
		}
		return papers[i].ID < papers[j].ID
	})
}

func compositeScore(p *research.Paper, queryTokens []string, nowYear int) float64 {
	relevance := termOverlap(queryTokens, strings.ToLower(p.Title+" "+p.Abstract))

	recency := 0.0
	if year := p.Year(); year > 0 {
		recency = math.Exp(-float64(nowYear-year) / 5.0)
	}

	citations := math.Min(1.0, float64(p.Citations)/100.0)

	return weightRelevance*relevance + weightRecency*recency + weightCitations*citations
}

// termOverlap is the fraction of query tokens present in the text.
func termOverlap(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range queryTokens {
		if strings.Contains(text, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
