package pipeline

import (
	"context"
	"errors"

	"github.com/dshills/researchpipe-go/pipeline/cite"
	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

type citationOutput struct {
	Citations    []research.Citation `json:"citations"`
	Bibliography string              `json:"bibliography"`
	Report       cite.Report         `json:"report"`
}

// runCitations formats one citation per paper, optionally enriching
// metadata through CrossRef DOI lookup, and assembles the bibliography
// and quality report.
func (w *Workflow) runCitations(ctx context.Context, papers []research.Paper) (citationOutput, error) {
	enriched := make([]research.Paper, len(papers))
	copy(enriched, papers)
	// Adapters without DOI lookup declare themselves once; paying their
	// rate limit again for every paper would only buy ErrNotSupported.
	noLookup := make(map[string]bool, len(w.sources))
	for i := range enriched {
		if enriched[i].DOI == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return citationOutput{}, err
		}
		w.enrichFromDOI(ctx, &enriched[i], noLookup)
	}

	gen := cite.NewKeyGenerator()
	keys := make(map[string]string, len(enriched))
	citations := make([]research.Citation, 0, len(enriched))
	for i := range enriched {
		p := &enriched[i]
		key := gen.Key(p, i)
		keys[p.ID] = key
		citations = append(citations, research.Citation{
			ID:      "cite_" + p.ID,
			PaperID: p.ID,
			Key:     key,
			APA:     cite.APA(p),
			MLA:     cite.MLA(p),
			BibTeX:  cite.BibTeX(p, key),
			Chicago: cite.Chicago(p),
		})
	}

	return citationOutput{
		Citations:    citations,
		Bibliography: cite.Bibliography(enriched),
		Report:       cite.AssessAll(enriched, keys),
	}, nil
}

// enrichFromDOI fills in richer metadata from a DOI-capable source.
// Lookup failures leave the paper unchanged. Sources recorded in
// noLookup are skipped without touching their rate limiter.
func (w *Workflow) enrichFromDOI(ctx context.Context, p *research.Paper, noLookup map[string]bool) {
	for i := range w.sources {
		src := &w.sources[i]
		name := src.adapter.Name()
		if noLookup[name] {
			continue
		}
		if err := src.limiter.Acquire(ctx); err != nil {
			return
		}
		found, err := src.adapter.GetByDOI(ctx, p.DOI)
		if err != nil {
			if errors.Is(err, source.ErrNotSupported) {
				noLookup[name] = true
			} else {
				w.metrics.SourceError(name, "unavailable")
			}
			continue
		}
		if found == nil {
			continue
		}
		mergeRicher(p, found)
		return
	}
}

// mergeRicher overwrites fields of dst where src carries strictly more
// information: longer title, longer abstract, more authors, a more
// specific venue.
func mergeRicher(dst, src *research.Paper) {
	if len(src.Title) > len(dst.Title) {
		dst.Title = src.Title
	}
	if len(src.Abstract) > len(dst.Abstract) {
		dst.Abstract = src.Abstract
	}
	if len(src.Authors) > len(dst.Authors) {
		dst.Authors = src.Authors
	}
	if len(src.Venue) > len(dst.Venue) {
		dst.Venue = src.Venue
	}
	if dst.Published.IsZero() && !src.Published.IsZero() {
		dst.Published = src.Published
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if src.Citations > dst.Citations {
		dst.Citations = src.Citations
	}
}
