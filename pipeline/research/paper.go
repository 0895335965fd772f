// Package research defines the data model shared by every pipeline stage:
// papers, extracted notes, synthesized themes, and formatted citations.
//
// All types are plain JSON-serializable values. Stages exchange them by
// value or by id; there is no cyclic ownership between them (notes, themes
// and citations refer to papers by id only).
package research

import (
	"regexp"
	"strings"
	"time"
)

// doiPattern validates canonical DOI syntax (10.xxxx/suffix).
var doiPattern = regexp.MustCompile(`^10\.\d{4,}/\S+$`)

// Paper is a single bibliographic record produced by the literature stage.
//
// Papers are immutable after ingestion: later stages reference them by ID
// but never mutate them. IDs are source-prefixed (e.g. "arxiv:2301.00001",
// "openalex:W2741809807") and unique within a process.
type Paper struct {
	// ID uniquely identifies the paper, prefixed with its source.
	ID string `json:"id"`

	// Title is the paper title as reported by the source.
	Title string `json:"title"`

	// Authors holds author display names in publication order.
	Authors []string `json:"authors"`

	// Abstract may be empty; adapters populate it when the source provides one.
	Abstract string `json:"abstract"`

	// URL is the canonical landing page for the paper.
	URL string `json:"url"`

	// Published is the publication date. Zero value means unknown.
	Published time.Time `json:"published,omitempty"`

	// Venue is the journal, conference, or repository label.
	Venue string `json:"venue"`

	// Citations is the citation count reported by the source. Never negative.
	Citations int `json:"citations"`

	// DOI is the digital object identifier, if known.
	// When non-empty it matches ^10\.\d{4,}/\S+$.
	DOI string `json:"doi,omitempty"`

	// ArxivID is the arXiv identifier, if known (e.g. "2301.00001").
	ArxivID string `json:"arxiv_id,omitempty"`

	// Keywords holds subject keywords or categories from the source.
	Keywords []string `json:"keywords,omitempty"`

	// FullText is the optional full-text payload, fetched lazily.
	FullText string `json:"full_text,omitempty"`

	// Source is the explicit source tag set at ingestion. When empty the
	// tag is inferred; use SourceTag instead of reading this directly.
	Source string `json:"source,omitempty"`

	// CreatedAt records when the paper entered the pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// ValidDOI reports whether s is a syntactically valid DOI.
func ValidDOI(s string) bool {
	return doiPattern.MatchString(s)
}

// SourceTag returns the source label for the paper.
//
// Resolution order: explicit Source field, then arXiv id, then DOI prefix
// domain, then venue substring, then "Unknown". The tag is derived on
// demand and never persisted separately from the paper.
func (p *Paper) SourceTag() string {
	if p.Source != "" {
		return p.Source
	}
	if p.ArxivID != "" {
		return "arXiv"
	}
	if p.DOI != "" {
		return doiDomain(p.DOI)
	}
	venue := strings.ToLower(p.Venue)
	switch {
	case strings.Contains(venue, "arxiv"):
		return "arXiv"
	case strings.Contains(venue, "openalex"):
		return "OpenAlex"
	case strings.Contains(venue, "crossref"):
		return "CrossRef"
	}
	return "Unknown"
}

// doiDomain maps well-known DOI registrant prefixes to a source label.
func doiDomain(doi string) string {
	switch {
	case strings.HasPrefix(doi, "10.48550/"): // arXiv's DataCite prefix
		return "arXiv"
	default:
		return "CrossRef"
	}
}

// Year returns the publication year, or 0 when the date is unknown.
func (p *Paper) Year() int {
	if p.Published.IsZero() {
		return 0
	}
	return p.Published.Year()
}

// FirstAuthorLastName returns the lowercased last name of the first author,
// or "" when the author list is empty. Only alphabetic runes are kept, which
// normalizes names like "O'Brien" and hyphenated surnames for matching.
func (p *Paper) FirstAuthorLastName() string {
	if len(p.Authors) == 0 {
		return ""
	}
	fields := strings.Fields(p.Authors[0])
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	var b strings.Builder
	for _, r := range strings.ToLower(last) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Content returns the best available body text for note extraction:
// full text when present, abstract otherwise.
func (p *Paper) Content() string {
	if p.FullText != "" {
		return p.FullText
	}
	return p.Abstract
}
