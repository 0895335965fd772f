// Package arxiv implements the source.Adapter contract over the arXiv Atom
// query API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

// DefaultBaseURL is the arXiv export API endpoint.
const DefaultBaseURL = "http://export.arxiv.org/api/query"

// Adapter queries arXiv and translates Atom entries into research.Paper
// records. It does no caching, retry, or ranking.
type Adapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint (used by tests against a stub
// server).
func WithBaseURL(u string) Option { return func(a *Adapter) { a.baseURL = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(a *Adapter) { a.client = c } }

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option { return func(a *Adapter) { a.logger = l } }

// New creates an arXiv adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return "arxiv" }

// atom feed subset we decode.
type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID         string   `xml:"id"`
	Title      string   `xml:"title"`
	Summary    string   `xml:"summary"`
	Published  string   `xml:"published"`
	Authors    []author `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	DOI   string `xml:"doi"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

// Search implements source.Adapter.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int, dateFrom time.Time) ([]research.Paper, error) {
	search := "all:" + query
	if !dateFrom.IsZero() {
		search += fmt.Sprintf(" AND submittedDate:[%s0000 TO 999912312359]",
			dateFrom.Format("20060102"))
	}
	params := url.Values{
		"search_query": {search},
		"start":        {"0"},
		"max_results":  {fmt.Sprintf("%d", maxResults)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	body, err := a.get(ctx, a.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, &source.Error{Source: a.Name(), Kind: source.ErrInvalidResponse, Detail: err.Error()}
	}

	papers := make([]research.Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		papers = append(papers, a.toPaper(e))
	}
	a.logger.Info("arxiv search completed",
		zap.String("query", query),
		zap.Int("results", len(papers)))
	return papers, nil
}

// GetByDOI implements source.Adapter. arXiv's query API has no DOI index.
func (a *Adapter) GetByDOI(ctx context.Context, doi string) (*research.Paper, error) {
	return nil, &source.Error{Source: a.Name(), Kind: source.ErrNotSupported}
}

func (a *Adapter) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &source.Error{Source: a.Name(), Kind: source.ErrUnavailable, Detail: err.Error()}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.Error{Source: a.Name(), Kind: source.ErrUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.Error{Source: a.Name(), Kind: source.ErrRateLimited,
			Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &source.Error{Source: a.Name(), Kind: source.ErrUnavailable,
			Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &source.Error{Source: a.Name(), Kind: source.ErrInvalidResponse, Detail: err.Error()}
	}
	return body, nil
}

func (a *Adapter) toPaper(e entry) research.Paper {
	arxivID := strings.TrimPrefix(e.ID, "http://arxiv.org/abs/")
	arxivID = strings.TrimPrefix(arxivID, "https://arxiv.org/abs/")
	if i := strings.LastIndex(arxivID, "v"); i > 0 {
		// Strip the version suffix so identical papers from different
		// sources compare equal on arXiv id.
		if _, rest := arxivID[:i], arxivID[i+1:]; allDigits(rest) {
			arxivID = arxivID[:i]
		}
	}

	authors := make([]string, 0, len(e.Authors))
	for _, au := range e.Authors {
		if name := strings.TrimSpace(au.Name); name != "" {
			authors = append(authors, name)
		}
	}
	keywords := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		keywords = append(keywords, c.Term)
	}

	var published time.Time
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		published = t
	}

	paperURL := e.ID
	for _, l := range e.Links {
		if l.Rel == "alternate" {
			paperURL = l.Href
		}
	}

	return research.Paper{
		ID:        "arxiv:" + arxivID,
		Title:     strings.Join(strings.Fields(e.Title), " "),
		Authors:   authors,
		Abstract:  strings.TrimSpace(e.Summary),
		URL:       paperURL,
		Published: published,
		Venue:     "arXiv",
		DOI:       strings.TrimSpace(e.DOI),
		ArxivID:   arxivID,
		Keywords:  keywords,
		Source:    "arXiv",
		CreatedAt: time.Now().UTC(),
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
