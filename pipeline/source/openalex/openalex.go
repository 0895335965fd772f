// Package openalex implements the source.Adapter contract over the OpenAlex
// works API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

// DefaultBaseURL is the OpenAlex works endpoint.
const DefaultBaseURL = "https://api.openalex.org/works"

// Adapter queries OpenAlex and translates work records into research.Paper.
type Adapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	mailto  string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option { return func(a *Adapter) { a.baseURL = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(a *Adapter) { a.client = c } }

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option { return func(a *Adapter) { a.logger = l } }

// WithMailto identifies the caller to OpenAlex's polite pool.
func WithMailto(addr string) Option { return func(a *Adapter) { a.mailto = addr } }

// New creates an OpenAlex adapter.
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
func (a *Adapter) Name() string { return "openalex" }

type listResponse struct {
	Results []work `json:"results"`
}

type work struct {
	ID                    string           `json:"id"`
	DisplayName           string           `json:"display_name"`
	PublicationDate       string           `json:"publication_date"`
	DOI                   string           `json:"doi"`
	CitedByCount          int              `json:"cited_by_count"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	Authorships           []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation struct {
		LandingPageURL string `json:"landing_page_url"`
		Source         struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	Concepts []struct {
		DisplayName string  `json:"display_name"`
		Score       float64 `json:"score"`
	} `json:"concepts"`
	IDs struct {
		Arxiv string `json:"arxiv,omitempty"`
	} `json:"ids"`
}

// Search implements source.Adapter.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int, dateFrom time.Time) ([]research.Paper, error) {
	params := url.Values{
		"search":   {query},
		"per-page": {fmt.Sprintf("%d", maxResults)},
	}
	if !dateFrom.IsZero() {
		params.Set("filter", "from_publication_date:"+dateFrom.Format("2006-01-02"))
	}
	if a.mailto != "" {
		params.Set("mailto", a.mailto)
	}

	var out listResponse
	if err := a.getJSON(ctx, a.baseURL+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}

	papers := make([]research.Paper, 0, len(out.Results))
	for _, w := range out.Results {
		papers = append(papers, a.toPaper(w))
	}
	a.logger.Info("openalex search completed",
		zap.String("query", query),
		zap.Int("results", len(papers)))
	return papers, nil
}

// GetByDOI implements source.Adapter.
func (a *Adapter) GetByDOI(ctx context.Context, doi string) (*research.Paper, error) {
	u := a.baseURL + "/" + url.PathEscape("https://doi.org/"+doi)
	var w work
	if err := a.getJSON(ctx, u, &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, nil
	}
	p := a.toPaper(w)
	return &p, nil
}

func (a *Adapter) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &source.Error{Source: a.Name(), Kind: source.ErrUnavailable, Detail: err.Error()}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return &source.Error{Source: a.Name(), Kind: source.ErrUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &source.Error{Source: a.Name(), Kind: source.ErrRateLimited,
			Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode != http.StatusOK:
		return &source.Error{Source: a.Name(), Kind: source.ErrUnavailable,
			Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &source.Error{Source: a.Name(), Kind: source.ErrInvalidResponse, Detail: err.Error()}
	}
	return nil
}

func (a *Adapter) toPaper(w work) research.Paper {
	authors := make([]string, 0, len(w.Authorships))
	for _, au := range w.Authorships {
		if au.Author.DisplayName != "" {
			authors = append(authors, au.Author.DisplayName)
		}
	}

	keywords := make([]string, 0, len(w.Concepts))
	for _, c := range w.Concepts {
		if c.Score >= 0.3 {
			keywords = append(keywords, c.DisplayName)
		}
	}

	var published time.Time
	if t, err := time.Parse("2006-01-02", w.PublicationDate); err == nil {
		published = t
	}

	doi := strings.TrimPrefix(w.DOI, "https://doi.org/")
	arxivID := strings.TrimPrefix(w.IDs.Arxiv, "https://arxiv.org/abs/")

	id := strings.TrimPrefix(w.ID, "https://openalex.org/")

	return research.Paper{
		ID:        "openalex:" + id,
		Title:     w.DisplayName,
		Authors:   authors,
		Abstract:  reconstructAbstract(w.AbstractInvertedIndex),
		URL:       w.PrimaryLocation.LandingPageURL,
		Published: published,
		Venue:     w.PrimaryLocation.Source.DisplayName,
		Citations: w.CitedByCount,
		DOI:       doi,
		ArxivID:   arxivID,
		Keywords:  keywords,
		Source:    "OpenAlex",
		CreatedAt: time.Now().UTC(),
	}
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index
// (word -> positions).
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type slot struct {
		pos  int
		word string
	}
	slots := make([]slot, 0, len(index)*2)
	for word, positions := range index {
		for _, pos := range positions {
			slots = append(slots, slot{pos: pos, word: word})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].pos < slots[j].pos })
	words := make([]string, len(slots))
	for i, s := range slots {
		words[i] = s.word
	}
	return strings.Join(words, " ")
}
