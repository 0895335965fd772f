// Package crossref implements the source.Adapter contract over the CrossRef
// works API. CrossRef is also the enrichment source used by the citation
// stage's GetByDOI lookups.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

// DefaultBaseURL is the CrossRef REST API endpoint.
const DefaultBaseURL = "https://api.crossref.org/works"

// jatsTags strips JATS markup from CrossRef abstracts.
var jatsTags = regexp.MustCompile(`</?jats:[a-z]+[^>]*>|</?[a-z]+[^>]*>`)

// Adapter queries CrossRef and translates work items into research.Paper.
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

// WithMailto identifies the caller to CrossRef's polite pool.
func WithMailto(addr string) Option { return func(a *Adapter) { a.mailto = addr } }

// New creates a CrossRef adapter.
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
func (a *Adapter) Name() string { return "crossref" }

type listResponse struct {
	Message struct {
		Items []item `json:"items"`
	} `json:"message"`
}

type itemResponse struct {
	Message item `json:"message"`
}

type item struct {
	DOI      string   `json:"DOI"`
	Title    []string `json:"title"`
	Abstract string   `json:"abstract"`
	URL      string   `json:"URL"`
	Subject  []string `json:"subject"`
	Author   []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	ContainerTitle []string `json:"container-title"`
	IsReferenced   int      `json:"is-referenced-by-count"`
	Published      struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
}

// Search implements source.Adapter.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int, dateFrom time.Time) ([]research.Paper, error) {
	params := url.Values{
		"query": {query},
		"rows":  {fmt.Sprintf("%d", maxResults)},
	}
	if !dateFrom.IsZero() {
		params.Set("filter", "from-pub-date:"+dateFrom.Format("2006-01-02"))
	}
	if a.mailto != "" {
		params.Set("mailto", a.mailto)
	}

	var out listResponse
	if err := a.getJSON(ctx, a.baseURL+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}

	papers := make([]research.Paper, 0, len(out.Message.Items))
	for _, it := range out.Message.Items {
		papers = append(papers, a.toPaper(it))
	}
	a.logger.Info("crossref search completed",
		zap.String("query", query),
		zap.Int("results", len(papers)))
	return papers, nil
}

// GetByDOI implements source.Adapter.
func (a *Adapter) GetByDOI(ctx context.Context, doi string) (*research.Paper, error) {
	var out itemResponse
	if err := a.getJSON(ctx, a.baseURL+"/"+url.PathEscape(doi), &out); err != nil {
		return nil, err
	}
	if out.Message.DOI == "" {
		return nil, nil
	}
	p := a.toPaper(out.Message)
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

func (a *Adapter) toPaper(it item) research.Paper {
	authors := make([]string, 0, len(it.Author))
	for _, au := range it.Author {
		name := strings.TrimSpace(au.Given + " " + au.Family)
		if name != "" {
			authors = append(authors, name)
		}
	}

	title := ""
	if len(it.Title) > 0 {
		title = it.Title[0]
	}
	venue := ""
	if len(it.ContainerTitle) > 0 {
		venue = it.ContainerTitle[0]
	}

	var published time.Time
	if len(it.Published.DateParts) > 0 {
		parts := it.Published.DateParts[0]
		year, month, day := 0, 1, 1
		if len(parts) > 0 {
			year = parts[0]
		}
		if len(parts) > 1 {
			month = parts[1]
		}
		if len(parts) > 2 {
			day = parts[2]
		}
		if year > 0 {
			published = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}

	abstract := strings.TrimSpace(jatsTags.ReplaceAllString(it.Abstract, " "))
	abstract = strings.Join(strings.Fields(abstract), " ")

	return research.Paper{
		ID:        "crossref:" + strings.ToLower(it.DOI),
		Title:     title,
		Authors:   authors,
		Abstract:  abstract,
		URL:       it.URL,
		Published: published,
		Venue:     venue,
		Citations: it.IsReferenced,
		DOI:       strings.ToLower(it.DOI),
		Keywords:  it.Subject,
		Source:    "CrossRef",
		CreatedAt: time.Now().UTC(),
	}
}
