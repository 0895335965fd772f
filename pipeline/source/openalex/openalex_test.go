package openalex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/source"
)

const sampleWork = `{
  "id": "https://openalex.org/W2741809807",
  "display_name": "Attention Is All You Need",
  "publication_date": "2017-06-12",
  "doi": "https://doi.org/10.5555/3295222",
  "cited_by_count": 90000,
  "abstract_inverted_index": {"We": [0], "study": [1], "attention": [2]},
  "authorships": [
    {"author": {"display_name": "Ashish Vaswani"}},
    {"author": {"display_name": "Noam Shazeer"}}
  ],
  "primary_location": {
    "landing_page_url": "https://example.org/w1",
    "source": {"display_name": "NeurIPS"}
  },
  "concepts": [
    {"display_name": "Attention", "score": 0.9},
    {"display_name": "Marginal", "score": 0.1}
  ],
  "ids": {"arxiv": "https://arxiv.org/abs/1706.03762"}
}`

func TestAdapter_Search(t *testing.T) {
	var gotParams map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		w.Write([]byte(`{"results": [` + sampleWork + `]}`))
	}))
	defer srv.Close()

	a := New(WithBaseURL(srv.URL), WithMailto("dev@example.org"))
	from := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	papers, err := a.Search(context.Background(), "attention", 25, from)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("papers = %d, want 1", len(papers))
	}

	p := papers[0]
	if p.ID != "openalex:W2741809807" {
		t.Errorf("ID = %q", p.ID)
	}
	if p.DOI != "10.5555/3295222" {
		t.Errorf("DOI = %q, want prefix stripped", p.DOI)
	}
	if p.ArxivID != "1706.03762" {
		t.Errorf("ArxivID = %q", p.ArxivID)
	}
	if p.Abstract != "We study attention" {
		t.Errorf("Abstract = %q, want inverted index reconstructed", p.Abstract)
	}
	if p.Citations != 90000 {
		t.Errorf("Citations = %d", p.Citations)
	}
	if p.Venue != "NeurIPS" {
		t.Errorf("Venue = %q", p.Venue)
	}
	if len(p.Keywords) != 1 || p.Keywords[0] != "Attention" {
		t.Errorf("Keywords = %v, want low-score concepts dropped", p.Keywords)
	}

	if got := gotParams["filter"]; len(got) != 1 || got[0] != "from_publication_date:2015-01-01" {
		t.Errorf("filter = %v", got)
	}
	if got := gotParams["mailto"]; len(got) != 1 || got[0] != "dev@example.org" {
		t.Errorf("mailto = %v", got)
	}
	if got := gotParams["per-page"]; len(got) != 1 || got[0] != "25" {
		t.Errorf("per-page = %v", got)
	}
}

func TestAdapter_SearchErrors(t *testing.T) {
	t.Run("429 maps to rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := New(WithBaseURL(srv.URL)).Search(context.Background(), "q", 5, time.Time{})
		if !errors.Is(err, source.ErrRateLimited) {
			t.Errorf("error = %v, want ErrRateLimited", err)
		}
	})

	t.Run("malformed json maps to invalid response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results": [`))
		}))
		defer srv.Close()

		_, err := New(WithBaseURL(srv.URL)).Search(context.Background(), "q", 5, time.Time{})
		if !errors.Is(err, source.ErrInvalidResponse) {
			t.Errorf("error = %v, want ErrInvalidResponse", err)
		}
	})
}

func TestAdapter_GetByDOI(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sampleWork))
		}))
		defer srv.Close()

		p, err := New(WithBaseURL(srv.URL)).GetByDOI(context.Background(), "10.5555/3295222")
		if err != nil {
			t.Fatalf("GetByDOI() error: %v", err)
		}
		if p == nil || p.Title != "Attention Is All You Need" {
			t.Errorf("paper = %+v", p)
		}
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		p, err := New(WithBaseURL(srv.URL)).GetByDOI(context.Background(), "10.9999/none")
		if err != nil {
			t.Fatalf("GetByDOI() error: %v", err)
		}
		if p != nil {
			t.Errorf("paper = %+v, want nil for unknown DOI", p)
		}
	})
}

func TestReconstructAbstract(t *testing.T) {
	got := reconstructAbstract(map[string][]int{
		"graphs":      {2},
		"Citation":    {0},
		"informative": {3},
		"are":         {1},
	})
	if got != "Citation are graphs informative" {
		t.Errorf("reconstructAbstract() = %q", got)
	}
	if reconstructAbstract(nil) != "" {
		t.Error("empty index should yield empty abstract")
	}
}
