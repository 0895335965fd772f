package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

func TestRunCitations(t *testing.T) {
	thin := stubPaper("crossref", "10.1000/thin", "Sparse Record", "short")
	thin.DOI = "10.1000/thin"
	plain := stubPaper("arxiv", "2301.00009", "Untouched Preprint", "no doi here")

	richer := research.Paper{
		ID:        "crossref:10.1000/thin",
		DOI:       "10.1000/thin",
		Title:     "Sparse Record Reconstructed from Registry Metadata",
		Abstract:  "A much longer abstract recovered from the registry record.",
		Authors:   []string{"Jane Smith", "Wei Chen", "Ada Okoro"},
		Venue:     "Journal of Testing and Measurement",
		Citations: 90,
	}

	adapters := []source.Adapter{
		&stubAdapter{name: "arxiv"},
		&stubAdapter{name: "crossref", doiPaper: &richer},
	}
	w := newTestWorkflow(t, okProvider(), adapters)

	papers := []research.Paper{thin, plain}
	out, err := w.runCitations(context.Background(), papers)
	if err != nil {
		t.Fatalf("runCitations() error: %v", err)
	}

	if len(out.Citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(out.Citations))
	}
	for i, c := range out.Citations {
		if c.ID != "cite_"+c.PaperID {
			t.Errorf("citation %d ID = %q, want cite_%s", i, c.ID, c.PaperID)
		}
	}
	if out.Citations[0].Key == out.Citations[1].Key {
		t.Errorf("duplicate citation keys: %q", out.Citations[0].Key)
	}

	// DOI enrichment replaced the thin record's title everywhere.
	if !strings.Contains(out.Citations[0].APA, "Sparse Record Reconstructed") {
		t.Errorf("APA not enriched: %q", out.Citations[0].APA)
	}
	if !strings.Contains(out.Bibliography, "Journal of Testing and Measurement") {
		t.Errorf("bibliography missing enriched venue:\n%s", out.Bibliography)
	}
	if !strings.HasPrefix(out.Bibliography, "References") {
		t.Errorf("bibliography header = %q", out.Bibliography[:20])
	}
	if out.Report.AverageScore <= 0 {
		t.Errorf("AverageScore = %v", out.Report.AverageScore)
	}

	// The caller's slice is left alone.
	if papers[0].Title != "Sparse Record" {
		t.Errorf("input paper mutated: %q", papers[0].Title)
	}
}

func TestRunCitations_LookupNotSupported(t *testing.T) {
	p := stubPaper("arxiv", "2301.00010", "Resilient Formatting", "abstract")
	p.DOI = "10.1000/none"

	w := newTestWorkflow(t, okProvider(), testAdapters())
	out, err := w.runCitations(context.Background(), []research.Paper{p})
	if err != nil {
		t.Fatalf("runCitations() error: %v", err)
	}
	if len(out.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(out.Citations))
	}
	if !strings.Contains(out.Citations[0].APA, "Resilient Formatting") {
		t.Errorf("APA = %q", out.Citations[0].APA)
	}
}

func TestRunCitations_SkipsLookupIncapableSources(t *testing.T) {
	richer := research.Paper{
		ID:    "crossref:10.1000/a",
		DOI:   "10.1000/a",
		Title: "A Record with Considerably More Registry Detail",
	}
	arxiv := &stubAdapter{name: "arxiv"} // GetByDOI always unsupported
	crossref := &stubAdapter{name: "crossref", doiPaper: &richer}
	w := newTestWorkflow(t, okProvider(), []source.Adapter{arxiv, crossref})

	papers := make([]research.Paper, 3)
	for i := range papers {
		papers[i] = stubPaper("crossref", fmt.Sprintf("10.1000/%c", 'a'+i), "Thin", "x")
		papers[i].DOI = fmt.Sprintf("10.1000/%c", 'a'+i)
	}

	if _, err := w.runCitations(context.Background(), papers); err != nil {
		t.Fatalf("runCitations() error: %v", err)
	}

	// The unsupported source is probed once, then dropped for the rest of
	// the stage; the capable source answers for every paper.
	if got := atomic.LoadInt32(&arxiv.doiCalls); got != 1 {
		t.Errorf("arxiv lookups = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&crossref.doiCalls); got != 3 {
		t.Errorf("crossref lookups = %d, want 3", got)
	}
}

func TestMergeRicher(t *testing.T) {
	published := time.Date(2020, time.June, 2, 0, 0, 0, 0, time.UTC)
	dst := research.Paper{
		Title:     "Short",
		Abstract:  "Long abstract that should survive the merge untouched.",
		Authors:   []string{"One Author"},
		Venue:     "Very Long Venue Name Kept",
		Citations: 50,
	}
	src := research.Paper{
		Title:     "A Considerably Longer Title",
		Abstract:  "tiny",
		Authors:   []string{"A", "B"},
		Venue:     "Short Venue",
		Published: published,
		URL:       "https://doi.example.org/x",
		Citations: 12,
	}

	mergeRicher(&dst, &src)

	if dst.Title != "A Considerably Longer Title" {
		t.Errorf("Title = %q", dst.Title)
	}
	if dst.Abstract != "Long abstract that should survive the merge untouched." {
		t.Errorf("Abstract = %q", dst.Abstract)
	}
	if len(dst.Authors) != 2 {
		t.Errorf("Authors = %v", dst.Authors)
	}
	if dst.Venue != "Very Long Venue Name Kept" {
		t.Errorf("Venue = %q", dst.Venue)
	}
	if !dst.Published.Equal(published) {
		t.Errorf("Published = %v, want backfilled", dst.Published)
	}
	if dst.URL != "https://doi.example.org/x" {
		t.Errorf("URL = %q, want backfilled", dst.URL)
	}
	if dst.Citations != 50 {
		t.Errorf("Citations = %d, want 50", dst.Citations)
	}
}
