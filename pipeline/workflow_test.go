package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/checkpoint"
	"github.com/dshills/researchpipe-go/pipeline/emit"
	"github.com/dshills/researchpipe-go/pipeline/llm"
	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

// stubAdapter is a configurable in-memory source.Adapter.
type stubAdapter struct {
	name        string
	papers      []research.Paper
	searchErrs  []error // consumed per call; nil entries succeed
	searchCalls int32
	doiPaper    *research.Paper
	doiCalls    int32
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Search(ctx context.Context, query string, maxResults int, dateFrom time.Time) ([]research.Paper, error) {
	call := int(atomic.AddInt32(&s.searchCalls, 1)) - 1
	if call < len(s.searchErrs) && s.searchErrs[call] != nil {
		return nil, s.searchErrs[call]
	}
	out := make([]research.Paper, len(s.papers))
	copy(out, s.papers)
	return out, nil
}

func (s *stubAdapter) GetByDOI(ctx context.Context, doi string) (*research.Paper, error) {
	atomic.AddInt32(&s.doiCalls, 1)
	if s.doiPaper == nil {
		return nil, &source.Error{Source: s.name, Kind: source.ErrNotSupported}
	}
	if s.doiPaper.DOI == doi {
		p := *s.doiPaper
		return &p, nil
	}
	return nil, nil
}

func stubPaper(source, id, title, abstract string) research.Paper {
	return research.Paper{
		ID:        source + ":" + id,
		Title:     title,
		Abstract:  abstract,
		Authors:   []string{"Jane Smith", "Wei Chen"},
		Venue:     "Journal of Testing",
		URL:       "https://example.org/" + id,
		Published: time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC),
		Citations: 40,
		Source:    source,
	}
}

// stubResponse satisfies every stage's parser at once: the six-section
// extraction, the insight list, and theme synthesis.
const stubResponse = `ABSTRACT: The paper surveys graph neural network training at scale.
METHODOLOGY: Message passing layers are compared on citation benchmarks.
FINDINGS: Deeper networks oversmooth node representations significantly.
CONTENT: Oversmoothing limits the useful depth of graph networks.
IMPORTANCE: Guides practical architecture selection.
TYPE: key_finding
CONFIDENCE: 0.8
TITLE: Oversmoothing in deep graph networks
DESCRIPTION: The notes converge on oversmoothing as the central obstacle to depth.`

func okProvider() *llm.MockProvider {
	return &llm.MockProvider{Responses: []llm.Response{
		{Text: stubResponse, FinishReason: llm.FinishStop},
	}}
}

func testAdapters() []source.Adapter {
	long := strings.Repeat("Graph neural networks learn over relational structure. ", 3)
	return []source.Adapter{
		&stubAdapter{name: "arxiv", papers: []research.Paper{
			stubPaper("arxiv", "2301.00001", "Deep Graph Networks", long),
			stubPaper("arxiv", "2301.00002", "Oversmoothing in Graph Networks", long),
		}},
		&stubAdapter{name: "openalex", papers: []research.Paper{
			stubPaper("openalex", "W1", "Message Passing at Scale", long),
		}},
	}
}

// newTestWorkflow builds a workflow wired for fast tests: temp cache dir,
// no LLM pacing, no retries unless asked, and instant stage sleeps.
func newTestWorkflow(t *testing.T, provider llm.Provider, adapters []source.Adapter, opts ...Option) *Workflow {
	t.Helper()
	base := []Option{
		WithCacheDir(t.TempDir()),
		WithMinRequestInterval(time.Nanosecond),
		WithMaxRetries(0),
		WithSourceRate("arxiv", 1000),
		WithSourceRate("openalex", 1000),
		WithSourceRate("crossref", 1000),
	}
	w, err := NewWorkflow(provider, adapters, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewWorkflow() error: %v", err)
	}
	w.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	w.gateway = llm.NewGateway(provider,
		llm.WithMinInterval(time.Nanosecond),
		llm.WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
	return w
}

func TestNewWorkflow_Validation(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		_, err := NewWorkflow(nil, testAdapters())
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "provider" {
			t.Errorf("error = %v, want provider validation error", err)
		}
	})

	t.Run("no adapters", func(t *testing.T) {
		_, err := NewWorkflow(okProvider(), nil)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "adapters" {
			t.Errorf("error = %v, want adapters validation error", err)
		}
	})

	t.Run("bad option", func(t *testing.T) {
		_, err := NewWorkflow(okProvider(), testAdapters(), WithMaxRetries(-1))
		if err == nil {
			t.Error("negative retries accepted")
		}
	})
}

func TestExecute_HappyPath(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())

	var steps []int
	opts := DefaultExecuteOptions()
	opts.MaxPapers = 10
	opts.Progress = func(step int, desc string) { steps = append(steps, step) }

	res, err := w.Execute(context.Background(), "graph neural networks", opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, Error = %q", res.Error)
	}

	if res.Statistics.PapersFound != 3 {
		t.Errorf("PapersFound = %d, want 3", res.Statistics.PapersFound)
	}
	if res.Statistics.NotesExtracted == 0 {
		t.Error("no notes extracted")
	}
	if res.Statistics.ThemesIdentified == 0 {
		t.Error("no themes identified")
	}
	if res.Statistics.CitationsGenerated != 3 {
		t.Errorf("CitationsGenerated = %d, want 3", res.Statistics.CitationsGenerated)
	}
	if !strings.HasPrefix(res.Bibliography, "References") {
		t.Errorf("Bibliography = %q", res.Bibliography)
	}
	if res.Draft == nil {
		t.Fatal("Draft = nil")
	}
	if res.Draft.Title != "A Survey of Graph Neural Networks" {
		t.Errorf("Draft.Title = %q", res.Draft.Title)
	}
	if res.Draft.Abstract == "" || res.Draft.Conclusion == "" {
		t.Error("draft sections missing")
	}
	if len(steps) != len(stageOrder) {
		t.Errorf("progress calls = %d, want %d", len(steps), len(stageOrder))
	}

	// Success clears every checkpoint.
	for stage, info := range w.Status("graph neural networks") {
		if info.Completed {
			t.Errorf("stage %s checkpoint survived a successful run", stage)
		}
	}
}

func TestExecute_Validation(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())

	cases := []struct {
		name  string
		topic string
		opts  ExecuteOptions
		field string
	}{
		{"empty topic", "", DefaultExecuteOptions(), "topic"},
		{"max papers too low", "t", ExecuteOptions{MaxPapers: 3}, "max_papers"},
		{"bad paper type", "t", ExecuteOptions{MaxPapers: 10, PaperType: "essay"}, "paper_type"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := w.Execute(context.Background(), c.topic, c.opts)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != c.field {
				t.Fatalf("error = %v, want validation error on %s", err, c.field)
			}
			if res == nil || res.Success {
				t.Error("result should be non-nil and unsuccessful")
			}
		})
	}
}

func TestExecute_ValidationReportsErrorProgress(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())

	var gotStep = -1
	var gotDesc string
	opts := DefaultExecuteOptions()
	opts.Progress = func(step int, desc string) { gotStep, gotDesc = step, desc }

	if _, err := w.Execute(context.Background(), "", opts); err == nil {
		t.Fatal("empty topic accepted")
	}
	if gotStep != 0 {
		t.Errorf("final progress step = %d, want 0", gotStep)
	}
	if !strings.HasPrefix(gotDesc, "Error: ") {
		t.Errorf("final progress description = %q, want Error prefix", gotDesc)
	}
}

// blockingProvider never answers; Complete returns only when the call's
// context expires.
type blockingProvider struct{}

func (blockingProvider) Name() string { return "mock" }

func (blockingProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	<-ctx.Done()
	return llm.Response{}, ctx.Err()
}

func TestExecute_StageTimeoutKeepsPartialResults(t *testing.T) {
	w := newTestWorkflow(t, blockingProvider{}, testAdapters(),
		WithStepTimeout(50*time.Millisecond), WithMaxRetries(1))

	res, err := w.Execute(context.Background(), "graph neural networks", DefaultExecuteOptions())
	if err == nil {
		t.Fatal("Execute() succeeded with a hung provider")
	}
	if !errors.Is(err, ErrStageTimeout) {
		t.Fatalf("error = %v, want ErrStageTimeout", err)
	}
	var serr *StageError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want StageError", err)
	}
	if serr.Stage != stageNotes || serr.Attempts != 2 {
		t.Errorf("StageError = %s/%d attempts, want %s/2", serr.Stage, serr.Attempts, stageNotes)
	}

	if res.Success {
		t.Error("Success = true after timeout")
	}
	if len(res.Papers) == 0 {
		t.Error("literature output lost with the failed stage")
	}
	if res.Draft != nil {
		t.Error("Draft produced past the failed stage")
	}
}

func TestExecute_NoPapersIsTerminal(t *testing.T) {
	failing := []source.Adapter{
		&stubAdapter{name: "arxiv", searchErrs: []error{
			&source.Error{Source: "arxiv", Kind: source.ErrInvalidResponse},
		}},
	}
	buf := emit.NewBufferedEmitter()
	w := newTestWorkflow(t, okProvider(), failing, WithMaxRetries(2), WithEmitter(buf))

	res, err := w.Execute(context.Background(), "empty field", DefaultExecuteOptions())
	if !errors.Is(err, ErrNoPapersFound) {
		t.Fatalf("error = %v, want ErrNoPapersFound", err)
	}
	if res.Success {
		t.Error("Success = true on failure")
	}
	if res.Error == "" {
		t.Error("Error not recorded in result")
	}

	// Terminal: one attempt only despite the retry budget.
	if got := len(buf.HistoryWithFilter("empty field", emit.HistoryFilter{Msg: "stage_failed"})); got != 1 {
		t.Errorf("stage_failed events = %d, want 1 (no retries)", got)
	}
}

func TestExecute_PartialResultsOnFailure(t *testing.T) {
	w := newTestWorkflow(t, okProvider(), testAdapters())

	// Cancel after the literature stage completes; the notes stage then
	// fails and the result must still carry the found papers.
	ctx, cancel := context.WithCancel(context.Background())
	opts := DefaultExecuteOptions()
	opts.Progress = func(step int, desc string) {
		if step == 1 {
			cancel()
		}
	}

	res, err := w.Execute(ctx, "graph neural networks", opts)
	if err == nil {
		t.Fatal("Execute() succeeded with cancelled context")
	}
	if res.Success {
		t.Error("Success = true")
	}
	if len(res.Papers) == 0 {
		t.Error("partial papers missing from failed result")
	}
	if res.Draft != nil {
		t.Error("draft present despite failure before draft stage")
	}
}

func TestExecute_ResumeFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	slug := research.Slugify("graph neural networks")

	ckpt, err := checkpoint.New(dir, checkpoint.DefaultFreshness)
	if err != nil {
		t.Fatal(err)
	}
	saved := []research.Paper{stubPaper("arxiv", "prior", "Checkpointed Paper on Graphs",
		strings.Repeat("Stored abstract content about graph networks. ", 3))}
	if err := ckpt.Save(slug, stageLiterature, saved); err != nil {
		t.Fatal(err)
	}

	// Every search fails, so only the checkpoint can supply papers.
	broken := []source.Adapter{&stubAdapter{name: "arxiv", searchErrs: []error{
		&source.Error{Source: "arxiv", Kind: source.ErrInvalidResponse},
	}}}
	buf := emit.NewBufferedEmitter()
	w := newTestWorkflow(t, okProvider(), broken, WithCacheDir(dir), WithEmitter(buf))

	res, err := w.Execute(context.Background(), "graph neural networks", DefaultExecuteOptions())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, Error = %q", res.Error)
	}
	if len(res.Papers) != 1 || res.Papers[0].ID != "arxiv:prior" {
		t.Errorf("Papers = %+v, want the checkpointed paper", res.Papers)
	}
	if got := len(buf.HistoryWithFilter("graph neural networks", emit.HistoryFilter{Msg: "checkpoint_skip"})); got != 1 {
		t.Errorf("checkpoint_skip events = %d, want 1", got)
	}
}

func TestWorkflow_StatusAndCleanup(t *testing.T) {
	dir := t.TempDir()
	topic := "pending topic"
	slug := research.Slugify(topic)

	ckpt, err := checkpoint.New(dir, checkpoint.DefaultFreshness)
	if err != nil {
		t.Fatal(err)
	}
	if err := ckpt.Save(slug, stageLiterature, []research.Paper{}); err != nil {
		t.Fatal(err)
	}
	if err := ckpt.Save(slug, stageNotes, []research.Note{}); err != nil {
		t.Fatal(err)
	}

	w := newTestWorkflow(t, okProvider(), testAdapters(), WithCacheDir(dir))

	status := w.Status(topic)
	if !status[stageLiterature].Completed || !status[stageNotes].Completed {
		t.Errorf("Status = %+v, want literature and notes completed", status)
	}
	if status[stageDraft].Completed {
		t.Error("draft stage reported complete without a checkpoint")
	}

	if !w.CleanupFailedWorkflow(topic) {
		t.Fatal("CleanupFailedWorkflow() = false")
	}
	for stage, info := range w.Status(topic) {
		if info.Completed {
			t.Errorf("stage %s checkpoint survived cleanup", stage)
		}
	}
}

func TestExecute_RetryThenSuccess(t *testing.T) {
	flaky := &stubAdapter{
		name:   "arxiv",
		papers: testAdapters()[0].(*stubAdapter).papers,
		searchErrs: []error{
			&source.Error{Source: "arxiv", Kind: source.ErrUnavailable},
		},
	}
	w := newTestWorkflow(t, okProvider(), []source.Adapter{flaky})

	res, err := w.Execute(context.Background(), "graph neural networks", DefaultExecuteOptions())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, Error = %q", res.Error)
	}
	if got := atomic.LoadInt32(&flaky.searchCalls); got != 2 {
		t.Errorf("search calls = %d, want 2 (one retry)", got)
	}
}

func TestClassify(t *testing.T) {
	if got := classify(fmt.Errorf("stage: %w", ErrStageTimeout)); got != "timeout" {
		t.Errorf("classify(timeout) = %q", got)
	}
	if got := classify(llm.ErrQuotaExceeded); got != "api" {
		t.Errorf("classify(quota) = %q", got)
	}
	if got := classify(errors.New("boom")); got != "error" {
		t.Errorf("classify(other) = %q", got)
	}
}
