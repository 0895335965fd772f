package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/checkpoint"
	"github.com/dshills/researchpipe-go/pipeline/emit"
	"github.com/dshills/researchpipe-go/pipeline/llm"
	"github.com/dshills/researchpipe-go/pipeline/ratelimit"
	"github.com/dshills/researchpipe-go/pipeline/research"
	"github.com/dshills/researchpipe-go/pipeline/source"
)

// Stage names, in execution order. Checkpoints are keyed by these.
const (
	stageLiterature = "literature_survey"
	stageNotes      = "note_taking"
	stageThemes     = "theme_synthesis"
	stageCitations  = "citations"
	stageDraft      = "draft_writing"
)

var stageOrder = []string{stageLiterature, stageNotes, stageThemes, stageCitations, stageDraft}

// Stage retry backoff mirrors the per-source schedule.
const (
	stageBackoffBase = 30 * time.Second
	stageBackoffCap  = 300 * time.Second
)

// Execute option bounds.
const (
	DefaultMaxPapers = 100
	MinMaxPapers     = 5
	SoftMaxPapers    = 200
	DefaultPaperType = "survey"
)

type workflowSource struct {
	adapter source.Adapter
	limiter *ratelimit.Limiter
}

// Workflow drives the five research stages over a set of bibliographic
// sources and an LLM provider. A single Workflow is safe for concurrent
// Execute calls on different topics; per-run state lives on the stack
// and in the checkpoint store.
type Workflow struct {
	sources []workflowSource
	gateway *llm.Gateway
	ckpt    *checkpoint.Store
	metrics *Metrics
	cfg     config

	sleep func(context.Context, time.Duration) error
	clock func() time.Time
}

// NewWorkflow builds a workflow over the given LLM provider and
// bibliographic adapters.
func NewWorkflow(provider llm.Provider, adapters []source.Adapter, opts ...Option) (*Workflow, error) {
	if provider == nil {
		return nil, &ValidationError{Field: "provider", Message: "must not be nil"}
	}
	if len(adapters) == 0 {
		return nil, &ValidationError{Field: "adapters", Message: "at least one source adapter required"}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	w := &Workflow{
		cfg:     cfg,
		metrics: cfg.metrics,
		sleep:   sleepCtx,
		clock:   time.Now,
	}
	for _, a := range adapters {
		rps, ok := cfg.sourceRates[a.Name()]
		if !ok {
			rps = 1.0
		}
		w.sources = append(w.sources, workflowSource{
			adapter: a,
			limiter: ratelimit.New(a.Name(), rps, 100*time.Millisecond),
		})
	}

	w.gateway = llm.NewGateway(provider,
		llm.WithMinInterval(cfg.minRequestInterval),
		llm.WithAPICooldown(cfg.apiCooldown),
		llm.WithTemperature(cfg.temperature),
		llm.WithMaxTokens(cfg.maxTokens),
	)

	if cfg.checkpointEnabled {
		ckpt, err := checkpoint.New(cfg.cacheDir, checkpoint.DefaultFreshness)
		if err != nil {
			return nil, fmt.Errorf("checkpoint store: %w", err)
		}
		w.ckpt = ckpt
	}
	return w, nil
}

// ExecuteOptions controls one workflow run. Use DefaultExecuteOptions as
// the starting point; the zero value disables checkpoint resumption.
type ExecuteOptions struct {
	Aspects   []string
	MaxPapers int
	PaperType string // "survey", "review", or "analysis"
	DateFrom  time.Time
	Progress  func(step int, description string)
	Resume    bool
}

// DefaultExecuteOptions returns the documented defaults: 100 papers,
// survey type, resume enabled.
func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		MaxPapers: DefaultMaxPapers,
		PaperType: DefaultPaperType,
		Resume:    true,
	}
}

// runState accumulates stage outputs over one execution.
type runState struct {
	papers []research.Paper
	notes  []research.Note
	themes []research.Theme
	gaps   []string
	cit    citationOutput
	draft  *Draft
}

type themeCheckpoint struct {
	Themes []research.Theme `json:"themes"`
	Gaps   []string         `json:"gaps"`
}

// Execute runs the full pipeline for topic. The returned Result is
// always non-nil; on failure it carries partial outputs alongside a
// non-nil error, and checkpoints for completed stages are preserved so
// the next run can resume.
func (w *Workflow) Execute(ctx context.Context, topic string, opts ExecuteOptions) (*Result, error) {
	start := w.clock()
	result := &Result{ResearchTopic: topic}

	if err := w.validate(topic, &opts); err != nil {
		result.Error = err.Error()
		result.ExecutionTime = w.clock().Sub(start)
		w.progress(opts, 0, "Error: "+err.Error())
		return result, err
	}
	if opts.MaxPapers > SoftMaxPapers {
		w.emitEvent(topic, "", 0, "max_papers_high", map[string]interface{}{"max_papers": opts.MaxPapers})
	}

	slug := research.Slugify(topic)
	state := &runState{}

	for step, stage := range stageOrder {
		step := step + 1

		if opts.Resume && w.ckpt != nil {
			hit, err := w.loadCheckpoint(slug, stage, state)
			if err == nil && hit {
				w.emitEvent(topic, stage, step, "checkpoint_skip", nil)
				w.progress(opts, step, fmt.Sprintf("Resumed %s from checkpoint", stage))
				continue
			}
		}

		if err := w.runStageWithRetry(ctx, topic, slug, stage, step, opts, state); err != nil {
			w.finalize(result, state, w.clock().Sub(start))
			result.Error = err.Error()
			w.progress(opts, 0, "Error: "+err.Error())
			return result, err
		}
		w.progress(opts, step, stageDescription(stage, state))
	}

	w.finalize(result, state, w.clock().Sub(start))
	result.Success = true

	if w.ckpt != nil {
		if err := w.ckpt.Clear(slug); err != nil {
			w.emitEvent(topic, "", 0, "checkpoint_clear_failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return result, nil
}

// runStageWithRetry executes one stage under its timeout with the
// configured retry budget. API-class LLM errors trigger the gateway
// cooldown before the next attempt.
func (w *Workflow) runStageWithRetry(ctx context.Context, topic, slug, stage string, step int, opts ExecuteOptions, state *runState) error {
	attempts := w.cfg.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			w.metrics.StageRetry(stage, classify(lastErr))
			backoff := stageBackoffBase * (1 << (attempt - 1))
			if backoff > stageBackoffCap {
				backoff = stageBackoffCap
			}
			if err := w.sleep(ctx, backoff); err != nil {
				return err
			}
		}

		w.emitEvent(topic, stage, step, "stage_start", map[string]interface{}{"attempt": attempt})
		began := w.clock()
		err := w.runStage(ctx, topic, stage, opts, state)
		elapsed := w.clock().Sub(began)

		if err == nil {
			w.metrics.ObserveStage(stage, "success", elapsed)
			w.emitEvent(topic, stage, step, "stage_complete", map[string]interface{}{"duration_ms": elapsed.Milliseconds()})
			if w.ckpt != nil {
				if saveErr := w.saveCheckpoint(slug, stage, state); saveErr != nil {
					w.emitEvent(topic, stage, step, "checkpoint_save_failed", map[string]interface{}{"error": saveErr.Error()})
				}
			}
			w.persist(ctx, topic, stage, state)
			return nil
		}

		if ctx.Err() != nil && !errors.Is(err, ErrStageTimeout) {
			return err
		}

		status := "error"
		if errors.Is(err, ErrStageTimeout) {
			status = "timeout"
		}
		w.metrics.ObserveStage(stage, status, elapsed)
		w.emitEvent(topic, stage, step, "stage_failed", map[string]interface{}{"attempt": attempt, "error": err.Error()})

		// NoPapersFound is terminal: retrying cannot conjure papers.
		if errors.Is(err, ErrNoPapersFound) {
			return err
		}
		if llm.CooldownClass(err) {
			w.gateway.Cooldown()
		}
		lastErr = err
	}
	return &StageError{Stage: stage, Attempts: attempts, Err: lastErr}
}

// runStage dispatches one stage under its timeout, feeding prior stage
// outputs from state and writing results back into it.
func (w *Workflow) runStage(ctx context.Context, topic, stage string, opts ExecuteOptions, state *runState) error {
	stageCtx, cancel := context.WithTimeout(ctx, w.stageTimeout(stage))
	defer cancel()

	var err error
	switch stage {
	case stageLiterature:
		state.papers, err = w.runLiterature(stageCtx, literatureInput{
			Topic:     topic,
			Aspects:   opts.Aspects,
			MaxPapers: opts.MaxPapers,
			DateFrom:  opts.DateFrom,
		})
	case stageNotes:
		state.notes, err = w.runNotes(stageCtx, state.papers, topic)
	case stageThemes:
		state.themes, state.gaps, err = w.runThemes(stageCtx, state.notes, state.papers, topic)
	case stageCitations:
		state.cit, err = w.runCitations(stageCtx, state.papers)
	case stageDraft:
		state.draft, err = w.runDraft(stageCtx, topic, state.themes, state.papers, state.notes, state.gaps, state.cit.Citations)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	if err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", stage, ErrStageTimeout)
	}
	return err
}

func (w *Workflow) stageTimeout(stage string) time.Duration {
	switch stage {
	case stageThemes, stageCitations:
		return w.cfg.shortStageTimeout
	default:
		return w.cfg.stepTimeout
	}
}

// loadCheckpoint restores a stage's output into state. Returns false for
// missing, stale, or corrupt checkpoints.
func (w *Workflow) loadCheckpoint(slug, stage string, state *runState) (bool, error) {
	switch stage {
	case stageLiterature:
		return w.ckpt.Load(slug, stage, &state.papers)
	case stageNotes:
		return w.ckpt.Load(slug, stage, &state.notes)
	case stageThemes:
		var tc themeCheckpoint
		hit, err := w.ckpt.Load(slug, stage, &tc)
		if hit {
			state.themes, state.gaps = tc.Themes, tc.Gaps
		}
		return hit, err
	case stageCitations:
		return w.ckpt.Load(slug, stage, &state.cit)
	case stageDraft:
		return w.ckpt.Load(slug, stage, &state.draft)
	}
	return false, nil
}

func (w *Workflow) saveCheckpoint(slug, stage string, state *runState) error {
	switch stage {
	case stageLiterature:
		return w.ckpt.Save(slug, stage, state.papers)
	case stageNotes:
		return w.ckpt.Save(slug, stage, state.notes)
	case stageThemes:
		return w.ckpt.Save(slug, stage, themeCheckpoint{Themes: state.themes, Gaps: state.gaps})
	case stageCitations:
		return w.ckpt.Save(slug, stage, state.cit)
	case stageDraft:
		return w.ckpt.Save(slug, stage, state.draft)
	}
	return nil
}

// persist writes a completed stage's output through the configured
// store. Store failures degrade to events; they never fail the stage.
func (w *Workflow) persist(ctx context.Context, topic, stage string, state *runState) {
	if w.cfg.store == nil {
		return
	}
	var err error
	switch stage {
	case stageLiterature:
		for i := range state.papers {
			if e := w.cfg.store.SavePaper(ctx, state.papers[i]); e != nil && err == nil {
				err = e
			}
		}
	case stageNotes:
		byPaper := make(map[string][]research.Note)
		for _, n := range state.notes {
			byPaper[n.PaperID] = append(byPaper[n.PaperID], n)
		}
		for i := range state.papers {
			notes := byPaper[state.papers[i].ID]
			if len(notes) == 0 {
				continue
			}
			if e := w.cfg.store.SavePaperNotes(ctx, state.papers[i], notes); e != nil && err == nil {
				err = e
			}
		}
	case stageThemes:
		for _, t := range state.themes {
			if e := w.cfg.store.SaveTheme(ctx, t); e != nil && err == nil {
				err = e
			}
		}
	case stageCitations:
		for _, c := range state.cit.Citations {
			if e := w.cfg.store.SaveCitation(ctx, c); e != nil && err == nil {
				err = e
			}
		}
	}
	if err != nil {
		w.emitEvent(topic, stage, 0, "store_error", map[string]interface{}{"error": err.Error()})
	}
}

func (w *Workflow) finalize(result *Result, state *runState, elapsed time.Duration) {
	result.ExecutionTime = elapsed
	result.Papers = state.papers
	result.Notes = state.notes
	result.Themes = state.themes
	result.Gaps = state.gaps
	result.Citations = state.cit.Citations
	result.Bibliography = state.cit.Bibliography
	result.CitationReport = state.cit.Report
	result.Draft = state.draft
	result.Statistics = Statistics{
		PapersFound:        len(state.papers),
		NotesExtracted:     len(state.notes),
		ThemesIdentified:   len(state.themes),
		GapsIdentified:     len(state.gaps),
		CitationsGenerated: len(state.cit.Citations),
	}
}

func (w *Workflow) validate(topic string, opts *ExecuteOptions) error {
	if topic == "" {
		return &ValidationError{Field: "topic", Message: "must not be empty"}
	}
	if opts.MaxPapers == 0 {
		opts.MaxPapers = DefaultMaxPapers
	}
	if opts.MaxPapers < MinMaxPapers {
		return &ValidationError{Field: "max_papers", Message: fmt.Sprintf("must be >= %d", MinMaxPapers)}
	}
	if opts.PaperType == "" {
		opts.PaperType = DefaultPaperType
	}
	switch opts.PaperType {
	case "survey", "review", "analysis":
	default:
		return &ValidationError{Field: "paper_type", Message: "must be survey, review, or analysis"}
	}
	return nil
}

// Status reports each stage's checkpoint state for a topic.
func (w *Workflow) Status(topic string) map[string]checkpoint.Info {
	if w.ckpt == nil {
		return map[string]checkpoint.Info{}
	}
	return w.ckpt.Status(research.Slugify(topic), stageOrder)
}

// CleanupFailedWorkflow removes all checkpoints for a topic so the next
// run starts clean. Reports whether cleanup succeeded.
func (w *Workflow) CleanupFailedWorkflow(topic string) bool {
	if w.ckpt == nil {
		return true
	}
	return w.ckpt.Clear(research.Slugify(topic)) == nil
}

func (w *Workflow) progress(opts ExecuteOptions, step int, description string) {
	if opts.Progress != nil {
		opts.Progress(step, description)
	}
}

func (w *Workflow) emitEvent(topic, stage string, step int, msg string, meta map[string]interface{}) {
	w.cfg.emitter.Emit(emit.Event{
		Topic: topic,
		Stage: stage,
		Step:  step,
		Msg:   msg,
		Meta:  meta,
	})
}

func (w *Workflow) recordGenerate(res llm.Result) {
	for i := 1; i < res.Attempts; i++ {
		w.metrics.LLMAttempt("blocked")
	}
	if res.Fallback {
		w.metrics.LLMAttempt("fallback")
	} else {
		w.metrics.LLMAttempt("ok")
	}
}

func stageDescription(stage string, state *runState) string {
	switch stage {
	case stageLiterature:
		return fmt.Sprintf("Found %d papers", len(state.papers))
	case stageNotes:
		return fmt.Sprintf("Extracted %d notes", len(state.notes))
	case stageThemes:
		return fmt.Sprintf("Identified %d themes and %d gaps", len(state.themes), len(state.gaps))
	case stageCitations:
		return fmt.Sprintf("Generated %d citations", len(state.cit.Citations))
	case stageDraft:
		return "Draft complete"
	}
	return stage
}

func classify(err error) string {
	switch {
	case err == nil:
		return "error"
	case errors.Is(err, ErrStageTimeout):
		return "timeout"
	case llm.CooldownClass(err):
		return "api"
	default:
		return "error"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
