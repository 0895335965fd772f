package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus metrics for workflow execution, all
// namespaced "researchpipe":
//
//   - stage_latency_ms (histogram): stage duration by stage and status.
//   - stage_retries_total (counter): stage retry attempts by stage and reason.
//   - llm_attempts_total (counter): gateway attempts by outcome.
//   - llm_fallbacks_total (counter): templated fallback substitutions by domain.
//   - parser_dropped_fields_total (counter): structured-response fields the
//     note/theme parsers discarded, by parser and reason.
//   - source_errors_total (counter): adapter failures by source and class.
//   - papers_deduped_total (counter): papers collapsed by the deduplicator.
//
// Thread-safe; all updates go through prometheus client primitives.
type Metrics struct {
	stageLatency  *prometheus.HistogramVec
	stageRetries  *prometheus.CounterVec
	llmAttempts   *prometheus.CounterVec
	llmFallbacks  *prometheus.CounterVec
	droppedFields *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	papersDeduped prometheus.Counter
}

// NewMetrics registers all workflow metrics with registry
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researchpipe",
			Name:      "stage_latency_ms",
			Help:      "Stage execution duration in milliseconds",
			Buckets:   []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 1200000},
		}, []string{"stage", "status"}), // status: success, error, timeout

		stageRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpipe",
			Name:      "stage_retries_total",
			Help:      "Stage retry attempts",
		}, []string{"stage", "reason"}),

		llmAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpipe",
			Name:      "llm_attempts_total",
			Help:      "LLM gateway attempts by outcome",
		}, []string{"outcome"}), // outcome: ok, blocked, error

		llmFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpipe",
			Name:      "llm_fallbacks_total",
			Help:      "Templated fallback substitutions after exhausted LLM retries",
		}, []string{"domain"}),

		droppedFields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpipe",
			Name:      "parser_dropped_fields_total",
			Help:      "Structured-response fields discarded during parsing",
		}, []string{"parser", "reason"}), // parser: sections, insights, theme

		sourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpipe",
			Name:      "source_errors_total",
			Help:      "Bibliographic adapter failures",
		}, []string{"source", "class"}), // class: unavailable, rate_limited, invalid_response

		papersDeduped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "researchpipe",
			Name:      "papers_deduped_total",
			Help:      "Papers collapsed into an existing record during merge",
		}),
	}
}

// ObserveStage records a stage's wall-clock duration and final status.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage, status).Observe(float64(d.Milliseconds()))
}

// StageRetry counts one retry of a stage.
func (m *Metrics) StageRetry(stage, reason string) {
	if m == nil {
		return
	}
	m.stageRetries.WithLabelValues(stage, reason).Inc()
}

// LLMAttempt counts one gateway attempt with its outcome.
func (m *Metrics) LLMAttempt(outcome string) {
	if m == nil {
		return
	}
	m.llmAttempts.WithLabelValues(outcome).Inc()
}

// LLMFallback counts one templated fallback substitution.
func (m *Metrics) LLMFallback(domain string) {
	if m == nil {
		return
	}
	m.llmFallbacks.WithLabelValues(domain).Inc()
}

// DroppedField counts a discarded field from a structured LLM response.
func (m *Metrics) DroppedField(parser, reason string) {
	if m == nil {
		return
	}
	m.droppedFields.WithLabelValues(parser, reason).Inc()
}

// SourceError counts an adapter failure.
func (m *Metrics) SourceError(source, class string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(source, class).Inc()
}

// PapersDeduped counts papers collapsed during merge.
func (m *Metrics) PapersDeduped(n int) {
	if m == nil {
		return
	}
	m.papersDeduped.Add(float64(n))
}
