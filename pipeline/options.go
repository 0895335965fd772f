package pipeline

import (
	"time"

	"github.com/dshills/researchpipe-go/pipeline/emit"
	"github.com/dshills/researchpipe-go/pipeline/store"
)

// Configuration defaults. Stage timeouts distinguish the long stages
// (literature, notes, draft) from the short ones (themes, citations).
const (
	DefaultMaxRetries         = 2
	DefaultStepTimeout        = 1200 * time.Second
	DefaultShortStageTimeout  = 600 * time.Second
	DefaultAPICooldown        = 60 * time.Second
	DefaultCacheDir           = "data/cache"
	DefaultTemperature        = 0.1
	DefaultMaxTokens          = 4096
	DefaultMinRequestInterval = 500 * time.Millisecond
	DefaultNoteBatchSize      = 2
	DefaultThemeSimilarity    = 0.2

	DefaultArxivRPS    = 0.33
	DefaultOpenAlexRPS = 10.0
	DefaultCrossRefRPS = 1.0
)

// config collects workflow construction options before validation.
type config struct {
	maxRetries         int
	stepTimeout        time.Duration
	shortStageTimeout  time.Duration
	apiCooldown        time.Duration
	parallelProcessing bool
	checkpointEnabled  bool
	cacheDir           string
	temperature        float64
	maxTokens          int
	minRequestInterval time.Duration
	noteBatchSize      int
	themeSimilarity    float64
	sourceRates        map[string]float64
	memoryPressure     func() bool
	emitter            emit.Emitter
	metrics            *Metrics
	store              store.Store
}

func defaultConfig() config {
	return config{
		maxRetries:         DefaultMaxRetries,
		stepTimeout:        DefaultStepTimeout,
		shortStageTimeout:  DefaultShortStageTimeout,
		apiCooldown:        DefaultAPICooldown,
		parallelProcessing: true,
		checkpointEnabled:  true,
		cacheDir:           DefaultCacheDir,
		temperature:        DefaultTemperature,
		maxTokens:          DefaultMaxTokens,
		minRequestInterval: DefaultMinRequestInterval,
		noteBatchSize:      DefaultNoteBatchSize,
		themeSimilarity:    DefaultThemeSimilarity,
		sourceRates: map[string]float64{
			"arxiv":    DefaultArxivRPS,
			"openalex": DefaultOpenAlexRPS,
			"crossref": DefaultCrossRefRPS,
		},
		emitter: emit.NewNullEmitter(),
	}
}

// Option configures a Workflow at construction time.
//
// Example:
//
//	wf, err := pipeline.NewWorkflow(provider, adapters,
//	    pipeline.WithCacheDir("/var/cache/research"),
//	    pipeline.WithMaxRetries(3),
//	)
type Option func(*config) error

// WithMaxRetries sets the retry count per stage. Default 2.
func WithMaxRetries(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return &ValidationError{Field: "max_retries", Message: "must be >= 0"}
		}
		cfg.maxRetries = n
		return nil
	}
}

// WithStepTimeout sets the timeout for the long stages (literature, notes,
// draft). The short stages (themes, citations) run at half this value.
// Default 1200s.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return &ValidationError{Field: "step_timeout", Message: "must be positive"}
		}
		cfg.stepTimeout = d
		cfg.shortStageTimeout = d / 2
		return nil
	}
}

// WithAPICooldown sets the process-wide pause applied after LLM quota or
// rate errors. Default 60s.
func WithAPICooldown(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.apiCooldown = d
		return nil
	}
}

// WithParallelProcessing toggles intra-batch concurrency during note
// extraction. Default true.
func WithParallelProcessing(enabled bool) Option {
	return func(cfg *config) error {
		cfg.parallelProcessing = enabled
		return nil
	}
}

// WithCheckpoints toggles checkpoint persistence entirely. Default true.
func WithCheckpoints(enabled bool) Option {
	return func(cfg *config) error {
		cfg.checkpointEnabled = enabled
		return nil
	}
}

// WithCacheDir sets the checkpoint directory. Default "data/cache".
func WithCacheDir(dir string) Option {
	return func(cfg *config) error {
		if dir == "" {
			return &ValidationError{Field: "cache_dir", Message: "must not be empty"}
		}
		cfg.cacheDir = dir
		return nil
	}
}

// WithTemperature sets the base LLM sampling temperature. Default 0.1.
func WithTemperature(t float64) Option {
	return func(cfg *config) error {
		cfg.temperature = t
		return nil
	}
}

// WithMaxTokens sets the LLM completion token limit. Default 4096.
func WithMaxTokens(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return &ValidationError{Field: "max_tokens", Message: "must be positive"}
		}
		cfg.maxTokens = n
		return nil
	}
}

// WithMinRequestInterval sets the minimum spacing between LLM calls.
// Default 500ms.
func WithMinRequestInterval(d time.Duration) Option {
	return func(cfg *config) error {
		cfg.minRequestInterval = d
		return nil
	}
}

// WithNoteBatchSize sets how many papers each note-extraction batch
// holds. Default 2.
func WithNoteBatchSize(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return &ValidationError{Field: "note_batch_size", Message: "must be >= 1"}
		}
		cfg.noteBatchSize = n
		return nil
	}
}

// WithThemeSimilarity sets the clustering similarity threshold. Default
// 0.2, tuned empirically; raise for tighter themes.
func WithThemeSimilarity(threshold float64) Option {
	return func(cfg *config) error {
		if threshold <= 0 || threshold > 1 {
			return &ValidationError{Field: "theme_similarity", Message: "must be in (0, 1]"}
		}
		cfg.themeSimilarity = threshold
		return nil
	}
}

// WithSourceRate overrides the requests-per-second budget for one
// bibliographic source, keyed by adapter name.
func WithSourceRate(name string, rps float64) Option {
	return func(cfg *config) error {
		if rps <= 0 {
			return &ValidationError{Field: "rate_limits." + name, Message: "must be positive"}
		}
		cfg.sourceRates[name] = rps
		return nil
	}
}

// WithMemoryPressure installs a hook consulted between note batches;
// batches shrink while it reports true.
func WithMemoryPressure(fn func() bool) Option {
	return func(cfg *config) error {
		cfg.memoryPressure = fn
		return nil
	}
}

// WithEmitter sets the observability emitter. Default discards events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *config) error {
		if e == nil {
			e = emit.NewNullEmitter()
		}
		cfg.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithStore attaches a persistent store; papers, notes, themes, and
// citations are written through as stages commit. Optional.
func WithStore(s store.Store) Option {
	return func(cfg *config) error {
		cfg.store = s
		return nil
	}
}
