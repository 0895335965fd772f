package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// Gateway defaults.
const (
	// DefaultMinInterval is the minimum spacing between provider calls.
	DefaultMinInterval = 500 * time.Millisecond

	// DefaultAPICooldown is the process-wide pause after quota/rate errors.
	DefaultAPICooldown = 60 * time.Second

	// DefaultTemperature is the base sampling temperature.
	DefaultTemperature = 0.1

	// DefaultMaxTokens caps response length.
	DefaultMaxTokens = 4096

	// maxAttempts is the retry ladder depth.
	maxAttempts = 3

	// minValidLength is the shortest trimmed response accepted as valid.
	minValidLength = 20
)

// Result is the outcome of one Generate call.
//
// Generate never fails outright: when every attempt is exhausted the Result
// carries the domain fallback template with Fallback set. Callers must
// propagate the flag so final draft metadata reflects which sections are
// model-generated and which are templates.
type Result struct {
	// Text is the generated (or fallback) content.
	Text string

	// Fallback reports whether Text is the domain fallback template.
	Fallback bool

	// Attempts is the number of provider calls made.
	Attempts int

	// Domain is the domain tag the prompt was shaped with.
	Domain research.Domain

	// Log records one line per attempt for the generation log.
	Log []string
}

// Gateway serializes access to a safety-filtered language model.
//
// All callers share a single gateway; an internal mutex makes it inherently
// single-concurrent, which respects provider limits and implements the only
// cross-component synchronization in the pipeline. Quota and rate errors
// from any caller impose a process-wide cooldown before the next call.
type Gateway struct {
	provider Provider

	// callMu serializes provider calls.
	callMu sync.Mutex

	// stateMu guards pacing state; kept separate so Cooldown never waits
	// behind an in-flight generation.
	stateMu       sync.Mutex
	lastCall      time.Time
	cooldownUntil time.Time

	minInterval time.Duration
	apiCooldown time.Duration
	temperature float64
	maxTokens   int

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
	clock func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMinInterval sets the minimum spacing between provider calls.
func WithMinInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.minInterval = d
		}
	}
}

// WithAPICooldown sets the process-wide cooldown applied after quota or rate
// errors.
func WithAPICooldown(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.apiCooldown = d
		}
	}
}

// WithTemperature sets the base sampling temperature.
func WithTemperature(t float64) GatewayOption {
	return func(g *Gateway) {
		if t > 0 {
			g.temperature = t
		}
	}
}

// WithSleeper replaces the wait function used for pacing and retry
// pauses. Intended for tests that exercise the ladder without real
// waiting.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *Gateway) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// NewGateway wraps provider with safety shaping, the retry ladder, pacing,
// and fallback content.
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider:    provider,
		minInterval: DefaultMinInterval,
		apiCooldown: DefaultAPICooldown,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		sleep:       sleepCtx,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Cooldown imposes the process-wide API cooldown before the next Generate
// call from any caller. The orchestrator invokes this when a stage fails
// with an API-class error.
func (g *Gateway) Cooldown() {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	until := g.clock().Add(g.apiCooldown)
	if until.After(g.cooldownUntil) {
		g.cooldownUntil = until
	}
}

// Generate produces text for the shaped prompt.
//
// The retry ladder makes up to three attempts:
//
//	1. the full safety-shaped prompt at the base temperature
//	2. the ultra-safe variant, temperature reduced by 0.05 (floor 0.05)
//	3. a minimal single-sentence request for domain educational content
//
// A response is valid iff the provider did not report a safety block and the
// trimmed text is at least 20 characters. Quota/rate errors impose the
// process-wide cooldown. When all attempts fail, the Result carries the
// domain fallback template with Fallback set; the only error Generate
// returns is context cancellation.
func (g *Gateway) Generate(ctx context.Context, prompt, system string, domain research.Domain) (Result, error) {
	if !research.ValidDomain(domain) {
		domain = research.DomainGeneric
	}

	g.callMu.Lock()
	defer g.callMu.Unlock()

	res := Result{Domain: domain}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			pause := time.Duration(attempt-1) * 2 * time.Second
			if pause > 5*time.Second {
				pause = 5 * time.Second
			}
			if err := g.sleep(ctx, pause); err != nil {
				return res, err
			}
		}
		if err := g.pace(ctx); err != nil {
			return res, err
		}

		req := Request{
			Prompt:      g.promptFor(attempt, prompt, domain),
			System:      system,
			Temperature: g.temperatureFor(attempt),
			MaxTokens:   g.maxTokens,
		}

		res.Attempts = attempt
		out, err := g.provider.Complete(ctx, req)
		g.markCall()
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			class := Classify(err)
			if CooldownClass(class) {
				g.Cooldown()
			}
			res.Log = append(res.Log, fmt.Sprintf("attempt %d: %v", attempt, class))
			continue
		}

		text := strings.TrimSpace(out.Text)
		if out.FinishReason == FinishSafety || len(text) < minValidLength {
			res.Log = append(res.Log, fmt.Sprintf("attempt %d: blocked (finish=%s, len=%d)",
				attempt, out.FinishReason, len(text)))
			continue
		}

		res.Text = text
		res.Log = append(res.Log, fmt.Sprintf("attempt %d: ok (%d chars)", attempt, len(text)))
		return res, nil
	}

	res.Text = FallbackText(domain, "")
	res.Fallback = true
	res.Log = append(res.Log, "all attempts exhausted, using fallback template")
	return res, nil
}

// promptFor selects the ladder variant for the attempt.
func (g *Gateway) promptFor(attempt int, prompt string, domain research.Domain) string {
	switch attempt {
	case 1:
		return ShapePrompt(prompt, domain)
	case 2:
		return UltraSafePrompt(prompt, domain)
	default:
		return MinimalPrompt(domain)
	}
}

// temperatureFor decays the base temperature by 0.05 per attempt, floor 0.05.
func (g *Gateway) temperatureFor(attempt int) float64 {
	return math.Max(0.05, g.temperature-0.05*float64(attempt-1))
}

// pace waits out the process-wide cooldown and the minimum inter-call
// interval.
func (g *Gateway) pace(ctx context.Context) error {
	for {
		g.stateMu.Lock()
		now := g.clock()
		wait := time.Duration(0)
		if g.cooldownUntil.After(now) {
			wait = g.cooldownUntil.Sub(now)
		}
		if !g.lastCall.IsZero() {
			if next := g.lastCall.Add(g.minInterval); next.After(now) {
				if d := next.Sub(now); d > wait {
					wait = d
				}
			}
		}
		g.stateMu.Unlock()

		if wait <= 0 {
			return nil
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (g *Gateway) markCall() {
	g.stateMu.Lock()
	g.lastCall = g.clock()
	g.stateMu.Unlock()
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
