// Package llm wraps a remote, safety-filtered language model behind a
// gateway that shapes prompts, retries blocked or failed attempts, paces
// calls, and falls back to templated prose when the model cannot answer.
package llm

import (
	"context"
	"errors"
	"strings"
)

// FinishReason distinguishes how a completion ended.
type FinishReason string

// Finish reasons reported by providers.
const (
	// FinishStop is a normal completion.
	FinishStop FinishReason = "stop"

	// FinishSafety indicates the provider's safety filter blocked the
	// response. The gateway treats the attempt as blocked and retries.
	FinishSafety FinishReason = "safety"

	// FinishLength indicates the response was truncated at the token limit.
	// Truncated text is still usable.
	FinishLength FinishReason = "length"
)

// Request is a single completion request to a provider.
type Request struct {
	// Prompt is the user prompt, already safety-shaped by the gateway.
	Prompt string

	// System is the optional system prompt.
	System string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int
}

// Response is a provider completion.
type Response struct {
	// Text is the generated text.
	Text string

	// FinishReason reports how the completion ended.
	FinishReason FinishReason
}

// Provider is the outbound contract to a concrete language-model service.
//
// Implementations translate Request/Response to the provider's wire format
// and report safety blocks via FinishSafety rather than an error. Transport
// and quota failures are returned as errors; Classify maps them onto the
// package taxonomy.
type Provider interface {
	// Name returns the provider identifier ("anthropic", "openai", "google").
	Name() string

	// Complete sends one completion request.
	Complete(ctx context.Context, req Request) (Response, error)
}

// Error taxonomy for provider failures.
var (
	// ErrSafetyBlocked indicates every attempt was rejected by the safety filter.
	ErrSafetyBlocked = errors.New("llm response blocked by safety filter")

	// ErrQuotaExceeded indicates the provider account is out of quota.
	ErrQuotaExceeded = errors.New("llm quota exceeded")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("llm rate limited")

	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("llm request timed out")

	// ErrUnavailable indicates the provider could not produce a usable
	// response after all attempts.
	ErrUnavailable = errors.New("llm unavailable")
)

// Classify maps a raw provider error onto the package taxonomy by matching
// well-known status codes and phrases, the same way each SDK surfaces them.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return ErrQuotaExceeded
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

// CooldownClass reports whether err should trigger the process-wide API
// cooldown (quota and rate classes only; timeouts do not cooldown).
func CooldownClass(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrRateLimited)
}
