// Package source defines the uniform adapter contract over the three
// bibliographic services (arXiv, OpenAlex, CrossRef).
//
// Adapters translate between a service's wire format and the research.Paper
// data model, and nothing else: no caching, no retry, no ranking. Retry and
// pacing belong to the literature stage and the rate limiters.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// Failure taxonomy. Adapters wrap these sentinels in *Error so callers can
// classify failures with errors.Is while keeping the source name attached.
var (
	// ErrUnavailable indicates a transport-level failure reaching the service.
	ErrUnavailable = errors.New("source unavailable")

	// ErrRateLimited indicates the remote service signaled throttling.
	ErrRateLimited = errors.New("source rate limited")

	// ErrInvalidResponse indicates the service returned a malformed payload.
	ErrInvalidResponse = errors.New("source returned invalid response")

	// ErrNotSupported is returned by GetByDOI on adapters without DOI lookup.
	ErrNotSupported = errors.New("operation not supported by source")
)

// Adapter is the uniform query interface implemented by each bibliographic
// service client.
type Adapter interface {
	// Name returns the stable source label ("arxiv", "openalex", "crossref").
	Name() string

	// Search returns at most maxResults papers matching the free-text query,
	// each tagged with this adapter's source. A zero dateFrom means no lower
	// bound on publication date.
	//
	// Failures are reported via the package taxonomy: ErrUnavailable on
	// transport error, ErrRateLimited when the remote throttles,
	// ErrInvalidResponse on malformed payloads.
	Search(ctx context.Context, query string, maxResults int, dateFrom time.Time) ([]research.Paper, error)

	// GetByDOI looks up a single paper by DOI. Adapters that cannot resolve
	// DOIs return ErrNotSupported; a nil paper with nil error means the DOI
	// was not found.
	GetByDOI(ctx context.Context, doi string) (*research.Paper, error)
}

// Error attaches the source name to a taxonomy failure.
type Error struct {
	// Source is the adapter name that produced the failure.
	Source string

	// Kind is one of the package sentinel errors.
	Kind error

	// Detail describes the underlying condition.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Source + ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the taxonomy sentinel for errors.Is classification.
func (e *Error) Unwrap() error { return e.Kind }
