// Package pipeline implements a five-stage academic research workflow:
// literature survey, note extraction, theme synthesis, citation
// formatting, and draft writing, driven by a checkpointed orchestrator.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoPapersFound indicates that every bibliographic source failed or
// returned nothing. Terminal for the whole workflow.
var ErrNoPapersFound = errors.New("no papers found for topic")

// ErrStageTimeout indicates a stage exceeded its configured timeout.
// Handled like any other stage failure (retried, then partial results).
var ErrStageTimeout = errors.New("stage exceeded timeout")

// ValidationError reports invalid workflow options. It fails the run
// before any stage executes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Message)
}

// StageError wraps a failure from one pipeline stage after its retries
// were exhausted.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
