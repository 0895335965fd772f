package llm

import (
	"context"
	"sync"
)

// MockProvider is a test implementation of Provider.
//
// It returns configured responses in order (repeating the last one when
// exhausted), optionally injects errors, and records every request for
// assertion. Thread-safe.
//
// Example:
//
//	mock := &MockProvider{
//	    Responses: []Response{
//	        {FinishReason: FinishSafety},
//	        {Text: "a valid scholarly response...", FinishReason: FinishStop},
//	    },
//	}
//	gw := NewGateway(mock)
type MockProvider struct {
	// Responses is the sequence to return; the last entry repeats.
	Responses []Response

	// Errs, when non-empty, is consumed before Responses: call i returns
	// Errs[i] if it is non-nil.
	Errs []error

	// Calls records every request received.
	Calls []Request

	mu    sync.Mutex
	index int
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index
	m.index++
	m.Calls = append(m.Calls, req)

	if i < len(m.Errs) && m.Errs[i] != nil {
		return Response{}, m.Errs[i]
	}
	if len(m.Responses) == 0 {
		return Response{Text: "", FinishReason: FinishStop}, nil
	}
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// CallCount returns the number of Complete invocations so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
