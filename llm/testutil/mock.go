// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/taxorank/llm"
)

// MockLLMClient is a thread-safe llm.Completer for tests. It records every
// request and returns configured responses in sequence.
//
// Usage:
//
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: "no", Model: "test-model"},
//	        {Content: "yes", Model: "test-model"},
//	    },
//	}
//
//	// Route by content instead of order
//	mock := &MockLLMClient{
//	    Handler: func(req llm.Request) (*llm.Response, error) { ... },
//	}
type MockLLMClient struct {
	mu            sync.Mutex
	requests      []llm.Request
	responseIndex int

	// Responses are returned in sequence.
	Responses []*llm.Response

	// Err is returned for every call and takes precedence over Responses.
	Err error

	// Handler, when set, answers every call and takes precedence over both.
	Handler func(req llm.Request) (*llm.Response, error)
}

var _ llm.Completer = (*MockLLMClient)(nil)

// Complete returns the next configured response.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.Handler
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler != nil {
		return handler(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// GetCallCount returns the number of times Complete() was called.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears recorded requests and rewinds the response sequence.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
}
