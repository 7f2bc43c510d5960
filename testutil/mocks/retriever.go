// MockRetriever is a fixed-answer rag.Retriever.
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/companion/rag"
)

// MockRetriever implements rag.Retriever.
type MockRetriever struct {
	mu       sync.Mutex
	result   rag.Context
	err      error
	requests []rag.ContextRequest
}

var _ rag.Retriever = (*MockRetriever)(nil)

// NewMockRetriever creates a retriever answering result.
func NewMockRetriever(result rag.Context) *MockRetriever {
	return &MockRetriever{result: result}
}

// WithError makes every call fail with err.
func (m *MockRetriever) WithError(err error) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Requests returns the recorded requests.
func (m *MockRetriever) Requests() []rag.ContextRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rag.ContextRequest(nil), m.requests...)
}

func (m *MockRetriever) GetContext(_ context.Context, req rag.ContextRequest) (rag.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return rag.Context{}, m.err
	}
	return m.result, nil
}
