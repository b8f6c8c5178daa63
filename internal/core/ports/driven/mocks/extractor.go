package mocks

import (
	"context"
	"sync"
)

// MockTextExtractor returns the uploaded bytes as text unless ExtractFn is set
type MockTextExtractor struct {
	mu    sync.Mutex
	calls int

	ExtractFn func(filename string, content []byte) (string, error)
}

// NewMockTextExtractor creates a new MockTextExtractor
func NewMockTextExtractor() *MockTextExtractor {
	return &MockTextExtractor{}
}

func (m *MockTextExtractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ExtractFn != nil {
		return m.ExtractFn(filename, content)
	}
	return string(content), nil
}

func (m *MockTextExtractor) Supports(filename string) bool {
	return true
}

// CallCount returns how many times Extract was invoked
func (m *MockTextExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
