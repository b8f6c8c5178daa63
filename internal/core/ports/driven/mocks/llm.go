package mocks

import (
	"context"
	"sync"
)

// LLMCall records a single ChatCompletion invocation
type LLMCall struct {
	System string
	User   string
}

// MockLLMService is a mock implementation of LLMService for testing.
// Without a CompleteFn it echoes a fixed two-line dialogue.
type MockLLMService struct {
	mu    sync.Mutex
	calls []LLMCall

	CompleteFn func(ctx context.Context, system, user string) (string, error)
	PingFn     func() error
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{}
}

func (m *MockLLMService) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, LLMCall{System: system, User: user})
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, system, user)
	}
	return "Tutor: Let's look at this.\nStudent: Okay!", nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns a copy of all recorded calls
func (m *MockLLMService) Calls() []LLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LLMCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times ChatCompletion was invoked
func (m *MockLLMService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
