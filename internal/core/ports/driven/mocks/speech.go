package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// SpeechCall records a single Synthesize invocation
type SpeechCall struct {
	Text  string
	Voice domain.VoiceParams
}

// MockSpeechSynthesizer is a mock implementation of SpeechSynthesizer for testing
type MockSpeechSynthesizer struct {
	mu    sync.Mutex
	calls []SpeechCall

	SynthesizeFn func(ctx context.Context, text string, voice domain.VoiceParams) ([]byte, error)
}

// NewMockSpeechSynthesizer creates a new MockSpeechSynthesizer
func NewMockSpeechSynthesizer() *MockSpeechSynthesizer {
	return &MockSpeechSynthesizer{}
}

func (m *MockSpeechSynthesizer) Synthesize(ctx context.Context, text string, voice domain.VoiceParams) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SpeechCall{Text: text, Voice: voice})
	m.mu.Unlock()

	if m.SynthesizeFn != nil {
		return m.SynthesizeFn(ctx, text, voice)
	}
	return []byte("ID3mock:" + text), nil
}

func (m *MockSpeechSynthesizer) Model() string {
	return "mock-tts"
}

// Calls returns a copy of all recorded calls
func (m *MockSpeechSynthesizer) Calls() []SpeechCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SpeechCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Synthesize was invoked
func (m *MockSpeechSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
