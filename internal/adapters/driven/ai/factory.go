package ai

import (
	"fmt"
	"log/slog"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

// Factory creates AI services based on configuration
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new AI service factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateEmbeddingService creates an embedding service from settings.
// Returns nil, nil when the settings are not configured.
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err := NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.AIProviderOllama:
		svc, err := NewOllamaEmbedding(settings.BaseURL, settings.Model)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateLLMService creates an LLM service from settings.
// Returns nil, nil when the settings are not configured.
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	svc, err := NewLLMFromSettings(settings, f.logger.With("component", "llm"))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// CreateSpeechService creates a speech synthesizer from settings.
// Returns nil, nil when the settings are not configured.
func (f *Factory) CreateSpeechService(settings *domain.SpeechSettings) (driven.SpeechSynthesizer, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err := NewOpenAISpeech(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s does not provide speech", domain.ErrInvalidProvider, settings.Provider)
	}
}
