package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.LLMService = (*LangChainLLM)(nil)

// Default chat models per provider
const (
	defaultOpenAIChatModel    = "gpt-4o-mini"
	defaultAnthropicChatModel = "claude-3-5-haiku-latest"
	defaultOllamaChatModel    = "llama3.2"
	defaultOllamaURL          = "http://localhost:11434"
)

var errEmptyCompletion = errors.New("model returned no choices")

// LangChainLLM implements LLMService on top of a langchaingo model
type LangChainLLM struct {
	llm       llms.Model
	modelName string
	logger    *slog.Logger
}

// NewLangChainLLM wraps an existing langchaingo model
func NewLangChainLLM(model llms.Model, modelName string, logger *slog.Logger) *LangChainLLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangChainLLM{llm: model, modelName: modelName, logger: logger}
}

// NewLLMFromSettings builds the provider's langchaingo client
func NewLLMFromSettings(settings *domain.LLMSettings, logger *slog.Logger) (*LangChainLLM, error) {
	var (
		model llms.Model
		name  = settings.Model
		err   error
	)

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		if name == "" {
			name = defaultOpenAIChatModel
		}
		opts := []openai.Option{openai.WithToken(settings.APIKey), openai.WithModel(name)}
		if settings.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(settings.BaseURL))
		}
		model, err = openai.New(opts...)

	case domain.AIProviderAnthropic:
		if name == "" {
			name = defaultAnthropicChatModel
		}
		opts := []anthropic.Option{anthropic.WithToken(settings.APIKey), anthropic.WithModel(name)}
		if settings.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(settings.BaseURL))
		}
		model, err = anthropic.New(opts...)

	case domain.AIProviderOllama:
		if name == "" {
			name = defaultOllamaChatModel
		}
		serverURL := settings.BaseURL
		if serverURL == "" {
			serverURL = defaultOllamaURL
		}
		model, err = ollama.New(ollama.WithModel(name), ollama.WithServerURL(serverURL))

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", settings.Provider, err)
	}

	return NewLangChainLLM(model, name, logger), nil
}

// ChatCompletion sends a system and a human message and returns the first choice
func (m *LangChainLLM) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		m.logger.Warn("chat completion failed",
			"model", m.modelName,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errEmptyCompletion
	}

	m.logger.Debug("chat completion",
		"model", m.modelName,
		"prompt_len", len(user),
		"duration_ms", time.Since(start).Milliseconds())
	return response.Choices[0].Content, nil
}

func (m *LangChainLLM) Model() string { return m.modelName }

// Ping issues a minimal completion
func (m *LangChainLLM) Ping(ctx context.Context) error {
	_, err := m.ChatCompletion(ctx, "Reply with OK.", "ping")
	return err
}

func (m *LangChainLLM) Close() error { return nil }
