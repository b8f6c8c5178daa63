package driven

import (
	"context"
)

// LLMService provides chat completion for script generation and question answering
type LLMService interface {
	// ChatCompletion sends a system instruction and a user prompt and
	// returns the model's text reply.
	ChatCompletion(ctx context.Context, system, user string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
