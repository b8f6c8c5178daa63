package config

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// Validate ensures the configuration is usable. Errors wrap domain.ErrInvalidInput.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis backend (or set REDIS_URL)"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url is required for the postgres backend (or set DATABASE_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend must be memory, redis or postgres, got %q", c.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("server.max_upload_mb must be positive"))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir must be set"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	if c.Worker.DequeueTimeoutSeconds < 1 {
		errs = append(errs, errors.New("worker.dequeue_timeout_seconds must be at least 1"))
	}
	if c.Pipeline.ChunkSize < 1 {
		errs = append(errs, errors.New("pipeline.chunk_size must be at least 1"))
	}
	if c.Pipeline.MaxChunks < 0 {
		errs = append(errs, errors.New("pipeline.max_chunks must not be negative"))
	}
	if c.Pipeline.CallTimeoutSeconds < 1 {
		errs = append(errs, errors.New("pipeline.call_timeout_seconds must be at least 1"))
	}

	errs = append(errs,
		validateProvider("llm", c.LLM.Provider, c.LLM.APIKey),
		validateProvider("embedding", c.Embedding.Provider, c.Embedding.APIKey),
		validateProvider("speech", c.Speech.Provider, c.Speech.APIKey),
	)
	if c.Embedding.Provider == domain.AIProviderAnthropic {
		errs = append(errs, errors.New("embedding.provider anthropic does not offer embeddings"))
	}
	if c.Speech.Provider != "" && c.Speech.Provider != domain.AIProviderOpenAI {
		errs = append(errs, fmt.Errorf("speech.provider must be openai, got %q", c.Speech.Provider))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func validateProvider(section string, provider domain.AIProvider, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%s.provider must be openai, anthropic or ollama, got %q", section, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%s.api_key is required for %s", section, provider)
	}
	return nil
}
