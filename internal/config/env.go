package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// applyEnv overrides file values with the environment
func (c *Config) applyEnv() {
	c.Backend = getEnv("PODTUTOR_BACKEND", c.Backend)

	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Storage.Dir = getEnv("STORAGE_DIR", c.Storage.Dir)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Postgres.URL = getEnv("DATABASE_URL", c.Postgres.URL)

	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.DequeueTimeoutSeconds = getEnvInt("WORKER_DEQUEUE_TIMEOUT", c.Worker.DequeueTimeoutSeconds)
	c.Pipeline.ChunkSize = getEnvInt("PIPELINE_CHUNK_SIZE", c.Pipeline.ChunkSize)
	c.Pipeline.MaxChunks = getEnvInt("PIPELINE_MAX_CHUNKS", c.Pipeline.MaxChunks)

	c.LLM.Provider = domain.AIProvider(getEnv("LLM_PROVIDER", string(c.LLM.Provider)))
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.Embedding.Provider = domain.AIProvider(getEnv("EMBEDDING_PROVIDER", string(c.Embedding.Provider)))
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Speech.Provider = domain.AIProvider(getEnv("SPEECH_PROVIDER", string(c.Speech.Provider)))
	c.Speech.Model = getEnv("SPEECH_MODEL", c.Speech.Model)
	c.Speech.BaseURL = getEnv("SPEECH_BASE_URL", c.Speech.BaseURL)

	// Provider keys fill any settings that use that provider without a key
	keys := map[domain.AIProvider]string{
		domain.AIProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
		domain.AIProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
	}
	fill := func(provider domain.AIProvider, key *string) {
		if *key == "" {
			*key = keys[provider]
		}
	}
	fill(c.LLM.Provider, &c.LLM.APIKey)
	fill(c.Embedding.Provider, &c.Embedding.APIKey)
	fill(c.Speech.Provider, &c.Speech.APIKey)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
