package config

import "github.com/custodia-labs/podtutor/internal/core/domain"

const (
	defaultConfigFile     = "podtutor.toml"
	defaultHost           = "0.0.0.0"
	defaultPort           = 8080
	defaultMaxUploadMB    = 32
	defaultStorageDir     = "./storage"
	defaultStorageBaseURL = "/static/episodes"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Host:           defaultHost,
			Port:           defaultPort,
			AllowedOrigins: []string{"*"},
			MaxUploadMB:    defaultMaxUploadMB,
		},
		Storage: Storage{
			Dir:     defaultStorageDir,
			BaseURL: defaultStorageBaseURL,
		},
		Postgres: Postgres{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			ConnMaxIdleTime: 60,
		},
		Worker: Worker{
			Concurrency:           2,
			DequeueTimeoutSeconds: 5,
			TaskTimeoutSeconds:    1800,
		},
		Pipeline: Pipeline{
			ChunkSize:           600,
			MaxChunks:           0,
			ScriptWorkers:       4,
			MaxSpeechChars:      1200,
			CallTimeoutSeconds:  60,
			IndexTimeoutSeconds: 300,
			LockTTLSeconds:      600,
			TopK:                5,
		},
		LLM:       domain.LLMSettings{Provider: domain.AIProviderOpenAI},
		Embedding: domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
		Speech:    domain.SpeechSettings{Provider: domain.AIProviderOpenAI},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
