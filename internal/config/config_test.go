package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/custodia-labs/podtutor/internal/config"
	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// clearEnv isolates a test from variables set in the outer environment
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PODTUTOR_BACKEND", "HOST", "PORT", "CORS_ALLOWED_ORIGINS", "STORAGE_DIR",
		"REDIS_URL", "DATABASE_URL", "WORKER_CONCURRENCY", "WORKER_DEQUEUE_TIMEOUT",
		"PIPELINE_MAX_CHUNKS", "PIPELINE_CHUNK_SIZE", "LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_BASE_URL",
		"SPEECH_PROVIDER", "SPEECH_MODEL", "SPEECH_BASE_URL",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "podtutor.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithEnvKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, path, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no config file, got %q", path)
	}
	if cfg.Backend != config.BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Backend)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.Embedding.APIKey != "sk-test" || cfg.Speech.APIKey != "sk-test" {
		t.Fatal("expected OPENAI_API_KEY to fill every openai section")
	}
	if cfg.Worker.Concurrency != 2 {
		t.Fatalf("expected worker concurrency 2, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Pipeline.ScriptWorkers != 4 || cfg.Pipeline.TopK != 5 || cfg.Pipeline.ChunkSize != 600 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.CallTimeout() != time.Minute {
		t.Fatalf("unexpected call timeout %v", cfg.CallTimeout())
	}
	if cfg.MaxUploadBytes() != 32<<20 {
		t.Fatalf("unexpected upload limit %d", cfg.MaxUploadBytes())
	}
	if cfg.Storage.BaseURL != "/static/episodes" {
		t.Fatalf("unexpected base url %q", cfg.Storage.BaseURL)
	}
}

func TestLoadFindsProjectFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if err := os.WriteFile("podtutor.toml", []byte("[server]\nport = 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if filepath.Base(path) != "podtutor.toml" {
		t.Fatalf("expected project file to be used, got %q", path)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port from file, got %d", cfg.Server.Port)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[redis]
url = "redis://cache:6379/0"

[llm]
provider = "Anthropic"
api_key = "sk-ant"

[embedding]
provider = "ollama"
base_url = "http://ollama:11434"

[speech]
provider = "openai"
api_key = "sk-file"

[logging]
level = "DEBUG"
format = "json"
`)
	t.Setenv("PORT", "9000")
	t.Setenv("WORKER_CONCURRENCY", "6")

	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Backend != config.BackendRedis {
		t.Fatalf("expected redis backend from redis.url, got %q", cfg.Backend)
	}
	if cfg.LLM.Provider != domain.AIProviderAnthropic {
		t.Fatalf("expected provider to be lower-cased, got %q", cfg.LLM.Provider)
	}
	if cfg.Speech.APIKey != "sk-file" {
		t.Fatalf("file key should win over env, got %q", cfg.Speech.APIKey)
	}
	if cfg.Server.Port != 9000 || cfg.Worker.Concurrency != 6 {
		t.Fatalf("env overrides not applied: port=%d concurrency=%d", cfg.Server.Port, cfg.Worker.Concurrency)
	}
	if cfg.Logging.SlogLevel() != slog.LevelDebug || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoadPostgresBackendFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://podtutor@db/podtutor")

	cfg, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend != config.BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.Backend)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing api key", ""},
		{"unknown backend", "backend = \"etcd\"\n[llm]\napi_key = \"k\"\n[embedding]\napi_key = \"k\"\n[speech]\napi_key = \"k\"\n"},
		{"redis without url", "backend = \"redis\"\n[llm]\napi_key = \"k\"\n[embedding]\napi_key = \"k\"\n[speech]\napi_key = \"k\"\n"},
		{"anthropic embeddings", "[llm]\napi_key = \"k\"\n[embedding]\nprovider = \"anthropic\"\napi_key = \"k\"\n[speech]\napi_key = \"k\"\n"},
		{"zero workers", "[worker]\nconcurrency = 0\n[llm]\napi_key = \"k\"\n[embedding]\napi_key = \"k\"\n[speech]\napi_key = \"k\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, _, err := config.Load(writeConfig(t, tt.body))
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLoadUnknownField(t *testing.T) {
	clearEnv(t)
	_, _, err := config.Load(writeConfig(t, "[server]\nprot = 1\n"))
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	clearEnv(t)
	if _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestCreateSample(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "conf", "podtutor.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected CreateSample to refuse overwriting")
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	def := config.Default()
	if cfg.Server.Port != def.Server.Port || cfg.Pipeline.TopK != def.Pipeline.TopK {
		t.Fatal("sample config should match defaults")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		if got := (config.Logging{Level: name}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "a", "b")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	if info, err := os.Stat(cfg.Storage.Dir); err != nil || !info.IsDir() {
		t.Fatalf("expected storage dir to exist: %v", err)
	}
}
