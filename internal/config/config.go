// Package config loads podtutor settings: built-in defaults, then an
// optional TOML file, then environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend names for the queue, status store, vector store and lock
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Server contains HTTP listener configuration.
type Server struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxUploadMB    int      `toml:"max_upload_mb"`
}

// Storage contains the episode file store location.
type Storage struct {
	Dir     string `toml:"dir"`
	BaseURL string `toml:"base_url"`
}

// Redis contains the Redis connection used by the redis backend.
type Redis struct {
	URL string `toml:"url"`
}

// Postgres contains the database connection used by the postgres backend.
type Postgres struct {
	URL             string `toml:"url"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `toml:"conn_max_idle_seconds"`
}

// Worker contains background task processing configuration.
type Worker struct {
	Concurrency           int `toml:"concurrency"`
	DequeueTimeoutSeconds int `toml:"dequeue_timeout_seconds"`
	TaskTimeoutSeconds    int `toml:"task_timeout_seconds"`
}

// Pipeline contains episode generation tuning.
type Pipeline struct {
	ChunkSize           int `toml:"chunk_size"`
	MaxChunks           int `toml:"max_chunks"`
	ScriptWorkers       int `toml:"script_workers"`
	MaxSpeechChars      int `toml:"max_speech_chars"`
	CallTimeoutSeconds  int `toml:"call_timeout_seconds"`
	IndexTimeoutSeconds int `toml:"index_timeout_seconds"`
	LockTTLSeconds      int `toml:"lock_ttl_seconds"`
	TopK                int `toml:"top_k"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete podtutor configuration.
type Config struct {
	Backend   string                   `toml:"backend"`
	Server    Server                   `toml:"server"`
	Storage   Storage                  `toml:"storage"`
	Redis     Redis                    `toml:"redis"`
	Postgres  Postgres                 `toml:"postgres"`
	Worker    Worker                   `toml:"worker"`
	Pipeline  Pipeline                 `toml:"pipeline"`
	LLM       domain.LLMSettings       `toml:"llm"`
	Embedding domain.EmbeddingSettings `toml:"embedding"`
	Speech    domain.SpeechSettings    `toml:"speech"`
	Logging   Logging                  `toml:"logging"`
}

// Load builds the configuration. An empty path falls back to podtutor.toml
// in the working directory when it exists. The second return value is the
// file that was read, or "" when none was.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
	} else {
		resolved = ""
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", path)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return path, true, nil
	}

	projectPath, err := filepath.Abs(defaultConfigFile)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return "", false, nil
}

// CreateSample writes the commented sample configuration, refusing to
// overwrite an existing file.
func CreateSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the storage root.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.Dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory %q: %w", c.Storage.Dir, err)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// CallTimeout bounds one LLM or speech call.
func (c *Config) CallTimeout() time.Duration {
	return seconds(c.Pipeline.CallTimeoutSeconds)
}

// IndexTimeout bounds a background retrieval index build.
func (c *Config) IndexTimeout() time.Duration {
	return seconds(c.Pipeline.IndexTimeoutSeconds)
}

// LockTTL is the lifetime of a per-episode lock between extensions.
func (c *Config) LockTTL() time.Duration {
	return seconds(c.Pipeline.LockTTLSeconds)
}

// TaskTimeout bounds one worker task; zero means no bound.
func (c *Config) TaskTimeout() time.Duration {
	return seconds(c.Worker.TaskTimeoutSeconds)
}

// SlogLevel maps the configured level name to a slog level.
func (l Logging) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		switch {
		case c.Redis.URL != "":
			c.Backend = BackendRedis
		case c.Postgres.URL != "":
			c.Backend = BackendPostgres
		default:
			c.Backend = BackendMemory
		}
	}

	c.Storage.BaseURL = strings.TrimRight(c.Storage.BaseURL, "/")
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = defaultStorageBaseURL
	}

	c.LLM.Provider = domain.AIProvider(strings.ToLower(string(c.LLM.Provider)))
	c.Embedding.Provider = domain.AIProvider(strings.ToLower(string(c.Embedding.Provider)))
	c.Speech.Provider = domain.AIProvider(strings.ToLower(string(c.Speech.Provider)))

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = defaultLogFormat
	}
}
