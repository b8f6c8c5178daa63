package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/podtutor/internal/adapters/driven/ai"
	"github.com/custodia-labs/podtutor/internal/adapters/driven/filestore"
	"github.com/custodia-labs/podtutor/internal/adapters/driven/memory"
	"github.com/custodia-labs/podtutor/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/podtutor/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/podtutor/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/podtutor/internal/adapters/driven/redis"
	"github.com/custodia-labs/podtutor/internal/adapters/driven/vector"
	"github.com/custodia-labs/podtutor/internal/adapters/driving/http"
	"github.com/custodia-labs/podtutor/internal/config"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
	"github.com/custodia-labs/podtutor/internal/core/services"
	"github.com/custodia-labs/podtutor/internal/extractors"
	"github.com/custodia-labs/podtutor/internal/postprocessors"
	"github.com/custodia-labs/podtutor/internal/worker"
)

// statusRetention bounds how long redis keeps episode status records
const statusRetention = 30 * 24 * time.Hour

// backend holds the shared-state adapters selected by cfg.Backend
type backend struct {
	name    string
	queue   driven.TaskQueue
	status  driven.StatusStore
	vectors driven.VectorStore
	lock    driven.DistributedLock
	checks  map[string]http.Pinger
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// app is the fully wired process
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  *backend
	episodes *services.EpisodeService
	pipeline *services.EpisodePipeline
	files    *filestore.Store
	ai       []func() error
}

func (a *app) Close() {
	if a.pipeline != nil {
		a.pipeline.WaitIndexing()
	}
	for _, closeFn := range a.ai {
		_ = closeFn()
	}
	a.backend.Close()
}

func newLogger(cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		queue := memory.NewTaskQueue()
		return &backend{
			name:    config.BackendMemory,
			queue:   queue,
			status:  memory.NewStatusStore(),
			vectors: memory.NewVectorStore(),
			lock:    memory.NewLock(),
			checks:  map[string]http.Pinger{"queue": queue},
			closers: []func() error{queue.Close},
		}, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("redis connected", "addr", opts.Addr)

		queue, err := redisqueue.NewQueue(ctx, redisqueue.Config{
			Client: client,
			Logger: logger.With("component", "queue"),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("create redis queue: %w", err)
		}
		lock := redisadapter.NewLock(client)
		return &backend{
			name:    config.BackendRedis,
			queue:   queue,
			status:  redisadapter.NewStatusStore(client, statusRetention),
			vectors: redisadapter.NewVectorStore(client),
			lock:    lock,
			checks:  map[string]http.Pinger{"redis": lock, "queue": queue},
			closers: []func() error{client.Close, queue.Close},
		}, nil

	case config.BackendPostgres:
		dbConfig := postgres.DefaultConfig(cfg.Postgres.URL)
		dbConfig.MaxOpenConns = cfg.Postgres.MaxOpenConns
		dbConfig.MaxIdleConns = cfg.Postgres.MaxIdleConns
		dbConfig.ConnMaxLifetime = time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second
		dbConfig.ConnMaxIdleTime = time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second
		dbConfig.Logger = logger.With("component", "postgres")

		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("postgres connected and schema initialized")

		queue, err := postgresqueue.NewQueue(postgresqueue.Config{
			DB:        db.DB,
			ListenURL: cfg.Postgres.URL,
			Logger:    logger.With("component", "queue"),
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create postgres queue: %w", err)
		}
		return &backend{
			name:    config.BackendPostgres,
			queue:   queue,
			status:  postgres.NewStatusStore(db),
			vectors: postgres.NewVectorStore(db),
			lock:    postgres.NewAdvisoryLock(db),
			checks:  map[string]http.Pinger{"postgres": db, "queue": queue},
			closers: []func() error{db.Close, queue.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, backend: b}

	if err := a.wireServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireServices() error {
	cfg := a.cfg
	logger := a.logger
	factory := ai.NewFactory(logger)

	llm, err := factory.CreateLLMService(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm: %w", err)
	}
	if llm == nil {
		return errors.New("llm provider is not configured")
	}
	a.ai = append(a.ai, llm.Close)

	embedder, err := factory.CreateEmbeddingService(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("create embeddings: %w", err)
	}
	if embedder == nil {
		return errors.New("embedding provider is not configured")
	}
	a.ai = append(a.ai, embedder.Close)

	speech, err := factory.CreateSpeechService(&cfg.Speech)
	if err != nil {
		return fmt.Errorf("create speech: %w", err)
	}
	if speech == nil {
		return errors.New("speech provider is not configured")
	}
	if closer, ok := speech.(interface{ Close() error }); ok {
		a.ai = append(a.ai, closer.Close)
	}

	files, err := filestore.New(filestore.Config{
		Root:    cfg.Storage.Dir,
		BaseURL: cfg.Storage.BaseURL,
		Logger:  logger.With("component", "filestore"),
	})
	if err != nil {
		return err
	}
	a.files = files

	index, err := vector.NewIndex(vector.Config{
		Embedder: embedder,
		Store:    a.backend.vectors,
		Logger:   logger.With("component", "index"),
	})
	if err != nil {
		return err
	}

	rag := services.NewRAGService(services.RAGServiceConfig{
		Index:       index,
		LLM:         llm,
		Store:       files,
		TopK:        cfg.Pipeline.TopK,
		CallTimeout: cfg.CallTimeout(),
		Logger:      logger.With("component", "rag"),
	})

	a.episodes = services.NewEpisodeService(services.EpisodeServiceConfig{
		Store:          files,
		Status:         a.backend.status,
		Queue:          a.backend.queue,
		RAG:            rag,
		Speech:         speech,
		SpeechTimeout:  cfg.CallTimeout(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger.With("component", "episodes"),
	})

	a.pipeline = services.NewEpisodePipeline(services.EpisodePipelineConfig{
		Store:     files,
		Status:    a.backend.status,
		Extractor: extractors.DefaultRegistry(),
		Chunker:   postprocessors.DefaultPipeline(cfg.Pipeline.ChunkSize),
		Index:     index,
		Script: services.NewScriptGenerator(services.ScriptGeneratorConfig{
			LLM:         llm,
			Workers:     cfg.Pipeline.ScriptWorkers,
			CallTimeout: cfg.CallTimeout(),
			Logger:      logger.With("component", "script"),
		}),
		Audio: services.NewAudioSynthesizer(services.AudioSynthesizerConfig{
			Speech:      speech,
			Store:       files,
			CallTimeout: cfg.CallTimeout(),
			MaxChars:    cfg.Pipeline.MaxSpeechChars,
			Logger:      logger.With("component", "audio"),
		}),
		Lock:         a.backend.lock,
		LockTTL:      cfg.LockTTL(),
		IndexTimeout: cfg.IndexTimeout(),
		MaxChunks:    cfg.Pipeline.MaxChunks,
		Logger:       logger.With("component", "pipeline"),
	})
	return nil
}

// newServer builds the API; extra readiness checks join the backend's.
func (a *app) newServer(extra map[string]http.Pinger) *http.Server {
	checks := make(map[string]http.Pinger, len(a.backend.checks)+len(extra))
	for name, c := range a.backend.checks {
		checks[name] = c
	}
	for name, c := range extra {
		checks[name] = c
	}
	return http.NewServer(http.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		Version:        version,
		StaticDir:      a.files.EpisodesDir(),
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		MaxUploadBytes: a.cfg.MaxUploadBytes(),
		Logger:         a.logger.With("component", "http"),
	}, a.episodes, a.episodes, checks)
}

func (a *app) newWorker() *worker.Worker {
	return worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.backend.queue,
		Pipeline:       a.pipeline,
		Logger:         a.logger.With("component", "worker"),
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeoutSeconds,
		TaskTimeout:    a.cfg.TaskTimeout(),
	})
}
