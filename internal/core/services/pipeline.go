package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
	"github.com/custodia-labs/podtutor/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.PipelineService = (*EpisodePipeline)(nil)

const (
	defaultLockTTL      = 10 * time.Minute
	defaultIndexTimeout = 5 * time.Minute
)

// Fatal pipeline reasons stored on a failed status
var (
	ErrNoText     = errors.New("document contains no text")
	ErrNoSegments = errors.New("no audio segments produced")
)

// EpisodePipeline turns an uploaded document into a finished episode:
//  1. Cache check (existing manifest means nothing to do)
//  2. Per-episode lock
//  3. Extract text
//  4. Chunk
//  5. Build retrieval index (background, independent of the rest)
//  6. Generate script
//  7. Synthesize audio
//  8. Build manifest
//  9. Persist manifest atomically
type EpisodePipeline struct {
	store        driven.EpisodeStore
	status       driven.StatusStore
	extractor    driven.TextExtractor
	chunker      driven.PostProcessorPipeline
	index        driven.RetrievalIndex
	script       *ScriptGenerator
	audio        *AudioSynthesizer
	lock         driven.DistributedLock
	lockTTL      time.Duration
	indexTimeout time.Duration
	maxChunks    int
	logger       *slog.Logger

	indexing sync.WaitGroup
}

// EpisodePipelineConfig holds dependencies for EpisodePipeline.
type EpisodePipelineConfig struct {
	Store     driven.EpisodeStore
	Status    driven.StatusStore
	Extractor driven.TextExtractor
	Chunker   driven.PostProcessorPipeline
	Index     driven.RetrievalIndex
	Script    *ScriptGenerator
	Audio     *AudioSynthesizer

	// Lock serializes runs for the same episode. Optional.
	Lock    driven.DistributedLock
	LockTTL time.Duration

	// IndexTimeout bounds the background index build
	IndexTimeout time.Duration

	// MaxChunks caps how many chunks are turned into dialogue (0 = all).
	// The retrieval index always covers every chunk.
	MaxChunks int

	Logger *slog.Logger
}

// NewEpisodePipeline creates a new episode pipeline.
func NewEpisodePipeline(cfg EpisodePipelineConfig) *EpisodePipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	indexTimeout := cfg.IndexTimeout
	if indexTimeout <= 0 {
		indexTimeout = defaultIndexTimeout
	}

	return &EpisodePipeline{
		store:        cfg.Store,
		status:       cfg.Status,
		extractor:    cfg.Extractor,
		chunker:      cfg.Chunker,
		index:        cfg.Index,
		script:       cfg.Script,
		audio:        cfg.Audio,
		lock:         cfg.Lock,
		lockTTL:      lockTTL,
		indexTimeout: indexTimeout,
		maxChunks:    cfg.MaxChunks,
		logger:       logger,
	}
}

// Process runs the pipeline for one episode. Running it again after a
// success makes no external calls.
func (p *EpisodePipeline) Process(ctx context.Context, episodeID string) error {
	logger := p.logger.With("episode_id", episodeID)

	// Step 1: Cache check
	if done, err := p.cached(ctx, episodeID, logger); err != nil || done {
		return err
	}

	// Step 2: Lock
	if p.lock != nil {
		lockName := "episode:" + episodeID
		acquired, err := p.lock.Acquire(ctx, lockName, p.lockTTL)
		if err != nil {
			return p.fail(ctx, episodeID, logger, fmt.Errorf("acquire episode lock: %w", err))
		}
		if !acquired {
			logger.Info("episode is being processed elsewhere, skipping")
			return nil
		}
		stopHeartbeat := p.keepLock(ctx, lockName, logger)
		defer func() {
			stopHeartbeat()
			if err := p.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
				logger.Warn("failed to release episode lock", "error", err)
			}
		}()

		// A run that held the lock before us may have finished meanwhile
		if done, err := p.cached(ctx, episodeID, logger); err != nil || done {
			return err
		}
	}

	return p.run(ctx, episodeID, logger)
}

func (p *EpisodePipeline) run(ctx context.Context, episodeID string, logger *slog.Logger) error {
	startTime := time.Now()
	logger.Info("starting episode pipeline")

	if err := p.status.Save(ctx, domain.NewEpisodeStatus(episodeID, domain.EpisodeProcessing)); err != nil {
		logger.Warn("failed to update status to processing", "error", err)
	}

	// Step 3: Extract
	stageStart := time.Now()
	filename, content, err := p.store.LoadSource(ctx, episodeID)
	if err != nil {
		return p.fail(ctx, episodeID, logger, fmt.Errorf("load source: %w", err))
	}
	text, err := p.extractor.Extract(ctx, filename, content)
	if err != nil {
		return p.fail(ctx, episodeID, logger, fmt.Errorf("extract text: %w", err))
	}
	logger.Info("text extracted", "chars", len(text), "duration", time.Since(stageStart))

	// Step 4: Chunk
	chunks := p.chunker.Process(text)
	if len(chunks) == 0 {
		return p.fail(ctx, episodeID, logger, ErrNoText)
	}
	logger.Info("text chunked", "chunks", len(chunks))

	// Step 5: Index build runs on its own and never fails the episode
	p.buildIndex(ctx, episodeID, chunks, logger)

	scriptChunks := chunks
	if p.maxChunks > 0 && len(scriptChunks) > p.maxChunks {
		scriptChunks = scriptChunks[:p.maxChunks]
		logger.Info("limiting script to leading chunks", "used", p.maxChunks, "total", len(chunks))
	}

	// Step 6: Script
	stageStart = time.Now()
	segments, failures := p.script.Generate(ctx, scriptChunks)
	logger.Info("script generated",
		"segments", len(segments),
		"failed_chunks", len(failures),
		"duration", time.Since(stageStart),
	)

	// Step 7: Audio
	stageStart = time.Now()
	results, audioFailures := p.audio.Synthesize(ctx, episodeID, segments)
	failures = append(failures, audioFailures...)
	logger.Info("audio synthesized",
		"clips", len(results),
		"failed_segments", len(audioFailures),
		"duration", time.Since(stageStart),
	)
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, episodeID, logger, fmt.Errorf("pipeline cancelled: %w", err))
	}
	if len(results) == 0 {
		return p.fail(ctx, episodeID, logger, ErrNoSegments)
	}

	// Step 8: Manifest
	manifest := BuildManifest(episodeID, results)
	manifest.CreatedAt = time.Now()

	// Step 9: Persist
	if err := p.store.WriteManifest(ctx, manifest); err != nil {
		return p.fail(ctx, episodeID, logger, fmt.Errorf("write manifest: %w", err))
	}

	ready := domain.NewEpisodeStatus(episodeID, domain.EpisodeReady)
	ready.Failures = failures
	if err := p.status.Save(ctx, ready); err != nil {
		logger.Warn("failed to update status to ready", "error", err)
	}

	total := time.Since(startTime)
	episodeSeconds := manifest.Duration()
	logger.Info("episode pipeline completed",
		"duration", total,
		"episode_seconds", episodeSeconds,
		"segments", len(manifest.Segments),
		"item_failures", len(failures),
		"realtime_factor", realtimeFactor(episodeSeconds, total),
	)
	return nil
}

// buildIndex starts the retrieval index build. The build outlives a
// cancelled pipeline and is bounded by its own timeout.
func (p *EpisodePipeline) buildIndex(ctx context.Context, episodeID string, chunks []domain.Chunk, logger *slog.Logger) {
	if p.index == nil {
		return
	}
	indexCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.indexTimeout)

	p.indexing.Add(1)
	go func() {
		defer p.indexing.Done()
		defer cancel()

		start := time.Now()
		if err := p.index.Build(indexCtx, episodeID, chunks); err != nil {
			logger.Error("retrieval index build failed", "error", err)
			return
		}
		logger.Info("retrieval index built", "chunks", len(chunks), "duration", time.Since(start))
	}()
}

// WaitIndexing blocks until every background index build has finished.
func (p *EpisodePipeline) WaitIndexing() {
	p.indexing.Wait()
}

// keepLock extends the episode lock at half its TTL until stopped.
func (p *EpisodePipeline) keepLock(ctx context.Context, name string, logger *slog.Logger) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.lock.Extend(ctx, name, p.lockTTL); err != nil {
					logger.Warn("failed to extend episode lock", "error", err)
				}
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

// cached reports whether the manifest is already persisted, repairing a
// stale status record when it is.
func (p *EpisodePipeline) cached(ctx context.Context, episodeID string, logger *slog.Logger) (bool, error) {
	done, err := p.store.ManifestExists(ctx, episodeID)
	if err != nil {
		return false, fmt.Errorf("check manifest: %w", err)
	}
	if done {
		logger.Info("manifest already exists, skipping pipeline")
		p.markReadyIfStale(ctx, episodeID, logger)
	}
	return done, nil
}

func (p *EpisodePipeline) markReadyIfStale(ctx context.Context, episodeID string, logger *slog.Logger) {
	current, err := p.status.Get(ctx, episodeID)
	if err == nil && current.State == domain.EpisodeReady {
		return
	}
	if err := p.status.Save(ctx, domain.NewEpisodeStatus(episodeID, domain.EpisodeReady)); err != nil {
		logger.Warn("failed to update status to ready", "error", err)
	}
}

// fail records a fatal pipeline error on the status record and returns it.
func (p *EpisodePipeline) fail(ctx context.Context, episodeID string, logger *slog.Logger, err error) error {
	logger.Error("episode pipeline failed", "error", err)
	if saveErr := p.status.Save(context.WithoutCancel(ctx), domain.FailedStatus(episodeID, err.Error())); saveErr != nil {
		logger.Warn("failed to update status to failed", "error", saveErr)
	}
	return err
}

func realtimeFactor(episodeSeconds float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return episodeSeconds / elapsed.Seconds()
}
