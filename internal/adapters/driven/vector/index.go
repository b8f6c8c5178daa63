// Package vector implements the per-episode retrieval index on top of an
// embedding service and a VectorStore.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.RetrievalIndex = (*Index)(nil)

// DefaultBatchSize is the number of chunks embedded per request
const DefaultBatchSize = 32

// Config holds index configuration
type Config struct {
	Embedder  driven.EmbeddingService
	Store     driven.VectorStore
	BatchSize int
	Logger    *slog.Logger
}

// Index scores every stored chunk against the query with cosine similarity.
// Episodes hold tens to hundreds of chunks, so a linear scan is enough.
type Index struct {
	embedder  driven.EmbeddingService
	store     driven.VectorStore
	batchSize int
	logger    *slog.Logger
}

// NewIndex creates an index over cfg.Store using cfg.Embedder
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedding service is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("vector store is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Index{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With("component", "retrieval_index"),
	}, nil
}

// Build embeds all chunks and replaces whatever was stored for the episode.
// Nothing is stored unless every batch succeeds.
func (ix *Index) Build(ctx context.Context, episodeID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks to index", domain.ErrInvalidInput)
	}

	start := time.Now()
	records := make([]driven.VectorRecord, 0, len(chunks))
	for from := 0; from < len(chunks); from += ix.batchSize {
		to := min(from+ix.batchSize, len(chunks))
		batch := chunks[from:to]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", from, to-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed chunks %d-%d: got %d vectors", from, to-1, len(vectors))
		}
		for i, c := range batch {
			records = append(records, driven.VectorRecord{Chunk: c, Embedding: vectors[i]})
		}
	}

	if err := ix.store.Replace(ctx, episodeID, records); err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}

	ix.logger.Info("retrieval index built",
		"episode_id", episodeID,
		"chunks", len(records),
		"model", ix.embedder.Model(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Query returns up to TopK chunks ordered by descending similarity, ties
// broken by ascending position.
func (ix *Index) Query(ctx context.Context, episodeID, text string, opts driven.QueryOptions) ([]domain.ScoredChunk, error) {
	records, err := ix.store.Load(ctx, episodeID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("episode %s: %w", episodeID, domain.ErrIndexNotReady)
	}
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	query, err := ix.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]domain.ScoredChunk, 0, len(records))
	for _, r := range records {
		if opts.MaxPosition >= 0 && r.Chunk.Position > opts.MaxPosition {
			continue
		}
		hits = append(hits, domain.ScoredChunk{
			Chunk: r.Chunk,
			Score: cosineSimilarity(query, r.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})

	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

// Exists reports whether an index has been built for the episode
func (ix *Index) Exists(ctx context.Context, episodeID string) (bool, error) {
	_, err := ix.store.Load(ctx, episodeID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// cosineSimilarity is zero for mismatched lengths and zero vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
