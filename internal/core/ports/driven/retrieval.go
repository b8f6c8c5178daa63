package driven

import (
	"context"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// QueryOptions controls a retrieval query
type QueryOptions struct {
	// TopK is the maximum number of chunks returned
	TopK int

	// MaxPosition restricts hits to chunks at or before this position.
	// Negative means unbounded.
	MaxPosition int
}

// RetrievalIndex is the per-episode nearest-neighbour lookup over chunks.
// An index is built once; a second Build for the same episode replaces it.
type RetrievalIndex interface {
	// Build embeds and stores the chunks of an episode
	Build(ctx context.Context, episodeID string, chunks []domain.Chunk) error

	// Query returns the chunks most similar to text, most relevant first.
	// Returns domain.ErrIndexNotReady if no index exists for the episode.
	Query(ctx context.Context, episodeID, text string, opts QueryOptions) ([]domain.ScoredChunk, error)

	// Exists reports whether an index has been built for the episode
	Exists(ctx context.Context, episodeID string) (bool, error)
}

// VectorRecord is a stored chunk with its embedding
type VectorRecord struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// VectorStore persists chunk embeddings grouped by episode
type VectorStore interface {
	// Replace atomically swaps the full record set for an episode
	Replace(ctx context.Context, episodeID string, records []VectorRecord) error

	// Load returns all records for an episode ordered by chunk position.
	// Returns domain.ErrNotFound if nothing has been stored.
	Load(ctx context.Context, episodeID string) ([]VectorRecord, error)
}
