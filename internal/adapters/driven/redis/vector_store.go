package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps an episode's chunk embeddings in one list, one JSON
// element per chunk.
type VectorStore struct {
	client redis.UniversalClient
}

// NewVectorStore creates a Redis-backed vector store
func NewVectorStore(client redis.UniversalClient) *VectorStore {
	return &VectorStore{client: client}
}

type vectorRecord struct {
	Position  int       `json:"p"`
	Content   string    `json:"c"`
	Embedding []float32 `json:"e"`
}

// Replace swaps the list in one MULTI/EXEC
func (s *VectorStore) Replace(ctx context.Context, episodeID string, records []driven.VectorRecord) error {
	values := make([]any, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(vectorRecord{
			Position:  r.Chunk.Position,
			Content:   r.Chunk.Content,
			Embedding: r.Embedding,
		})
		if err != nil {
			return fmt.Errorf("encode vector %d: %w", r.Chunk.Position, err)
		}
		values = append(values, data)
	}

	key := vectorPrefix + episodeID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace vectors: %w", err)
	}
	return nil
}

// Load returns the records ordered by position
func (s *VectorStore) Load(ctx context.Context, episodeID string) ([]driven.VectorRecord, error) {
	items, err := s.client.LRange(ctx, vectorPrefix+episodeID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}

	records := make([]driven.VectorRecord, 0, len(items))
	for i, item := range items {
		var rec vectorRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode vector %d: %w", i, err)
		}
		records = append(records, driven.VectorRecord{
			Chunk:     domain.Chunk{Position: rec.Position, Content: rec.Content},
			Embedding: rec.Embedding,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Chunk.Position < records[j].Chunk.Position
	})
	return records, nil
}
