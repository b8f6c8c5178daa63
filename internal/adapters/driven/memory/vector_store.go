package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore holds chunk embeddings per episode
type VectorStore struct {
	mu      sync.RWMutex
	records map[string][]driven.VectorRecord
}

// NewVectorStore creates an empty in-memory vector store
func NewVectorStore() *VectorStore {
	return &VectorStore{records: make(map[string][]driven.VectorRecord)}
}

// Replace swaps the record set for an episode
func (s *VectorStore) Replace(ctx context.Context, episodeID string, records []driven.VectorRecord) error {
	cp := cloneRecords(records)
	sort.SliceStable(cp, func(i, j int) bool {
		return cp[i].Chunk.Position < cp[j].Chunk.Position
	})

	s.mu.Lock()
	s.records[episodeID] = cp
	s.mu.Unlock()
	return nil
}

// Load returns a copy of the records ordered by chunk position
func (s *VectorStore) Load(ctx context.Context, episodeID string) ([]driven.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.records[episodeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecords(records), nil
}

func cloneRecords(records []driven.VectorRecord) []driven.VectorRecord {
	out := make([]driven.VectorRecord, len(records))
	for i, r := range records {
		out[i] = driven.VectorRecord{
			Chunk:     r.Chunk,
			Embedding: append([]float32(nil), r.Embedding...),
		}
	}
	return out
}
