package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

// MockRetrievalIndex is a mock implementation of RetrievalIndex.
// Query ranks by the number of query words a chunk contains.
type MockRetrievalIndex struct {
	mu      sync.RWMutex
	indexes map[string][]domain.Chunk
	builds  int

	BuildFn func(ctx context.Context, episodeID string, chunks []domain.Chunk) error
	QueryFn func(episodeID, text string, opts driven.QueryOptions) ([]domain.ScoredChunk, error)
}

// NewMockRetrievalIndex creates a new MockRetrievalIndex
func NewMockRetrievalIndex() *MockRetrievalIndex {
	return &MockRetrievalIndex{indexes: make(map[string][]domain.Chunk)}
}

func (m *MockRetrievalIndex) Build(ctx context.Context, episodeID string, chunks []domain.Chunk) error {
	m.mu.Lock()
	m.builds++
	m.mu.Unlock()

	if m.BuildFn != nil {
		if err := m.BuildFn(ctx, episodeID, chunks); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[episodeID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (m *MockRetrievalIndex) Query(ctx context.Context, episodeID, text string, opts driven.QueryOptions) ([]domain.ScoredChunk, error) {
	if m.QueryFn != nil {
		return m.QueryFn(episodeID, text, opts)
	}

	m.mu.RLock()
	chunks, ok := m.indexes[episodeID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrIndexNotReady
	}

	words := strings.Fields(strings.ToLower(text))
	var hits []domain.ScoredChunk
	for _, c := range chunks {
		if opts.MaxPosition >= 0 && c.Position > opts.MaxPosition {
			continue
		}
		content := strings.ToLower(c.Content)
		score := 0.0
		for _, w := range words {
			w = strings.Trim(w, ".,;:!?\"'")
			if w != "" && strings.Contains(content, w) {
				score++
			}
		}
		hits = append(hits, domain.ScoredChunk{Chunk: c, Score: score})
	}
	// stable insertion sort keeps position order on ties
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

func (m *MockRetrievalIndex) Exists(ctx context.Context, episodeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indexes[episodeID]
	return ok, nil
}

// BuildCount returns how many times Build was invoked
func (m *MockRetrievalIndex) BuildCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.builds
}

// Chunks returns the indexed chunks for an episode
func (m *MockRetrievalIndex) Chunks(episodeID string) []domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexes[episodeID]
}
