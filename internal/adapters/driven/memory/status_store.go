package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.StatusStore = (*StatusStore)(nil)

// StatusStore keeps episode status records in a map
type StatusStore struct {
	mu      sync.RWMutex
	records map[string]domain.EpisodeStatus
}

// NewStatusStore creates an empty in-memory status store
func NewStatusStore() *StatusStore {
	return &StatusStore{records: make(map[string]domain.EpisodeStatus)}
}

func (s *StatusStore) Get(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[episodeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.Failures = append([]domain.ItemFailure(nil), rec.Failures...)
	return &rec, nil
}

func (s *StatusStore) Save(ctx context.Context, status *domain.EpisodeStatus) error {
	if status == nil || status.EpisodeID == "" {
		return fmt.Errorf("%w: status without episode id", domain.ErrInvalidInput)
	}

	rec := *status
	rec.Failures = append([]domain.ItemFailure(nil), status.Failures...)

	s.mu.Lock()
	s.records[rec.EpisodeID] = rec
	s.mu.Unlock()
	return nil
}
