package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// MockStatusStore is an in-memory StatusStore that keeps the history of
// saved states per episode.
type MockStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]*domain.EpisodeStatus
	history  map[string][]domain.EpisodeState

	SaveFn func(status *domain.EpisodeStatus) error
}

// NewMockStatusStore creates a new MockStatusStore
func NewMockStatusStore() *MockStatusStore {
	return &MockStatusStore{
		statuses: make(map[string]*domain.EpisodeStatus),
		history:  make(map[string][]domain.EpisodeState),
	}
}

func (m *MockStatusStore) Get(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[episodeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockStatusStore) Save(ctx context.Context, status *domain.EpisodeStatus) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(status); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *status
	m.statuses[status.EpisodeID] = &cp
	m.history[status.EpisodeID] = append(m.history[status.EpisodeID], status.State)
	return nil
}

// History returns the sequence of states saved for an episode
func (m *MockStatusStore) History(episodeID string) []domain.EpisodeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.EpisodeState(nil), m.history[episodeID]...)
}
