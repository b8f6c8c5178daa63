package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.StatusStore = (*StatusStore)(nil)

// StatusStore keeps each status record as a JSON string.
// A non-zero retention expires ready and failed records; pending and
// processing records never expire.
type StatusStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewStatusStore creates a status store; retention 0 keeps records forever
func NewStatusStore(client redis.UniversalClient, retention time.Duration) *StatusStore {
	return &StatusStore{client: client, retention: retention}
}

func (s *StatusStore) Get(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error) {
	data, err := s.client.Get(ctx, statusPrefix+episodeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	var status domain.EpisodeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func (s *StatusStore) Save(ctx context.Context, status *domain.EpisodeStatus) error {
	if status == nil || status.EpisodeID == "" {
		return fmt.Errorf("%w: status without episode id", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	var ttl time.Duration
	if status.State.IsTerminal() {
		ttl = s.retention
	}
	if err := s.client.Set(ctx, statusPrefix+status.EpisodeID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}
