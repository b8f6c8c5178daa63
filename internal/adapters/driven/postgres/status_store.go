package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.StatusStore = (*StatusStore)(nil)

// StatusStore keeps one row per episode in episode_status
type StatusStore struct {
	db *DB
}

// NewStatusStore creates a PostgreSQL-backed status store
func NewStatusStore(db *DB) *StatusStore {
	return &StatusStore{db: db}
}

func (s *StatusStore) Get(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error) {
	var (
		status   domain.EpisodeStatus
		failures []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT episode_id, state, reason, failures, updated_at
		FROM episode_status
		WHERE episode_id = $1
	`, episodeID).Scan(&status.EpisodeID, &status.State, &status.Reason, &failures, &status.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &status.Failures); err != nil {
			return nil, fmt.Errorf("decode failures: %w", err)
		}
	}
	if len(status.Failures) == 0 {
		status.Failures = nil
	}
	return &status, nil
}

// Save upserts the record
func (s *StatusStore) Save(ctx context.Context, status *domain.EpisodeStatus) error {
	if status == nil || status.EpisodeID == "" {
		return fmt.Errorf("%w: status without episode id", domain.ErrInvalidInput)
	}

	failures := status.Failures
	if failures == nil {
		failures = []domain.ItemFailure{}
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episode_status (episode_id, state, reason, failures, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (episode_id) DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			failures = EXCLUDED.failures,
			updated_at = EXCLUDED.updated_at
	`, status.EpisodeID, status.State, status.Reason, payload, status.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}
