package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore keeps chunk embeddings as REAL[] rows in chunk_vectors
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a PostgreSQL-backed vector store
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// Replace deletes and reinserts the episode's rows in one transaction
func (s *VectorStore) Replace(ctx context.Context, episodeID string, records []driven.VectorRecord) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE episode_id = $1`, episodeID); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunk_vectors (episode_id, position, content, embedding)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, episodeID, r.Chunk.Position, r.Chunk.Content, pq.Array(r.Embedding)); err != nil {
				return fmt.Errorf("insert vector %d: %w", r.Chunk.Position, err)
			}
		}
		return nil
	})
}

// Load returns the episode's rows ordered by position
func (s *VectorStore) Load(ctx context.Context, episodeID string) ([]driven.VectorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, content, embedding
		FROM chunk_vectors
		WHERE episode_id = $1
		ORDER BY position
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var records []driven.VectorRecord
	for rows.Next() {
		var (
			rec       driven.VectorRecord
			embedding []float32
		)
		if err := rows.Scan(&rec.Chunk.Position, &rec.Chunk.Content, pq.Array(&embedding)); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		rec.Embedding = embedding
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrNotFound
	}
	return records, nil
}
