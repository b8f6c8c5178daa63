//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

func TestInitSchema_Idempotent(t *testing.T) {
	require.NoError(t, testDB.InitSchema(context.Background()))
}

func TestStatusStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewStatusStore(testDB)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	status := domain.NewEpisodeStatus("ep-status", domain.EpisodeProcessing)
	require.NoError(t, store.Save(ctx, status))

	got, err := store.Get(ctx, "ep-status")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeProcessing, got.State)
	assert.Empty(t, got.Reason)
	assert.Nil(t, got.Failures)
	assert.WithinDuration(t, status.UpdatedAt, got.UpdatedAt, time.Millisecond)

	ready := domain.NewEpisodeStatus("ep-status", domain.EpisodeReady)
	ready.Failures = []domain.ItemFailure{{Stage: domain.StageAudio, Index: 3, Error: "tts timeout"}}
	require.NoError(t, store.Save(ctx, ready))

	got, err = store.Get(ctx, "ep-status")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeReady, got.State)
	assert.Equal(t, ready.Failures, got.Failures)
}

func TestStatusStore_SaveRejectsMissingID(t *testing.T) {
	store := NewStatusStore(testDB)
	err := store.Save(context.Background(), &domain.EpisodeStatus{State: domain.EpisodePending})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_ReplaceLoad(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore(testDB)

	_, err := store.Load(ctx, "ep-vec")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := []driven.VectorRecord{
		{Chunk: domain.Chunk{Position: 1, Content: "second"}, Embedding: []float32{0, 1}},
		{Chunk: domain.Chunk{Position: 0, Content: "first"}, Embedding: []float32{1, 0}},
	}
	require.NoError(t, store.Replace(ctx, "ep-vec", first))

	got, err := store.Load(ctx, "ep-vec")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Chunk.Content)
	assert.Equal(t, []float32{1, 0}, got[0].Embedding)
	assert.Equal(t, 1, got[1].Chunk.Position)

	require.NoError(t, store.Replace(ctx, "ep-vec", []driven.VectorRecord{
		{Chunk: domain.Chunk{Position: 0, Content: "only"}, Embedding: []float32{0.5, 0.5}},
	}))
	got, err = store.Load(ctx, "ep-vec")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Chunk.Content)
}

func TestAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	a := NewAdvisoryLock(testDB)
	b := NewAdvisoryLock(testDB)

	ok, err := a.Acquire(ctx, "episode:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Acquire(ctx, "episode:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "locks are not reentrant")

	ok, err = b.Acquire(ctx, "episode:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Extend(ctx, "episode:1", time.Minute))
	assert.Error(t, b.Extend(ctx, "episode:1", time.Minute))

	require.NoError(t, a.Release(ctx, "episode:1"))
	require.NoError(t, a.Release(ctx, "episode:1"))

	ok, err = b.Acquire(ctx, "episode:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, "episode:1"))

	require.NoError(t, a.Ping(ctx))
}

func TestLockKey_Stable(t *testing.T) {
	assert.Equal(t, lockKey("episode:1"), lockKey("episode:1"))
	assert.NotEqual(t, lockKey("episode:1"), lockKey("episode:2"))
}
