package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

func TestStatusStore_SaveGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewStatusStore(client, 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "ep1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	status := domain.NewEpisodeStatus("ep1", domain.EpisodeReady)
	status.Failures = []domain.ItemFailure{{Stage: domain.StageScript, Index: 1, Error: "timeout"}}
	require.NoError(t, store.Save(ctx, status))

	assert.True(t, mr.Exists("podtutor:status:ep1"))
	assert.Equal(t, time.Duration(0), mr.TTL("podtutor:status:ep1"))

	got, err := store.Get(ctx, "ep1")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeReady, got.State)
	assert.Equal(t, status.Failures, got.Failures)

	// Save replaces the record
	require.NoError(t, store.Save(ctx, domain.FailedStatus("ep1", "boom")))
	got, err = store.Get(ctx, "ep1")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeFailed, got.State)
	assert.Equal(t, "boom", got.Reason)
}

func TestStatusStore_Retention(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewStatusStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewEpisodeStatus("ep1", domain.EpisodeReady)))
	assert.Equal(t, time.Hour, mr.TTL("podtutor:status:ep1"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "ep1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusStore_InFlightRecordsDoNotExpire(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewStatusStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewEpisodeStatus("ep1", domain.EpisodePending)))
	require.NoError(t, store.Save(ctx, domain.NewEpisodeStatus("ep2", domain.EpisodeProcessing)))
	assert.Equal(t, time.Duration(0), mr.TTL("podtutor:status:ep1"))
	assert.Equal(t, time.Duration(0), mr.TTL("podtutor:status:ep2"))

	mr.FastForward(2 * time.Hour)
	got, err := store.Get(ctx, "ep1")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodePending, got.State)

	// Moving to a terminal state starts the retention clock
	require.NoError(t, store.Save(ctx, domain.FailedStatus("ep2", "boom")))
	assert.Equal(t, time.Hour, mr.TTL("podtutor:status:ep2"))
}

func TestStatusStore_Errors(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewStatusStore(client, 0)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, nil), domain.ErrInvalidInput)

	require.NoError(t, mr.Set("podtutor:status:bad", "not json"))
	_, err := store.Get(ctx, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorStore_ReplaceLoad(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewVectorStore(client)
	ctx := context.Background()

	_, err := store.Load(ctx, "ep1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	records := []driven.VectorRecord{
		{Chunk: domain.Chunk{Position: 2, Content: "third"}, Embedding: []float32{0.5, 0.25}},
		{Chunk: domain.Chunk{Position: 0, Content: "first"}, Embedding: []float32{1, 0}},
		{Chunk: domain.Chunk{Position: 1, Content: "second"}, Embedding: []float32{0, 1}},
	}
	require.NoError(t, store.Replace(ctx, "ep1", records))

	got, err := store.Load(ctx, "ep1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Chunk.Content)
	assert.Equal(t, "third", got[2].Chunk.Content)
	assert.Equal(t, []float32{0.5, 0.25}, got[2].Embedding)

	// Replace drops the previous set
	require.NoError(t, store.Replace(ctx, "ep1", records[:1]))
	got, err = store.Load(ctx, "ep1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Chunk.Position)
}
