package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q, err := NewQueue(context.Background(), Config{Client: client, Consumer: "test-worker"})
	require.NoError(t, err)
	return q, mr
}

func TestNewQueue(t *testing.T) {
	_, err := NewQueue(context.Background(), Config{})
	assert.Error(t, err)

	q, mr := setupTestQueue(t)
	assert.True(t, mr.Exists(taskStream))

	// Creating a second queue on the same group is fine
	_, err = NewQueue(context.Background(), Config{Client: q.client, Consumer: "other"})
	assert.NoError(t, err)
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessEpisodeTask("ep1")
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "ep1", got.EpisodeID())
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ProcessingCount)
	assert.Equal(t, int64(0), stats.PendingCount)

	require.NoError(t, q.Ack(ctx, task.ID))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ProcessingCount)
	assert.Equal(t, int64(1), stats.CompletedCount)
}

func TestQueue_DequeueWithTimeout_Empty(t *testing.T) {
	q, _ := setupTestQueue(t)

	got, err := q.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_Dequeue_Cancelled(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_NackFailsSingleAttemptTask(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessEpisodeTask("ep1")
	require.NoError(t, q.Enqueue(ctx, task))
	_, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, task.ID, "pipeline crashed"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "pipeline crashed", stored.Error)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FailedCount)
}

func TestQueue_NackSchedulesRetry(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewTask(domain.TaskTypeProcessEpisode, map[string]string{"episode_id": "ep1"})
	require.NoError(t, q.Enqueue(ctx, task))
	_, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, task.ID, "flaky"))

	members, err := mr.ZMembers(scheduledTasks)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, members)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
}

func TestQueue_PromotesDueScheduledTask(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessEpisodeTask("later")
	task.ScheduledFor = time.Now().Add(100 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, task))

	time.Sleep(150 * time.Millisecond)

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "later", got.EpisodeID())
}

func TestQueue_GetTask_NotFound(t *testing.T) {
	q, _ := setupTestQueue(t)

	_, err := q.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, q.Ack(context.Background(), "missing"), domain.ErrNotFound)
}

func TestQueue_DropsMessageWithoutTask(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	task := domain.NewProcessEpisodeTask("gone")
	require.NoError(t, q.Enqueue(ctx, task))
	mr.Del(taskKeyPrefix + task.ID)

	got, err := q.DequeueWithTimeout(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_Ping(t *testing.T) {
	q, _ := setupTestQueue(t)
	assert.NoError(t, q.Ping(context.Background()))
	assert.NoError(t, q.Close())
}
