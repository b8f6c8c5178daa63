// Package redis implements TaskQueue on Redis Streams with a consumer
// group. Delayed retries wait in a sorted set until due.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

const (
	taskStream     = "podtutor:tasks"
	taskGroup      = "podtutor:workers"
	scheduledTasks = "podtutor:tasks:scheduled"
	messageIDs     = "podtutor:tasks:msg"
	completedCount = "podtutor:tasks:completed"
	failedCount    = "podtutor:tasks:failed"
	taskKeyPrefix  = "podtutor:task:"

	// DefaultClaimTimeout is how long a delivered message may stay
	// unacknowledged before another consumer takes it over
	DefaultClaimTimeout = 15 * time.Minute

	defaultTaskTTL = 24 * time.Hour

	// Dequeue polls in slices so cancellation is observed
	blockSlice = 5
)

var _ driven.TaskQueue = (*Queue)(nil)

// Config holds queue configuration
type Config struct {
	Client redis.UniversalClient

	// Consumer must be unique per worker process (default hostname-pid)
	Consumer string

	ClaimTimeout time.Duration

	// TaskTTL bounds how long task records are kept
	TaskTTL time.Duration

	Logger *slog.Logger
}

// Queue implements TaskQueue using Redis Streams
type Queue struct {
	client       redis.UniversalClient
	consumer     string
	claimTimeout time.Duration
	taskTTL      time.Duration
	logger       *slog.Logger
}

// NewQueue creates the consumer group if it does not exist
func NewQueue(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Consumer == "" {
		hostname, _ := os.Hostname()
		cfg.Consumer = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = DefaultClaimTimeout
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = defaultTaskTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	err := cfg.Client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Queue{
		client:       cfg.Client,
		consumer:     cfg.Consumer,
		claimTimeout: cfg.ClaimTimeout,
		taskTTL:      cfg.TaskTTL,
		logger:       cfg.Logger.With("component", "redis_queue", "consumer", cfg.Consumer),
	}, nil
}

// Enqueue stores the task and either streams it or schedules it
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without id", domain.ErrInvalidInput)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, q.taskTTL)
		if task.ScheduledFor.After(time.Now()) {
			pipe.ZAdd(ctx, scheduledTasks, redis.Z{
				Score:  float64(task.ScheduledFor.UnixMilli()),
				Member: task.ID,
			})
		} else {
			pipe.XAdd(ctx, streamEntry(task))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

func streamEntry(task *domain.Task) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]any{
			"task_id": task.ID,
			"type":    string(task.Type),
		},
	}
}

// Dequeue blocks until a task arrives or ctx is done
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		task, err := q.DequeueWithTimeout(ctx, blockSlice)
		if err != nil || task != nil {
			return task, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// DequeueWithTimeout returns nil, nil when nothing arrives within timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if err := q.promoteScheduled(ctx); err != nil {
		q.logger.Warn("failed to promote scheduled tasks", "error", err)
	}

	if task, err := q.claimAbandoned(ctx); err != nil {
		q.logger.Warn("failed to claim abandoned tasks", "error", err)
	} else if task != nil {
		return task, nil
	}

	if timeout <= 0 {
		timeout = blockSlice
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumer,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    time.Duration(timeout) * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.start(ctx, streams[0].Messages[0])
}

// start loads the task behind a stream message and marks it processing.
// Messages whose task record is gone are dropped.
func (q *Queue) start(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)
	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		q.logger.Warn("dropping stream message without task", "message_id", msg.ID, "task_id", taskID)
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		q.client.XDel(ctx, taskStream, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.MarkProcessing()
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, q.taskTTL)
		pipe.HSet(ctx, messageIDs, task.ID, msg.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark task processing: %w", err)
	}
	return task, nil
}

// Ack acknowledges the stream message and marks the task completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.MarkCompleted()

	return q.finish(ctx, task, func(pipe redis.Pipeliner) {
		pipe.Incr(ctx, completedCount)
	})
}

// Nack retries through the scheduled set until MaxAttempts, then fails the task
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Settle(reason) {
		return q.finish(ctx, task, func(pipe redis.Pipeliner) {
			pipe.ZAdd(ctx, scheduledTasks, redis.Z{
				Score:  float64(task.ScheduledFor.UnixMilli()),
				Member: task.ID,
			})
		})
	}

	return q.finish(ctx, task, func(pipe redis.Pipeliner) {
		pipe.Incr(ctx, failedCount)
	})
}

// finish acknowledges the delivered message and stores the task
func (q *Queue) finish(ctx context.Context, task *domain.Task, extra func(redis.Pipeliner)) error {
	msgID, err := q.client.HGet(ctx, messageIDs, task.ID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get message id: %w", err)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if msgID != "" {
			pipe.XAck(ctx, taskStream, taskGroup, msgID)
			pipe.XDel(ctx, taskStream, msgID)
		}
		pipe.HDel(ctx, messageIDs, task.ID)
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, q.taskTTL)
		extra(pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns domain.ErrNotFound for unknown or expired tasks
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// Stats reads stream length, the scheduled set, the group's pending
// entries and the outcome counters
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	var (
		streamLen *redis.IntCmd
		scheduled *redis.IntCmd
		completed *redis.StringCmd
		failed    *redis.StringCmd
	)
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		streamLen = pipe.XLen(ctx, taskStream)
		scheduled = pipe.ZCard(ctx, scheduledTasks)
		completed = pipe.Get(ctx, completedCount)
		failed = pipe.Get(ctx, failedCount)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	pending, err := q.client.XPending(ctx, taskStream, taskGroup).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pending entries: %w", err)
	}
	if pending != nil {
		stats.ProcessingCount = pending.Count
	}

	// The stream holds both undelivered and in-flight entries
	stats.PendingCount = streamLen.Val() - stats.ProcessingCount + scheduled.Val()
	stats.CompletedCount = counter(completed)
	stats.FailedCount = counter(failed)
	return stats, nil
}

func counter(cmd *redis.StringCmd) int64 {
	n, _ := strconv.ParseInt(cmd.Val(), 10, 64)
	return n
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared and closed by its owner
func (q *Queue) Close() error {
	return nil
}

// promoteScheduled streams every scheduled task that is due
func (q *Queue) promoteScheduled(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	for _, taskID := range due {
		// ZRem guards against two consumers promoting the same task
		removed, err := q.client.ZRem(ctx, scheduledTasks, taskID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		if err := q.client.XAdd(ctx, streamEntry(task)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandoned takes over one message idle longer than the claim timeout
func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Task, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   taskStream,
		Group:    taskGroup,
		Consumer: q.consumer,
		MinIdle:  q.claimTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	q.logger.Info("claimed abandoned task", "message_id", msgs[0].ID)
	return q.start(ctx, msgs[0])
}
