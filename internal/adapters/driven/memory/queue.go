// Package memory provides single-process implementations of the driven
// ports. State is lost on restart; use redis or postgres for durability.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*TaskQueue)(nil)

var errQueueClosed = errors.New("task queue closed")

// TaskQueue is an in-process priority queue with delayed retries
type TaskQueue struct {
	mu     sync.Mutex
	tasks  map[string]*domain.Task
	order  []string
	notify chan struct{}
	done   chan struct{}
	closed bool
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:  make(map[string]*domain.Task),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue adds a task
func (q *TaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without id", domain.ErrInvalidInput)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	cp := *task
	if _, exists := q.tasks[cp.ID]; !exists {
		q.order = append(q.order, cp.ID)
	}
	q.tasks[cp.ID] = &cp
	q.mu.Unlock()

	q.wake()
	return nil
}

// Dequeue blocks until a task is ready or ctx is done
func (q *TaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		task, wait, err := q.next()
		if err != nil || task != nil {
			return task, err
		}

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		if wait > 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
		case <-q.done:
		case <-q.notify:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// DequeueWithTimeout returns nil, nil when nothing is ready within timeout seconds
func (q *TaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	task, err := q.Dequeue(waitCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	return task, err
}

// next claims the best ready task. When none is ready it returns the delay
// until the earliest scheduled retry, or zero if there is nothing to wait for.
func (q *TaskQueue) next() (*domain.Task, time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, 0, errQueueClosed
	}

	var (
		best     *domain.Task
		earliest time.Time
	)
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != domain.TaskStatusPending {
			continue
		}
		if !t.IsReady() {
			if earliest.IsZero() || t.ScheduledFor.Before(earliest) {
				earliest = t.ScheduledFor
			}
			continue
		}
		// Higher priority first, then FIFO
		if best == nil || t.Priority > best.Priority {
			best = t
		}
	}

	if best == nil {
		if earliest.IsZero() {
			return nil, 0, nil
		}
		return nil, time.Until(earliest) + time.Millisecond, nil
	}

	best.MarkProcessing()
	cp := *best
	return &cp, 0, nil
}

// Ack marks a task completed
func (q *TaskQueue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	t.MarkCompleted()
	return nil
}

// Nack retries with backoff until MaxAttempts, then marks the task failed
func (q *TaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	t, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return domain.ErrNotFound
	}
	t.Settle(reason)
	q.mu.Unlock()

	q.wake()
	return nil
}

// GetTask returns a copy of the task
func (q *TaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Stats counts tasks by status
func (q *TaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &driven.QueueStats{}
	for _, t := range q.tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (q *TaskQueue) Ping(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errQueueClosed
	}
	return nil
}

// Close wakes blocked consumers; later calls return an error
func (q *TaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

func (q *TaskQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
