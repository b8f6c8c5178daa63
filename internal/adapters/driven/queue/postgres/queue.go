// Package postgres implements TaskQueue on a PostgreSQL table using
// SELECT ... FOR UPDATE SKIP LOCKED, woken by LISTEN/NOTIFY when a
// listener is configured.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*Queue)(nil)

const (
	notifyChannel = "podtutor_tasks"

	// DefaultPollInterval bounds the wait between empty polls
	DefaultPollInterval = time.Second

	// DefaultStaleAfter returns processing tasks to pending when their
	// worker has not finished them in this long
	DefaultStaleAfter = 30 * time.Minute
)

const taskColumns = `id, type, payload, status, priority, attempts, max_attempts,
	error, created_at, updated_at, started_at, completed_at, scheduled_for`

// Config holds queue configuration
type Config struct {
	DB *sql.DB

	// ListenURL enables LISTEN/NOTIFY wake-ups when set
	ListenURL string

	PollInterval time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
}

// Queue implements TaskQueue on the tasks table
type Queue struct {
	db           *sql.DB
	listener     *pq.Listener
	pollInterval time.Duration
	staleAfter   time.Duration
	logger       *slog.Logger
}

// NewQueue expects the tasks table to exist (see postgres.DB.InitSchema)
func NewQueue(cfg Config) (*Queue, error) {
	if cfg.DB == nil {
		return nil, errors.New("database is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	q := &Queue{
		db:           cfg.DB,
		pollInterval: cfg.PollInterval,
		staleAfter:   cfg.StaleAfter,
		logger:       cfg.Logger.With("component", "postgres_queue"),
	}

	if cfg.ListenURL != "" {
		q.listener = pq.NewListener(cfg.ListenURL, time.Second, 30*time.Second,
			func(ev pq.ListenerEventType, err error) {
				if err != nil {
					q.logger.Warn("task listener event", "event", ev, "error", err)
				}
			})
		if err := q.listener.Listen(notifyChannel); err != nil {
			q.listener.Close()
			return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
		}
	}

	return q, nil
}

// Enqueue inserts the task and notifies listeners
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without id", domain.ErrInvalidInput)
	}

	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, type, payload, status, priority, attempts, max_attempts,
			error, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		task.ID, task.Type, payload, task.Status, task.Priority, task.Attempts,
		task.MaxAttempts, task.Error, task.CreatedAt, task.UpdatedAt, task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if _, err := q.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, task.ID); err != nil {
		q.logger.Warn("failed to notify task listeners", "task_id", task.ID, "error", err)
	}
	return nil
}

// Dequeue blocks until a task is claimed or ctx is done
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		task, err := q.claim(ctx)
		if err != nil || task != nil {
			return task, err
		}
		if err := q.wait(ctx, q.pollInterval); err != nil {
			return nil, err
		}
	}
}

// DequeueWithTimeout returns nil, nil when nothing is claimed within timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		task, err := q.claim(ctx)
		if err != nil || task != nil {
			return task, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if err := q.wait(ctx, min(remaining, q.pollInterval)); err != nil {
			return nil, err
		}
	}
}

// wait sleeps for d or until a notification arrives
func (q *Queue) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var notify <-chan *pq.Notification
	if q.listener != nil {
		notify = q.listener.Notify
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-notify:
	case <-timer.C:
	}
	return nil
}

// claim recovers stale tasks, then locks and starts the best ready one
func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	if err := q.recoverStale(ctx); err != nil {
		q.logger.Warn("failed to recover stale tasks", "error", err)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	task, err := scanTask(tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = $1 AND scheduled_for <= NOW()
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, domain.TaskStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}

	task.MarkProcessing()
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, started_at = $2, updated_at = $3, attempts = $4
		WHERE id = $5
	`, task.Status, task.StartedAt, task.UpdatedAt, task.Attempts, task.ID)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

// recoverStale returns abandoned processing tasks to pending
func (q *Queue) recoverStale(ctx context.Context) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, updated_at = NOW(), error = 'worker abandoned task'
		WHERE status = $2 AND started_at < $3 AND attempts < max_attempts
	`, domain.TaskStatusPending, domain.TaskStatusProcessing, time.Now().Add(-q.staleAfter))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		q.logger.Info("recovered stale tasks", "count", n)
	}
	return nil
}

// Ack marks a task completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	now := time.Now()
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, completed_at = $2, updated_at = $2, error = ''
		WHERE id = $3
	`, domain.TaskStatusCompleted, now, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res)
}

// Nack reschedules with backoff until MaxAttempts, then fails the task
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	task.Settle(reason)

	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
		WHERE id = $5
	`, task.Status, task.Error, task.UpdatedAt, task.ScheduledFor, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res)
}

// GetTask returns domain.ErrNotFound for unknown ids
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := scanTask(q.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1
	`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Stats counts tasks by status
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &driven.QueueStats{}
	for rows.Next() {
		var (
			status domain.TaskStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	return stats, rows.Err()
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close stops the listener; the pool is owned by the caller
func (q *Queue) Close() error {
	if q.listener != nil {
		return q.listener.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                   domain.Task
		payload                []byte
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID, &task.Type, &payload, &task.Status, &task.Priority,
		&task.Attempts, &task.MaxAttempts, &task.Error, &task.CreatedAt,
		&task.UpdatedAt, &startedAt, &completedAt, &task.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
