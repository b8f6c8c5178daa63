package domain

import (
	"time"

	"github.com/google/uuid"
)

// Retry policy shared by every queue backend
const (
	DefaultMaxAttempts = 3
	maxRetryBackoff    = 5 * time.Minute
)

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeProcessEpisode runs the episode pipeline for one episode
	TaskTypeProcessEpisode TaskType = "process_episode"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a unit of background work. Queue backends persist it and drive
// its status through Mark* and Settle.
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For process_episode: {"episode_id": "..."}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for retries)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a pending task that is due immediately
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           "task-" + uuid.NewString(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewProcessEpisodeTask creates a task that runs the pipeline for an episode.
// A crashed pipeline is re-triggered from scratch, so a single attempt is
// the default; the cache check makes a repeat run cheap once it succeeded.
func NewProcessEpisodeTask(episodeID string) *Task {
	t := NewTask(TaskTypeProcessEpisode, map[string]string{
		"episode_id": episodeID,
	})
	t.MaxAttempts = 1
	return t
}

// EpisodeID extracts the episode_id from the payload
func (t *Task) EpisodeID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["episode_id"]
}

func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady reports a pending task whose scheduled time has passed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing claims the task and counts the attempt
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

func (t *Task) MarkFailed(err string) {
	t.Status = TaskStatusFailed
	t.UpdatedAt = time.Now()
	t.Error = err
}

// Settle records a failed attempt. The task goes back to pending with a
// backoff while attempts remain, otherwise it fails for good. It returns
// true when the task will run again.
func (t *Task) Settle(reason string) bool {
	if t.CanRetry() {
		t.Retry(reason)
		return true
	}
	t.MarkFailed(reason)
	return false
}

// Retry puts the task back to pending, due after RetryBackoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err
	t.ScheduledFor = now.Add(RetryBackoff(t.Attempts))
}

// RetryBackoff doubles from one second per attempt made, capped at five
// minutes.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 20 {
		return maxRetryBackoff
	}
	return min(time.Duration(1<<attempts)*time.Second, maxRetryBackoff)
}
