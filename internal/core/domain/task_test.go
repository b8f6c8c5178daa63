package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewTask_UniqueIDs(t *testing.T) {
	a := NewTask(TaskTypeProcessEpisode, nil)
	b := NewTask(TaskTypeProcessEpisode, nil)

	if a.ID == b.ID {
		t.Error("expected unique IDs")
	}
	if !strings.HasPrefix(a.ID, "task-") {
		t.Errorf("expected task- prefix, got %q", a.ID)
	}
	// the postgres id column is VARCHAR(64)
	if len(a.ID) > 64 {
		t.Errorf("id too long: %d", len(a.ID))
	}
}

func TestTask_Settle(t *testing.T) {
	task := NewTask(TaskTypeProcessEpisode, nil)
	task.MaxAttempts = 2

	task.MarkProcessing()
	if !task.Settle("boom") {
		t.Fatal("first failure should be retried")
	}
	if task.Status != TaskStatusPending || task.Error != "boom" {
		t.Errorf("expected pending with error, got %s %q", task.Status, task.Error)
	}
	if !task.ScheduledFor.After(time.Now()) {
		t.Error("retry should be scheduled in the future")
	}

	task.MarkProcessing()
	if task.Settle("boom again") {
		t.Fatal("last attempt should not be retried")
	}
	if task.Status != TaskStatusFailed || task.Error != "boom again" {
		t.Errorf("expected failed, got %s %q", task.Status, task.Error)
	}
}

func TestNewProcessEpisodeTask_SingleAttempt(t *testing.T) {
	task := NewProcessEpisodeTask("ep-1")
	task.MarkProcessing()

	if task.Settle("pipeline crashed") {
		t.Error("episode tasks should not be retried")
	}
	if task.EpisodeID() != "ep-1" {
		t.Errorf("expected ep-1, got %q", task.EpisodeID())
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeProcessEpisode, map[string]string{"key": "value"})

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeProcessEpisode {
		t.Errorf("expected type %s, got %s", TaskTypeProcessEpisode, task.Type)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.ScheduledFor.IsZero() {
		t.Error("expected ScheduledFor to be set")
	}
}

func TestNewProcessEpisodeTask(t *testing.T) {
	task := NewProcessEpisodeTask("ep-1")

	if task.EpisodeID() != "ep-1" {
		t.Errorf("expected episode ID ep-1, got %s", task.EpisodeID())
	}
	if task.MaxAttempts != 1 {
		t.Errorf("expected max attempts 1, got %d", task.MaxAttempts)
	}
}

func TestTask_EpisodeID_NilPayload(t *testing.T) {
	task := &Task{}
	if task.EpisodeID() != "" {
		t.Error("expected empty episode ID for nil payload")
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask(TaskTypeProcessEpisode, nil)

	if !task.IsReady() {
		t.Error("new task should be ready")
	}

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing {
		t.Errorf("expected processing, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", task.Attempts)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}

	task.Retry("boom")
	if task.Status != TaskStatusPending {
		t.Errorf("expected pending after retry, got %s", task.Status)
	}
	if task.Error != "boom" {
		t.Errorf("expected error to be recorded, got %q", task.Error)
	}
	if !task.ScheduledFor.After(time.Now()) {
		t.Error("expected retry to be scheduled in the future")
	}
	if task.IsReady() {
		t.Error("task scheduled in the future should not be ready")
	}

	task.MarkProcessing()
	task.MarkCompleted()
	if task.Status != TaskStatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	if task.Error != "" {
		t.Error("expected error to be cleared")
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestTask_CanRetry(t *testing.T) {
	task := NewTask(TaskTypeProcessEpisode, nil)
	task.MaxAttempts = 2

	task.MarkProcessing()
	if !task.CanRetry() {
		t.Error("expected retry after first attempt")
	}
	task.MarkProcessing()
	if task.CanRetry() {
		t.Error("expected no retry after max attempts")
	}

	task.MarkFailed("gave up")
	if task.Status != TaskStatusFailed {
		t.Errorf("expected failed, got %s", task.Status)
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{9, 5 * time.Minute},
		{64, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := RetryBackoff(tt.attempts); got != tt.want {
			t.Errorf("RetryBackoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
