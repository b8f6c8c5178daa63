package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
	"github.com/custodia-labs/podtutor/internal/core/ports/driving"
)

var errWorkerStopped = errors.New("worker is not running")

// Worker processes tasks from the task queue.
// It runs the episode pipeline for each process_episode task.
type Worker struct {
	taskQueue driven.TaskQueue
	pipeline  driving.PipelineService
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	taskTimeout    time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Pipeline       driving.PipelineService
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	TaskTimeout    time.Duration // Upper bound for one task (0 = none)
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		pipeline:       cfg.Pipeline,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		taskTimeout:    cfg.TaskTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or ctx is cancelled. A task that has been
// dequeued always runs to completion; cancellation only stops new dequeues.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker and waits for in-flight tasks.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second): // Back off on error
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(context.WithoutCancel(ctx), task, logger)
	}
}

// settleTimeout bounds an Ack or Nack issued after a task finishes
const settleTimeout = 10 * time.Second

// handler returns the runner for a task type
func (w *Worker) handler(taskType domain.TaskType) (func(context.Context, *domain.Task) error, bool) {
	switch taskType {
	case domain.TaskTypeProcessEpisode:
		return w.handleProcessEpisode, true
	default:
		return nil, false
	}
}

// processTask runs one task and settles it on the queue. Episode failures
// are already recorded on the status record by the pipeline, so a Nack here
// only tells the queue whether to retry.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type)
	if id := task.EpisodeID(); id != "" {
		logger = logger.With("episode_id", id)
	}
	logger.Info("processing task", "attempt", task.Attempts, "max_attempts", task.MaxAttempts)

	runCtx := ctx
	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.taskTimeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	if run, ok := w.handler(task.Type); ok {
		err = run(runCtx, task)
	} else {
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}
	elapsed := time.Since(start)

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err != nil {
		logger.Error("task failed", "duration", elapsed, "error", err)
		if nackErr := w.taskQueue.Nack(settleCtx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", elapsed)
	if ackErr := w.taskQueue.Ack(settleCtx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) handleProcessEpisode(ctx context.Context, task *domain.Task) error {
	episodeID := task.EpisodeID()
	if episodeID == "" {
		return errors.New("episode_id not found in task payload")
	}
	return w.pipeline.Process(ctx, episodeID)
}

// Health describes whether the worker loop runs and its queue answers.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}

// Ping reports Health as an error, for readiness checks.
func (w *Worker) Ping(ctx context.Context) error {
	h := w.Health(ctx)
	switch {
	case !h.Running:
		return errWorkerStopped
	case !h.QueueHealth:
		return fmt.Errorf("task queue: %s", h.Error)
	}
	return nil
}
