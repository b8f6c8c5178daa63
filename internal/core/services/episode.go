package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
	"github.com/custodia-labs/podtutor/internal/core/ports/driving"
)

// Verify interface compliance
var (
	_ driving.EpisodeService  = (*EpisodeService)(nil)
	_ driving.QuestionService = (*EpisodeService)(nil)
)

// SupportedExtensions lists the document types accepted for upload
var SupportedExtensions = []string{".pdf", ".txt", ".md"}

// EpisodeService is the entry point for uploads, status and questions.
type EpisodeService struct {
	store       driven.EpisodeStore
	status      driven.StatusStore
	queue       driven.TaskQueue
	rag         *RAGService
	speech      driven.SpeechSynthesizer
	speechLimit time.Duration
	maxUpload   int64
	logger      *slog.Logger
}

// EpisodeServiceConfig holds dependencies for EpisodeService.
type EpisodeServiceConfig struct {
	Store  driven.EpisodeStore
	Status driven.StatusStore
	Queue  driven.TaskQueue
	RAG    *RAGService

	// Speech renders spoken answers. Optional; answers are text-only without it.
	Speech        driven.SpeechSynthesizer
	SpeechTimeout time.Duration

	// MaxUploadBytes rejects larger documents (0 = unlimited)
	MaxUploadBytes int64

	Logger *slog.Logger
}

// NewEpisodeService creates a new episode service.
func NewEpisodeService(cfg EpisodeServiceConfig) *EpisodeService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EpisodeService{
		store:       cfg.Store,
		status:      cfg.Status,
		queue:       cfg.Queue,
		rag:         cfg.RAG,
		speech:      cfg.Speech,
		speechLimit: cfg.SpeechTimeout,
		maxUpload:   cfg.MaxUploadBytes,
		logger:      logger,
	}
}

// Submit validates and stores the document, records a pending status and
// queues the pipeline task.
func (s *EpisodeService) Submit(ctx context.Context, filename string, content []byte) (*domain.SubmitResult, error) {
	if err := s.validateUpload(filename, content); err != nil {
		return nil, err
	}

	episodeID := uuid.NewString()
	if err := s.store.SaveSource(ctx, episodeID, filename, content); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}
	if err := s.status.Save(ctx, domain.NewEpisodeStatus(episodeID, domain.EpisodePending)); err != nil {
		return nil, fmt.Errorf("save status: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.NewProcessEpisodeTask(episodeID)); err != nil {
		if saveErr := s.status.Save(context.WithoutCancel(ctx), domain.FailedStatus(episodeID, "could not schedule processing")); saveErr != nil {
			s.logger.Warn("failed to update status to failed", "episode_id", episodeID, "error", saveErr)
		}
		return nil, fmt.Errorf("enqueue episode task: %w", err)
	}

	s.logger.Info("episode submitted", "episode_id", episodeID, "filename", filename, "bytes", len(content))
	return &domain.SubmitResult{EpisodeID: episodeID, Status: domain.EpisodeProcessing}, nil
}

func (s *EpisodeService) validateUpload(filename string, content []byte) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if s.maxUpload > 0 && int64(len(content)) > s.maxUpload {
		return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, s.maxUpload)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, ext)
}

// Status reports ready whenever a manifest exists; otherwise the stored record.
func (s *EpisodeService) Status(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error) {
	ready, err := s.store.ManifestExists(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("check manifest: %w", err)
	}

	status, err := s.status.Get(ctx, episodeID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get status: %w", err)
	}

	if ready {
		if status == nil || status.State != domain.EpisodeReady {
			return domain.NewEpisodeStatus(episodeID, domain.EpisodeReady), nil
		}
		return status, nil
	}
	if status == nil {
		// The record may have expired while the source is still stored
		known, err := s.store.Exists(ctx, episodeID)
		if err != nil {
			return nil, fmt.Errorf("check episode: %w", err)
		}
		if !known {
			return nil, fmt.Errorf("episode %s: %w", episodeID, domain.ErrNotFound)
		}
		return domain.NewEpisodeStatus(episodeID, domain.EpisodePending), nil
	}
	return status, nil
}

// Manifest returns the finished manifest.
func (s *EpisodeService) Manifest(ctx context.Context, episodeID string) (*domain.Manifest, error) {
	manifest, err := s.store.ReadManifest(ctx, episodeID)
	if err == nil {
		return manifest, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	exists, existsErr := s.store.Exists(ctx, episodeID)
	if existsErr != nil {
		return nil, fmt.Errorf("check episode: %w", existsErr)
	}
	if !exists {
		return nil, fmt.Errorf("episode %s: %w", episodeID, domain.ErrNotFound)
	}
	return nil, fmt.Errorf("episode %s: %w", episodeID, domain.ErrNotReady)
}

// Reprocess queues another pipeline run. A finished episode is left as is.
func (s *EpisodeService) Reprocess(ctx context.Context, episodeID string) error {
	exists, err := s.store.Exists(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("check episode: %w", err)
	}
	if !exists {
		return fmt.Errorf("episode %s: %w", episodeID, domain.ErrNotFound)
	}
	if err := s.queue.Enqueue(ctx, domain.NewProcessEpisodeTask(episodeID)); err != nil {
		return fmt.Errorf("enqueue episode task: %w", err)
	}
	s.logger.Info("episode reprocess requested", "episode_id", episodeID)
	return nil
}

// Ask answers a question and renders the answer as speech. A speech failure
// leaves AudioURL empty and does not fail the request.
func (s *EpisodeService) Ask(ctx context.Context, episodeID, question string, timestamp *float64) (*domain.Answer, error) {
	text, contextChunks, err := s.rag.Answer(ctx, episodeID, question, timestamp)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{Text: text, Context: contextChunks}
	if answer.Context == nil {
		answer.Context = []string{}
	}
	if s.speech == nil {
		return answer, nil
	}

	url, err := s.speakAnswer(ctx, episodeID, text)
	if err != nil {
		s.logger.Warn("answer speech synthesis failed", "episode_id", episodeID, "error", err)
		return answer, nil
	}
	answer.AudioURL = url
	return answer, nil
}

func (s *EpisodeService) speakAnswer(ctx context.Context, episodeID, text string) (string, error) {
	if s.speechLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.speechLimit)
		defer cancel()
	}
	audio, err := s.speech.Synthesize(ctx, truncateRunes(text, DefaultMaxSpeechChars), domain.DefaultVoice)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("question_%s.mp3", strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s.store.WriteAudio(ctx, episodeID, name, audio)
}

// Chat answers a message with text only.
func (s *EpisodeService) Chat(ctx context.Context, episodeID, message string) (string, error) {
	return s.rag.Chat(ctx, episodeID, message)
}
