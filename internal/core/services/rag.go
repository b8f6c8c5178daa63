package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

const (
	ragSystemPrompt = "You are a helpful school tutor. Answer using simple words. " +
		"Use ONLY the provided context from the textbook. If you don't know, say you are not sure."
	ragUserPrompt = "CONTEXT:\n%s\n\nQUESTION: %s\n\nAnswer clearly in 3-6 sentences."

	contextSeparator = "\n\n---\n\n"

	// DefaultTopK is the number of chunks retrieved per question
	DefaultTopK = 5
)

// RAGService answers questions from an episode's retrieval index.
type RAGService struct {
	index       driven.RetrievalIndex
	llm         driven.LLMService
	store       driven.EpisodeStore
	topK        int
	callTimeout time.Duration
	logger      *slog.Logger
}

// RAGServiceConfig holds dependencies for RAGService.
type RAGServiceConfig struct {
	Index driven.RetrievalIndex
	LLM   driven.LLMService

	// Store is used to read the manifest for timestamp-anchored questions
	// and to tell unknown episodes from unindexed ones.
	Store driven.EpisodeStore

	TopK        int
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// NewRAGService creates a new RAG service.
func NewRAGService(cfg RAGServiceConfig) *RAGService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RAGService{
		index:       cfg.Index,
		llm:         cfg.LLM,
		store:       cfg.Store,
		topK:        topK,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
}

// Answer retrieves the chunks most relevant to the question and asks the
// LLM to answer from them only. With a timestamp and a finished manifest,
// retrieval is limited to chunks already played by that point.
func (s *RAGService) Answer(ctx context.Context, episodeID, question string, timestamp *float64) (string, []string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	opts := driven.QueryOptions{TopK: s.topK, MaxPosition: -1}
	if timestamp != nil {
		opts.MaxPosition = s.chunkBound(ctx, episodeID, *timestamp)
	}

	hits, err := s.index.Query(ctx, episodeID, question, opts)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotReady) {
			return "", nil, s.missingIndex(ctx, episodeID)
		}
		return "", nil, fmt.Errorf("%w: retrieval: %v", domain.ErrServiceUnavailable, err)
	}

	contextChunks := make([]string, len(hits))
	for i, h := range hits {
		contextChunks[i] = h.Content
	}

	callCtx := ctx
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(ragUserPrompt, strings.Join(contextChunks, contextSeparator), question)
	answer, err := s.llm.ChatCompletion(callCtx, ragSystemPrompt, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("%w: answer generation: %v", domain.ErrServiceUnavailable, err)
	}

	s.logger.Debug("question answered",
		"episode_id", episodeID,
		"context_chunks", len(contextChunks),
		"windowed", opts.MaxPosition >= 0,
	)
	return strings.TrimSpace(answer), contextChunks, nil
}

// Chat answers a free-form message; retrieved context is not returned.
func (s *RAGService) Chat(ctx context.Context, episodeID, message string) (string, error) {
	answer, _, err := s.Answer(ctx, episodeID, message, nil)
	return answer, err
}

// chunkBound returns the last chunk position heard by timestamp t,
// or -1 (unbounded) when no manifest is available.
func (s *RAGService) chunkBound(ctx context.Context, episodeID string, t float64) int {
	if s.store == nil {
		return -1
	}
	manifest, err := s.store.ReadManifest(ctx, episodeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to read manifest for timestamp", "episode_id", episodeID, "error", err)
		}
		return -1
	}
	bound, ok := manifest.ChunkBound(t)
	if !ok {
		// Before the first segment: only the opening chunk has been heard
		return 0
	}
	return bound
}

func (s *RAGService) missingIndex(ctx context.Context, episodeID string) error {
	if s.store != nil {
		exists, err := s.store.Exists(ctx, episodeID)
		if err == nil && !exists {
			return fmt.Errorf("episode %s: %w", episodeID, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("episode %s: %w", episodeID, domain.ErrIndexNotReady)
}
