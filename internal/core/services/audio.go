package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
	"github.com/custodia-labs/podtutor/internal/stageexec"
)

const (
	// PauseMarker is prepended to a segment whose speaker differs from the previous one
	PauseMarker = "... "

	// DefaultMaxSpeechChars bounds the text sent to speech synthesis
	DefaultMaxSpeechChars = 1200

	// MinSegmentDuration is the floor for an estimated clip duration, in seconds
	MinSegmentDuration = 2.0

	// WordsPerSecond is the assumed speaking rate
	WordsPerSecond = 2.5
)

// AudioSynthesizer turns dialogue segments into audio clips, one at a time.
type AudioSynthesizer struct {
	speech      driven.SpeechSynthesizer
	store       driven.EpisodeStore
	callTimeout time.Duration
	maxChars    int
	logger      *slog.Logger
}

// AudioSynthesizerConfig holds dependencies for AudioSynthesizer.
type AudioSynthesizerConfig struct {
	Speech      driven.SpeechSynthesizer
	Store       driven.EpisodeStore
	CallTimeout time.Duration
	MaxChars    int
	Logger      *slog.Logger
}

// NewAudioSynthesizer creates a new audio synthesizer.
func NewAudioSynthesizer(cfg AudioSynthesizerConfig) *AudioSynthesizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxSpeechChars
	}
	return &AudioSynthesizer{
		speech:      cfg.Speech,
		store:       cfg.Store,
		callTimeout: cfg.CallTimeout,
		maxChars:    maxChars,
		logger:      logger,
	}
}

// Synthesize renders each segment to seg_<i>.mp3 in input order.
// Segment ids are the input indices; failed segments are dropped without
// renumbering the rest.
func (a *AudioSynthesizer) Synthesize(ctx context.Context, episodeID string, segments []domain.DialogueSegment) ([]domain.AudioResult, []domain.ItemFailure) {
	out := stageexec.Run(ctx, segments, stageexec.Options{
		Workers:     1,
		ItemTimeout: a.callTimeout,
	}, func(ctx context.Context, i int, seg domain.DialogueSegment) (domain.AudioResult, error) {
		text := seg.Text
		if i > 0 && !strings.EqualFold(segments[i-1].Speaker, seg.Speaker) {
			text = PauseMarker + text
		}

		audio, err := a.speech.Synthesize(ctx, truncateRunes(text, a.maxChars), domain.VoiceFor(seg.Speaker))
		if err != nil {
			return domain.AudioResult{}, err
		}
		url, err := a.store.WriteAudio(ctx, episodeID, domain.SegmentFileName(i), audio)
		if err != nil {
			return domain.AudioResult{}, err
		}

		return domain.AudioResult{
			SegmentID:  i,
			Speaker:    seg.Speaker,
			Text:       seg.Text,
			AudioURL:   url,
			Duration:   EstimateDuration(seg.Text),
			ChunkIndex: seg.ChunkIndex,
		}, nil
	})

	failures := make([]domain.ItemFailure, 0, len(out.Failures))
	for _, f := range out.Failures {
		a.logger.Warn("audio synthesis failed for segment", "episode_id", episodeID, "segment", f.Index, "error", f.Err)
		failures = append(failures, domain.ItemFailure{
			Stage: domain.StageAudio,
			Index: f.Index,
			Error: f.Err.Error(),
		})
	}
	return out.Values(), failures
}

// EstimateDuration estimates speaking time in seconds from the word count.
func EstimateDuration(text string) float64 {
	return max(MinSegmentDuration, float64(len(strings.Fields(text)))/WordsPerSecond)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
