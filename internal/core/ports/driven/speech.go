package driven

import (
	"context"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// SpeechSynthesizer turns text into encoded audio (MP3)
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice domain.VoiceParams) ([]byte, error)

	// Model returns the voice model name being used
	Model() string
}
