package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.SpeechSynthesizer = (*OpenAISpeech)(nil)

const defaultSpeechModel = "tts-1"

// Speed bounds accepted by the /audio/speech endpoint
const (
	minSpeechSpeed = 0.25
	maxSpeechSpeed = 4.0
)

// OpenAISpeech synthesizes MP3 audio through an OpenAI-compatible
// /audio/speech endpoint.
type OpenAISpeech struct {
	api   *openAIClient
	model string
}

// NewOpenAISpeech creates a speech synthesizer. The API key may be empty
// when baseURL points at a self-hosted compatible server.
func NewOpenAISpeech(apiKey, model, baseURL string) (*OpenAISpeech, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultSpeechModel
	}
	return &OpenAISpeech{
		api:   newOpenAIClient(apiKey, baseURL),
		model: model,
	}, nil
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize returns MP3 bytes for text spoken with the given voice
func (s *OpenAISpeech) Synthesize(ctx context.Context, text string, voice domain.VoiceParams) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty speech text", domain.ErrInvalidInput)
	}

	name := voice.Voice
	if name == "" {
		name = domain.DefaultVoice.Voice
	}

	audio, err := s.api.post(ctx, "/audio/speech", speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          name,
		Speed:          clampSpeed(voice.Speed),
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio response")
	}
	return audio, nil
}

func (s *OpenAISpeech) Model() string { return s.model }

func (s *OpenAISpeech) Close() error {
	s.api.close()
	return nil
}

func clampSpeed(speed float64) float64 {
	switch {
	case speed == 0:
		return 0
	case speed < minSpeechSpeed:
		return minSpeechSpeed
	case speed > maxSpeechSpeed:
		return maxSpeechSpeed
	default:
		return speed
	}
}
