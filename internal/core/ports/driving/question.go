package driving

import (
	"context"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// QuestionService answers questions about an episode's source document
type QuestionService interface {
	// Ask answers a question, optionally anchored at a playback timestamp,
	// and synthesizes a spoken answer.
	Ask(ctx context.Context, episodeID, question string, timestamp *float64) (*domain.Answer, error)

	// Chat answers a free-form message with text only
	Chat(ctx context.Context, episodeID, message string) (string, error)
}
