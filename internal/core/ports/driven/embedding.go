package driven

import (
	"context"
)

// EmbeddingService turns chunk and question text into vectors for the
// retrieval index.
type EmbeddingService interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a question.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions is the vector length, or 0 when the model does not say.
	Dimensions() int

	Model() string

	HealthCheck(ctx context.Context) error

	Close() error
}
