package driving

import (
	"context"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// EpisodeService handles document upload and episode lifecycle
type EpisodeService interface {
	// Submit stores an uploaded document and schedules episode generation
	Submit(ctx context.Context, filename string, content []byte) (*domain.SubmitResult, error)

	// Status returns the episode status. A present manifest always reports ready.
	Status(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error)

	// Manifest returns the finished manifest, or domain.ErrNotReady
	Manifest(ctx context.Context, episodeID string) (*domain.Manifest, error)

	// Reprocess schedules another pipeline run for an existing episode
	Reprocess(ctx context.Context, episodeID string) error
}

// PipelineService runs the episode pipeline. Called by workers.
type PipelineService interface {
	// Process produces the manifest for an episode, or does nothing if one exists
	Process(ctx context.Context, episodeID string) error
}
