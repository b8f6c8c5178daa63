package driven

import (
	"context"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

// EpisodeStore persists episode artifacts: the uploaded source, audio clips
// and the manifest. Every write is atomic (temp file then rename), so a
// reader never observes a partial artifact.
type EpisodeStore interface {
	// SaveSource stores the uploaded document
	SaveSource(ctx context.Context, episodeID, filename string, content []byte) error

	// LoadSource returns the stored document and its original file name.
	// Returns domain.ErrNotFound if the episode has no source.
	LoadSource(ctx context.Context, episodeID string) (filename string, content []byte, err error)

	// WriteAudio stores an audio clip and returns its public URL
	WriteAudio(ctx context.Context, episodeID, name string, audio []byte) (string, error)

	// WriteManifest persists the manifest atomically
	WriteManifest(ctx context.Context, manifest *domain.Manifest) error

	// ReadManifest returns domain.ErrNotFound if no manifest has been written
	ReadManifest(ctx context.Context, episodeID string) (*domain.Manifest, error)

	// ManifestExists reports whether a complete manifest is present
	ManifestExists(ctx context.Context, episodeID string) (bool, error)

	// Exists reports whether anything is stored for the episode
	Exists(ctx context.Context, episodeID string) (bool, error)
}

// StatusStore keeps the status record of each episode
type StatusStore interface {
	// Get returns domain.ErrNotFound for unknown episodes
	Get(ctx context.Context, episodeID string) (*domain.EpisodeStatus, error)

	// Save creates or replaces the status record
	Save(ctx context.Context, status *domain.EpisodeStatus) error
}
