package services

import "github.com/custodia-labs/podtutor/internal/core/domain"

// BuildManifest lays the results end to end: the first segment starts at 0
// and each following one starts where the previous ended. The input slice
// is not modified.
func BuildManifest(episodeID string, results []domain.AudioResult) *domain.Manifest {
	segments := make([]domain.AudioResult, len(results))
	copy(segments, results)

	cursor := 0.0
	for i := range segments {
		segments[i].Start = cursor
		segments[i].End = cursor + segments[i].Duration
		cursor = segments[i].End
	}

	return &domain.Manifest{
		EpisodeID: episodeID,
		Segments:  segments,
	}
}
