package mocks

import "github.com/custodia-labs/podtutor/internal/core/ports/driven"

// Verify interface compliance
var (
	_ driven.DistributedLock   = (*MockDistributedLock)(nil)
	_ driven.EmbeddingService  = (*MockEmbeddingService)(nil)
	_ driven.LLMService        = (*MockLLMService)(nil)
	_ driven.SpeechSynthesizer = (*MockSpeechSynthesizer)(nil)
	_ driven.TextExtractor     = (*MockTextExtractor)(nil)
	_ driven.EpisodeStore      = (*MockEpisodeStore)(nil)
	_ driven.StatusStore       = (*MockStatusStore)(nil)
	_ driven.RetrievalIndex    = (*MockRetrievalIndex)(nil)
	_ driven.TaskQueue         = (*MockTaskQueue)(nil)
)
