package driven

import "github.com/custodia-labs/podtutor/internal/core/domain"

// PostProcessor transforms document chunks.
// Processors form a pipeline: WhitespaceNormalizer -> Chunker.
type PostProcessor interface {
	// Process receives the chunks of the previous stage. The first
	// processor receives a single chunk with the full document text.
	Process(chunks []domain.Chunk) []domain.Chunk

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// PostProcessorPipeline chains multiple post-processors in order.
type PostProcessorPipeline interface {
	// Process applies all processors to the raw document text.
	Process(content string) []domain.Chunk

	// Add adds a processor. Processors are sorted by Order() before processing.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
