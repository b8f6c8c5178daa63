package postprocessors

import (
	"strings"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

// DefaultMaxChunkSize is the chunk size used when none is configured.
const DefaultMaxChunkSize = 1200

// ChunkText splits text into paragraph-preserving chunks of at most maxSize
// characters. Paragraphs are the trimmed, non-empty lines of text. They are
// packed greedily, joined by a single space; a paragraph longer than maxSize
// becomes a chunk on its own. Empty input yields no chunks.
func ChunkText(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}

	var chunks []string
	var current string
	for _, line := range strings.Split(text, "\n") {
		p := strings.TrimSpace(line)
		if p == "" {
			continue
		}
		if len(current)+len(p)+1 <= maxSize {
			if current == "" {
				current = p
			} else {
				current += " " + p
			}
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		current = p
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// Chunker is the pipeline stage wrapping ChunkText.
type Chunker struct {
	maxSize int
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a chunker. A non-positive size uses DefaultMaxChunkSize.
func NewChunker(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	return &Chunker{maxSize: maxSize}
}

// Process splits every incoming chunk and numbers the output in order.
func (c *Chunker) Process(chunks []domain.Chunk) []domain.Chunk {
	var result []domain.Chunk
	for _, chunk := range chunks {
		for _, text := range ChunkText(chunk.Content, c.maxSize) {
			result = append(result, domain.Chunk{Position: len(result), Content: text})
		}
	}
	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 10 - the chunker runs after normalization.
func (c *Chunker) Order() int {
	return 10
}

// MaxSize returns the configured chunk size.
func (c *Chunker) MaxSize() int {
	return c.maxSize
}
