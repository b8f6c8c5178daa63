package driven

import (
	"context"
)

// TextExtractor pulls plain text out of an uploaded document
type TextExtractor interface {
	// Extract returns the document text. Paragraphs are separated by line breaks.
	Extract(ctx context.Context, filename string, content []byte) (string, error)

	// Supports reports whether the extractor handles the file name's extension
	Supports(filename string) bool
}
