package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TextExtractor = (*Registry)(nil)

// Extractor turns one document format into plain text
type Extractor interface {
	Extract(ctx context.Context, content []byte) (string, error)

	// Extensions lists handled file extensions, lower case with the dot
	Extensions() []string

	// Priority breaks ties when several extractors claim an extension
	Priority() int
}

// Registry implements TextExtractor by dispatching on file extension.
// When multiple extractors match, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an extractor.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, e)
}

// Get returns the best extractor for a file name, or nil.
func (r *Registry) Get(filename string) Extractor {
	ext := extension(filename)
	if ext == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Extractor
	for _, e := range r.extractors {
		if !handles(e, ext) {
			continue
		}
		if best == nil || e.Priority() > best.Priority() {
			best = e
		}
	}
	return best
}

// Supports reports whether any extractor handles the file name.
func (r *Registry) Supports(filename string) bool {
	return r.Get(filename) != nil
}

// Extract selects an extractor by extension and normalises line endings.
func (r *Registry) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	e := r.Get(filename)
	if e == nil {
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, extension(filename))
	}

	text, err := e.Extract(ctx, content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return normaliseNewlines(text), nil
}

// List returns all registered extensions, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, e := range r.extractors {
		for _, ext := range e.Extensions() {
			set[strings.ToLower(ext)] = struct{}{}
		}
	}

	exts := make([]string, 0, len(set))
	for ext := range set {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry creates a registry with the built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlainTextExtractor{})
	r.Register(&MarkdownExtractor{})
	r.Register(&PDFExtractor{})
	return r
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
}

func handles(e Extractor, ext string) bool {
	for _, candidate := range e.Extensions() {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}

func normaliseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
