package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*LangChainEmbedding)(nil)

const (
	defaultOllamaEmbeddingModel = "nomic-embed-text"
	defaultOllamaDimensions     = 768
)

// LangChainEmbedding implements EmbeddingService with a langchaingo embedder.
// A zero dimensions value disables the dimension check.
type LangChainEmbedding struct {
	embedder   embeddings.Embedder
	modelName  string
	dimensions int
}

// NewLangChainEmbedding wraps an existing langchaingo embedder
func NewLangChainEmbedding(embedder embeddings.Embedder, modelName string, dimensions int) *LangChainEmbedding {
	return &LangChainEmbedding{embedder: embedder, modelName: modelName, dimensions: dimensions}
}

// NewOllamaEmbedding creates an embedder served by an ollama instance
func NewOllamaEmbedding(baseURL, model string) (*LangChainEmbedding, error) {
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	dims := 0
	if model == defaultOllamaEmbeddingModel {
		dims = defaultOllamaDimensions
	}
	return NewLangChainEmbedding(embedder, model, dims), nil
}

// Embed generates embeddings for multiple texts
func (e *LangChainEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	if err := e.checkDimensions(vectors...); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a search query
func (e *LangChainEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := e.checkDimensions(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *LangChainEmbedding) checkDimensions(vectors ...[]float32) error {
	if e.dimensions == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != e.dimensions {
			return fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), e.dimensions)
		}
	}
	return nil
}

func (e *LangChainEmbedding) Dimensions() int { return e.dimensions }

func (e *LangChainEmbedding) Model() string { return e.modelName }

func (e *LangChainEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

func (e *LangChainEmbedding) Close() error { return nil }
