// Package embedding turns text into fixed-dimension, L2-normalized vectors.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/vecbucket/internal/config"
)

// Embedder produces vector embeddings for text.
//
// Output vectors always have Dimensions() entries and unit L2 norm (or are all
// zero for text with no tokens). The same text under the same ModelName always
// yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// New builds the embedder selected by cfg.Provider, wrapped in a CachedEmbedder
// when cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "onnx", "":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.ModelName, cfg.Dimensions, cfg.MaxTokens)
	case "openai":
		e, err = NewOpenAIEmbedder(cfg.APIKey, cfg.ModelName, cfg.Dimensions, cfg.BaseURL)
	case "hashing":
		e = NewHashingEmbedder(cfg.Dimensions)
	case "mock":
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, hashing, mock)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}

// embedEach calls embed for every text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
