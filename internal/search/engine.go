// Package search answers nearest-neighbour queries over the persisted index.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/config"
	"github.com/hyperjump/vecbucket/internal/embedding"
	"github.com/hyperjump/vecbucket/internal/indexstore"
	"github.com/hyperjump/vecbucket/internal/models"
	"github.com/hyperjump/vecbucket/internal/vector"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

// Engine embeds queries and searches the index held by a Manager.
type Engine struct {
	manager  *indexstore.Manager
	embedder embedding.Embedder
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(manager *indexstore.Manager, embedder embedding.Embedder, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	return &Engine{
		manager:  manager,
		embedder: embedder,
		config:   cfg,
		logger:   utils.OrNop(logger),
	}
}

// Search returns the ids of the topK documents nearest to query, nearest first.
// With no documents stored the result is empty, not an error.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]string, error) {
	matches, err := e.SearchMatches(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.DocID
	}
	return ids, nil
}

// SearchMatches is Search with distances.
func (e *Engine) SearchMatches(ctx context.Context, query string, topK int) ([]models.Match, error) {
	req := models.SearchRequest{Query: query, TopK: topK}
	if err := ProcessQuery(&req, e.config); err != nil {
		return nil, err
	}

	snap, state := e.manager.Load(ctx)
	if state == indexstore.Absent {
		if _, err := e.manager.FullRebuild(ctx); err != nil {
			e.logger.Warn("index rebuild before search failed", zap.Error(err))
		}
		snap, state = e.manager.Load(ctx)
		if state == indexstore.Absent {
			return []models.Match{}, nil
		}
	}
	defer snap.Close()

	vec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := snap.Index.Search(vec, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	matches := make([]models.Match, 0, len(hits))
	for _, h := range hits {
		if h.Position == vector.NoPosition || h.Position < 0 || h.Position >= int64(len(snap.IDs)) {
			continue
		}
		matches = append(matches, models.Match{DocID: snap.IDs[h.Position], Distance: h.Distance})
	}
	e.logger.Debug("search completed",
		zap.String("query", req.Query), zap.Int("top_k", req.TopK), zap.Int("matches", len(matches)))
	return matches, nil
}
