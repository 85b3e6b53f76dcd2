package search

import (
	"github.com/hyperjump/vecbucket/internal/config"
	"github.com/hyperjump/vecbucket/internal/models"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

// ProcessQuery validates req against cfg's top-k limits and normalizes the query
// whitespace the same way ingestion does.
func ProcessQuery(req *models.SearchRequest, cfg *config.SearchConfig) error {
	defaultTopK, maxTopK := 5, 100
	if cfg != nil {
		if cfg.DefaultTopK > 0 {
			defaultTopK = cfg.DefaultTopK
		}
		if cfg.MaxTopK > 0 {
			maxTopK = cfg.MaxTopK
		}
	}
	if err := req.Validate(defaultTopK, maxTopK); err != nil {
		return err
	}
	req.Query = utils.CollapseSpace(req.Query)
	return nil
}
