package models

import (
	"strings"

	"github.com/hyperjump/vecbucket/internal/apperr"
)

// SearchRequest is a nearest-neighbour query over document text.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate rejects an empty query and normalizes TopK: non-positive values
// become defaultTopK and values above maxTopK are capped.
func (r *SearchRequest) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(r.Query) == "" {
		return apperr.Invalid("search", "query cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = defaultTopK
	}
	if maxTopK > 0 && r.TopK > maxTopK {
		r.TopK = maxTopK
	}
	return nil
}
