package indexer

import "github.com/hyperjump/vecbucket/pkg/utils"

// Preprocess normalizes text for embedding. Stored text is kept verbatim and
// queries go through the same normalization.
func Preprocess(text string) string {
	return utils.CollapseSpace(text)
}
