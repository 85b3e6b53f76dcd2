package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/hyperjump/vecbucket/pkg/utils"
)

// HashingModelName identifies vectors produced by HashingEmbedder.
const HashingModelName = "hashing-bow"

// HashingEmbedder is an offline bag-of-words embedder using feature hashing.
// Each lower-cased word lands in one bucket with a hash-derived sign, so texts
// sharing words end up close together. Needs no model file or network.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder with the given number of buckets.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes every word of text into the vector and normalizes it.
// Text without words yields the zero vector.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()

		bucket := sum % uint64(e.dimensions)
		if sum>>63 == 1 {
			emb[bucket]--
		} else {
			emb[bucket]++
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

func (e *HashingEmbedder) ModelName() string { return HashingModelName }

func (e *HashingEmbedder) Close() error { return nil }
