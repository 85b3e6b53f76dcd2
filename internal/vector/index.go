// Package vector provides the similarity index structures persisted by the index
// manager: an exact flat index, an HNSW graph and an optional FAISS binding.
//
// Every index stores vectors at dense positions 0..Len()-1 in insertion order and
// ranks by squared Euclidean distance, nearest first.
package vector

import (
	"errors"
	"fmt"
)

// NoPosition is the sentinel Hit.Position for an empty result slot.
const NoPosition int64 = -1

// Index is an append-only nearest-neighbour index over fixed-dimension vectors.
type Index interface {
	// Add appends vectors; the first gets position Len() before the call.
	Add(vectors [][]float32) error
	// Search returns up to k hits ordered nearest first. Ties keep insertion order.
	Search(query []float32, k int) ([]Hit, error)
	Len() int
	Dimensions() int
	Type() string
	// MarshalBinary serializes the whole index for Decode.
	MarshalBinary() ([]byte, error)
	Close() error
}

// Hit is one search result: a position in insertion order and its squared L2 distance.
type Hit struct {
	Position int64
	Distance float32
}

// ErrCorrupt is wrapped by every Decode failure caused by malformed data.
var ErrCorrupt = errors.New("corrupt index data")

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

func checkDims(got, want int) error {
	if got != want {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", got, want)
	}
	return nil
}
