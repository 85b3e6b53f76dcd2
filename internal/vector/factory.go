package vector

import "fmt"

// IndexType names an Index implementation. It is stored nowhere in the index
// blob itself, so the same type must be configured to decode it.
type IndexType string

const (
	// IndexTypeFlat is exact brute-force search in pure Go. The default.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeHNSW is approximate search over an HNSW graph.
	IndexTypeHNSW IndexType = "hnsw"
	// IndexTypeFAISS is a FAISS IndexFlatL2. Requires -tags=faiss and the FAISS C library.
	IndexTypeFAISS IndexType = "faiss"
)

type options struct {
	hnswM        int
	hnswEfSearch int
}

// Option configures New.
type Option func(*options)

// WithHNSWParams sets the graph degree and search beam width for IndexTypeHNSW.
func WithHNSWParams(m, efSearch int) Option {
	return func(o *options) {
		o.hnswM = m
		o.hnswEfSearch = efSearch
	}
}

// New creates an empty index of the given type. "" selects flat.
func New(indexType string, dimensions int, opts ...Option) (Index, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlatIndex(dimensions)
	case IndexTypeHNSW:
		return NewHNSWIndex(dimensions, o.hnswM, o.hnswEfSearch)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, hnsw, faiss)", indexType)
	}
}

// Decode rebuilds an index of the given type from MarshalBinary output.
// Malformed data yields an error wrapping ErrCorrupt.
func Decode(indexType string, data []byte) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return DecodeFlat(data)
	case IndexTypeHNSW:
		return DecodeHNSW(data)
	case IndexTypeFAISS:
		return DecodeFAISS(data)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, hnsw, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
