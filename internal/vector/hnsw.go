package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

var hnswMagic = [4]byte{'V', 'H', 'N', 'S'}

const hnswVersion uint32 = 1

// hnswHeader precedes the exported graph in a serialized HNSWIndex.
type hnswHeader struct {
	Magic   [4]byte
	Version uint32
	Dims    uint32
	Count   uint32
}

// HNSWIndex is an approximate index backed by a coder/hnsw graph. Graph keys
// are the insertion positions.
type HNSWIndex struct {
	graph      *hnsw.Graph[uint64]
	dimensions int
	mu         sync.RWMutex
}

// NewHNSWIndex creates an empty HNSW index. Non-positive m and efSearch fall
// back to 16 and 20.
func NewHNSWIndex(dimensions, m, efSearch int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 20
	}
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	g.M = m
	g.Ml = 0.25
	g.EfSearch = efSearch
	return &HNSWIndex{graph: g, dimensions: dimensions}, nil
}

func (h *HNSWIndex) Type() string { return string(IndexTypeHNSW) }

func (h *HNSWIndex) Dimensions() int { return h.dimensions }

func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len()
}

// Add inserts copies of vectors keyed by their position.
func (h *HNSWIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := checkDims(len(v), h.dimensions); err != nil {
			return err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	next := uint64(h.graph.Len())
	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		h.graph.Add(hnsw.MakeNode(next+uint64(i), vec))
	}
	return nil
}

// Search asks the graph for k neighbours and reports their squared L2 distance.
func (h *HNSWIndex) Search(query []float32, k int) ([]Hit, error) {
	if err := checkDims(len(query), h.dimensions); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || h.graph.Len() == 0 {
		return nil, nil
	}

	nodes := h.graph.Search(query, k)
	hits := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		hits = append(hits, Hit{Position: int64(n.Key), Distance: SquaredL2(query, n.Value)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
	return hits, nil
}

// MarshalBinary writes the header followed by the graph export.
func (h *HNSWIndex) MarshalBinary() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var buf bytes.Buffer
	hdr := hnswHeader{
		Magic:   hnswMagic,
		Version: hnswVersion,
		Dims:    uint32(h.dimensions),
		Count:   uint32(h.graph.Len()),
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if hdr.Count == 0 {
		return buf.Bytes(), nil
	}
	if err := h.graph.Export(&buf); err != nil {
		return nil, fmt.Errorf("export graph: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeHNSW rebuilds an HNSWIndex from MarshalBinary output.
func DecodeHNSW(data []byte) (idx *HNSWIndex, err error) {
	// Import trusts the encoded lengths and can panic on truncated input.
	defer func() {
		if r := recover(); r != nil {
			idx, err = nil, corruptf("import graph: %v", r)
		}
	}()

	var hdr hnswHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, corruptf("hnsw header: %v", err)
	}
	if hdr.Magic != hnswMagic {
		return nil, corruptf("bad hnsw magic %q", hdr.Magic[:])
	}
	if hdr.Version != hnswVersion {
		return nil, corruptf("unsupported hnsw version %d", hdr.Version)
	}

	idx, err = NewHNSWIndex(int(hdr.Dims), 0, 0)
	if err != nil {
		return nil, corruptf("%v", err)
	}
	if hdr.Count == 0 {
		return idx, nil
	}
	// bytes.Reader satisfies the io.ByteReader Import needs.
	if err := idx.graph.Import(r); err != nil {
		return nil, corruptf("import graph: %v", err)
	}
	if got := idx.graph.Len(); got != int(hdr.Count) {
		return nil, corruptf("graph has %d nodes, header says %d", got, hdr.Count)
	}
	return idx, nil
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error { return nil }

var _ Index = (*HNSWIndex)(nil)
