package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
)

var flatMagic = [4]byte{'V', 'F', 'L', 'T'}

const flatVersion uint32 = 1

// flatHeader precedes the raw vectors in a serialized FlatIndex.
type flatHeader struct {
	Magic   [4]byte
	Version uint32
	Dims    uint32
	Count   uint32
}

// FlatIndex is an exact brute-force index. Vectors are kept in one contiguous
// slice in insertion order.
type FlatIndex struct {
	dimensions int
	data       []float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

func (f *FlatIndex) Type() string { return string(IndexTypeFlat) }

func (f *FlatIndex) Dimensions() int { return f.dimensions }

// Len returns the number of vectors in the index.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dimensions
}

// Add appends copies of vectors. Nothing is added if any vector has the wrong dimension.
func (f *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := checkDims(len(v), f.dimensions); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search scans every vector and returns the k nearest.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if err := checkDims(len(query), f.dimensions); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dimensions
	if k <= 0 || n == 0 {
		return nil, nil
	}
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		vec := f.data[i*f.dimensions : (i+1)*f.dimensions]
		hits[i] = Hit{Position: int64(i), Distance: SquaredL2(query, vec)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > n {
		k = n
	}
	return hits[:k], nil
}

// MarshalBinary writes the header followed by every vector as little-endian float32.
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	buf.Grow(16 + len(f.data)*4)
	hdr := flatHeader{
		Magic:   flatMagic,
		Version: flatVersion,
		Dims:    uint32(f.dimensions),
		Count:   uint32(len(f.data) / f.dimensions),
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, f.data); err != nil {
		return nil, fmt.Errorf("write vectors: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFlat rebuilds a FlatIndex from MarshalBinary output.
func DecodeFlat(data []byte) (*FlatIndex, error) {
	var hdr flatHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, corruptf("flat header: %v", err)
	}
	if hdr.Magic != flatMagic {
		return nil, corruptf("bad flat magic %q", hdr.Magic[:])
	}
	if hdr.Version != flatVersion {
		return nil, corruptf("unsupported flat version %d", hdr.Version)
	}
	if hdr.Dims == 0 {
		return nil, corruptf("zero dimensions")
	}
	want := uint64(hdr.Count) * uint64(hdr.Dims) * 4
	if uint64(r.Len()) != want {
		return nil, corruptf("flat body is %d bytes, header says %d", r.Len(), want)
	}

	body := data[len(data)-r.Len():]
	vecs := make([]float32, len(body)/4)
	for i := range vecs {
		vecs[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return &FlatIndex{dimensions: int(hdr.Dims), data: vecs}, nil
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error { return nil }

var _ Index = (*FlatIndex)(nil)
