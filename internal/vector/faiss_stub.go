//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import "errors"

var errFAISSUnavailable = errors.New("FAISS not available: build with -tags=faiss and install FAISS library")

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

// DecodeFAISS returns an error because FAISS is not available.
func DecodeFAISS(data []byte) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Add(vectors [][]float32) error { return errFAISSUnavailable }

func (f *FAISSIndex) Search(query []float32, k int) ([]Hit, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Len() int { return 0 }

func (f *FAISSIndex) Dimensions() int { return 0 }

func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }

func (f *FAISSIndex) MarshalBinary() ([]byte, error) { return nil, errFAISSUnavailable }

// Close is a no-op without FAISS.
func (f *FAISSIndex) Close() error { return nil }
