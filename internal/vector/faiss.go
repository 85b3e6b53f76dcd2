//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a FAISS IndexFlatL2. Labels are positions in insertion
// order; when fewer than k vectors exist FAISS fills the tail with -1 labels,
// which are passed through as NoPosition hits.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	mu         sync.RWMutex
}

// NewFAISSIndex creates an empty FAISS flat L2 index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var flat *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{
		index:      (*C.FaissIndex)(unsafe.Pointer(flat)),
		dimensions: dimensions,
	}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }

func (f *FAISSIndex) Dimensions() int { return f.dimensions }

// Len returns the FAISS ntotal.
func (f *FAISSIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Add flattens vectors into one contiguous array and appends them.
func (f *FAISSIndex) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	flat := make([]float32, 0, len(vectors)*f.dimensions)
	for _, v := range vectors {
		if err := checkDims(len(v), f.dimensions); err != nil {
			return err
		}
		flat = append(flat, v...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns exactly k hits; slots FAISS could not fill have Position -1.
func (f *FAISSIndex) Search(query []float32, k int) ([]Hit, error) {
	if err := checkDims(len(query), f.dimensions); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	hits := make([]Hit, k)
	for i := range hits {
		hits[i] = Hit{Position: labels[i], Distance: distances[i]}
		if labels[i] < 0 {
			hits[i].Position = NoPosition
		}
	}
	return hits, nil
}

// MarshalBinary writes the index with faiss_write_index_fname through a temp file.
func (f *FAISSIndex) MarshalBinary() ([]byte, error) {
	tmp, err := os.CreateTemp("", "vecbucket-*.faiss")
	if err != nil {
		return nil, fmt.Errorf("create temp index file: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	f.mu.RLock()
	ret := C.faiss_write_index_fname(f.index, cPath)
	f.mu.RUnlock()
	if ret != 0 {
		return nil, fmt.Errorf("failed to write FAISS index: %s", faissLastError())
	}
	return os.ReadFile(path)
}

// DecodeFAISS reads an index written by MarshalBinary.
func DecodeFAISS(data []byte) (*FAISSIndex, error) {
	tmp, err := os.CreateTemp("", "vecbucket-*.faiss")
	if err != nil {
		return nil, fmt.Errorf("create temp index file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp index file: %w", err)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var index *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &index); ret != 0 {
		return nil, corruptf("read FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{index: index, dimensions: int(C.faiss_Index_d(index))}, nil
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

var _ Index = (*FAISSIndex)(nil)
