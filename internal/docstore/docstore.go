// Package docstore persists documents as two blobs each: the raw embedding under
// "{doc_id}.npy" and the JSON metadata under "{doc_id}.meta.json". The two writes
// are not atomic; a failure between them leaves a partial document behind.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/models"
	"github.com/hyperjump/vecbucket/internal/objectstore"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

const (
	// VectorSuffix ends every vector blob key.
	VectorSuffix = ".npy"
	// MetaSuffix ends every metadata blob key.
	MetaSuffix = ".meta.json"

	defaultPreviewLength = 64
)

// VectorKey returns the vector blob key for docID.
func VectorKey(docID string) string { return docID + VectorSuffix }

// MetaKey returns the metadata blob key for docID.
func MetaKey(docID string) string { return docID + MetaSuffix }

// Repository reads and writes document blobs in a Backend.
type Repository struct {
	backend       objectstore.Backend
	previewLength int
	logger        *zap.Logger
}

// New returns a Repository over backend. previewLength <= 0 selects 64 characters.
func New(backend objectstore.Backend, previewLength int, logger *zap.Logger) *Repository {
	if previewLength <= 0 {
		previewLength = defaultPreviewLength
	}
	return &Repository{backend: backend, previewLength: previewLength, logger: utils.OrNop(logger)}
}

// Backend returns the underlying object store.
func (r *Repository) Backend() objectstore.Backend { return r.backend }

// Put writes the vector blob, then the metadata blob, overwriting any previous
// version of the document.
func (r *Repository) Put(ctx context.Context, docID, text string, embedding []float32) error {
	const op = "docstore.put"
	if docID == "" {
		return apperr.Invalid(op, "doc_id cannot be empty")
	}
	meta, err := json.Marshal(models.Document{DocID: docID, Text: text})
	if err != nil {
		return apperr.E(apperr.InvalidInput, op, docID, err)
	}
	if err := r.backend.Put(ctx, VectorKey(docID), EncodeVector(embedding)); err != nil {
		return err
	}
	if err := r.backend.Put(ctx, MetaKey(docID), meta); err != nil {
		r.logger.Warn("metadata write failed after vector write; document is partial",
			zap.String("doc_id", docID), zap.Error(err))
		return err
	}
	return nil
}

// Get reads the metadata blob of docID. Undecodable metadata is reported as
// NotFound wrapping the decode error.
func (r *Repository) Get(ctx context.Context, docID string) (*models.Document, error) {
	const op = "docstore.get"
	data, err := r.backend.Get(ctx, MetaKey(docID))
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.E(apperr.NotFound, op, docID, err)
	}
	if doc.DocID == "" {
		doc.DocID = docID
	}
	return &doc, nil
}

// ids lists document ids by metadata key, sorted.
func (r *Repository) ids(ctx context.Context) ([]string, error) {
	keys, err := r.backend.List(ctx, MetaSuffix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimSuffix(k, MetaSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// List returns summaries for the ids in [skip, skip+limit) of the sorted id
// list. A negative limit means no upper bound. Documents whose metadata cannot
// be read are left out, so a page may be shorter than limit.
func (r *Repository) List(ctx context.Context, skip, limit int) ([]models.DocumentSummary, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(ids) {
		return []models.DocumentSummary{}, nil
	}
	end := len(ids)
	if limit >= 0 && skip+limit < end {
		end = skip + limit
	}

	out := make([]models.DocumentSummary, 0, end-skip)
	for _, id := range ids[skip:end] {
		doc, err := r.Get(ctx, id)
		if err != nil {
			r.logger.Debug("skipping unreadable document in listing",
				zap.String("doc_id", id), zap.String("kind", apperr.KindOf(err).String()), zap.Error(err))
			continue
		}
		out = append(out, models.DocumentSummary{DocID: doc.DocID, TextPreview: utils.Preview(doc.Text, r.previewLength)})
	}
	return out, nil
}

// Count returns the number of metadata blobs.
func (r *Repository) Count(ctx context.Context) (int, error) {
	keys, err := r.backend.List(ctx, MetaSuffix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Delete removes whichever of the two blobs exist. It reports true if at least
// one blob was removed.
func (r *Repository) Delete(ctx context.Context, docID string) (bool, error) {
	if docID == "" {
		return false, apperr.Invalid("docstore.delete", "doc_id cannot be empty")
	}
	removed := false
	for _, key := range []string{VectorKey(docID), MetaKey(docID)} {
		ok, err := r.backend.Exists(ctx, key)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		if err := r.backend.Remove(ctx, key); err != nil {
			return removed, err
		}
		removed = true
	}
	return removed, nil
}

// Vectors returns every stored vector with its document id, in backend listing
// order. Blobs that vanish mid-scan, do not decode, or disagree with the first
// vector's dimension are skipped.
func (r *Repository) Vectors(ctx context.Context) ([]string, [][]float32, error) {
	keys, err := r.backend.List(ctx, VectorSuffix)
	if err != nil {
		return nil, nil, err
	}

	var (
		ids  []string
		vecs [][]float32
		dims int
	)
	for _, key := range keys {
		id := strings.TrimSuffix(key, VectorSuffix)
		data, err := r.backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				r.logger.Debug("vector blob vanished during scan", zap.String("key", key))
				continue
			}
			return nil, nil, err
		}
		vec, err := DecodeVector(data)
		if err != nil || len(vec) == 0 {
			r.logger.Warn("skipping undecodable vector blob", zap.String("key", key), zap.Error(err))
			continue
		}
		if dims == 0 {
			dims = len(vec)
		} else if len(vec) != dims {
			r.logger.Warn("skipping vector with mismatched dimension",
				zap.String("key", key), zap.Int("dims", len(vec)), zap.Int("expected", dims))
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	return ids, vecs, nil
}
