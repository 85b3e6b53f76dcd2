// Package indexer is the ingestion and document-access facade over the
// repository, the index manager and the embedder. It is where precise storage
// errors collapse into the outcomes callers see.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/docstore"
	"github.com/hyperjump/vecbucket/internal/embedding"
	"github.com/hyperjump/vecbucket/internal/extract"
	"github.com/hyperjump/vecbucket/internal/fileid"
	"github.com/hyperjump/vecbucket/internal/indexstore"
	"github.com/hyperjump/vecbucket/internal/models"
)

// Indexer adds, reads and deletes documents and keeps the index in step.
type Indexer struct {
	repo      *docstore.Repository
	manager   *indexstore.Manager
	embedder  embedding.Embedder
	extractor *extract.Extractor
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger used for fail-soft collapses and index updates.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithExtractor sets the extractor used by AddFile.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(repo *docstore.Repository, manager *indexstore.Manager, embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		repo:      repo,
		manager:   manager,
		embedder:  embedder,
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocument embeds and stores one document and appends it to the index.
// An empty DocID is replaced by a random UUID. Returns the document id.
func (idx *Indexer) AddDocument(ctx context.Context, input models.DocumentInput) (string, error) {
	if input.DocID == "" {
		input.DocID = uuid.New().String()
	}
	vec, err := idx.embedder.Embed(ctx, Preprocess(input.Text))
	if err != nil {
		return "", fmt.Errorf("failed to generate embedding: %w", err)
	}
	if err := idx.store(ctx, input, vec); err != nil {
		return "", err
	}
	return input.DocID, nil
}

// AddDocuments adds inputs in order, embedding them in one batch. It stops at
// the first failure and returns how many documents were added before it.
func (idx *Indexer) AddDocuments(ctx context.Context, inputs []models.DocumentInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	texts := make([]string, len(inputs))
	for i := range inputs {
		if inputs[i].DocID == "" {
			inputs[i].DocID = uuid.New().String()
		}
		texts[i] = Preprocess(inputs[i].Text)
	}
	vecs, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	for i, in := range inputs {
		if err := idx.store(ctx, in, vecs[i]); err != nil {
			return i, err
		}
	}
	idx.logger.Info("bulk upload stored", zap.Int("count", len(inputs)))
	return len(inputs), nil
}

// store writes the document blobs, then appends to the index.
func (idx *Indexer) store(ctx context.Context, in models.DocumentInput, vec []float32) error {
	if err := idx.repo.Put(ctx, in.DocID, in.Text, vec); err != nil {
		return fmt.Errorf("failed to store document %s: %w", in.DocID, err)
	}
	state, err := idx.manager.IncrementalAdd(ctx, in.DocID, vec)
	if err != nil {
		return fmt.Errorf("failed to update index for %s: %w", in.DocID, err)
	}
	idx.logger.Debug("document added", zap.String("doc_id", in.DocID), zap.String("state", state.String()))
	return nil
}

// AddFile extracts the text of the file at path and adds it. An empty docID is
// derived from the path, so uploading the same file again overwrites it.
func (idx *Indexer) AddFile(ctx context.Context, path, docID string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	if docID == "" {
		docID = fileid.FromPath(absPath)
	}
	return idx.AddDocument(ctx, models.DocumentInput{DocID: docID, Text: text})
}

// ParseBulk decodes a JSON array of {doc_id, text} objects. Anything else is
// InvalidInput.
func ParseBulk(data []byte) ([]models.DocumentInput, error) {
	const op = "indexer.parse_bulk"
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperr.Invalid(op, "docs must be a list")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, apperr.E(apperr.InvalidInput, op, "", err)
	}
	inputs := make([]models.DocumentInput, 0, len(raw))
	for i, r := range raw {
		var in models.DocumentInput
		if err := json.Unmarshal(r, &in); err != nil {
			return nil, apperr.Invalid(op, "docs[%d]: %v", i, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// GetDocument returns the stored document. Every failure, whether missing,
// unreadable or a backend error, is reported as NotFound.
func (idx *Indexer) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := idx.repo.Get(ctx, id)
	if err != nil {
		kind := apperr.KindOf(err)
		if kind != apperr.NotFound {
			idx.logger.Warn("document read failed, reporting not found",
				zap.String("doc_id", id), zap.String("kind", kind.String()), zap.Error(err))
		}
		return nil, apperr.E(apperr.NotFound, "indexer.get", id, err)
	}
	return doc, nil
}

// ListDocuments returns a page of document summaries in id order.
func (idx *Indexer) ListDocuments(ctx context.Context, skip, limit int) ([]models.DocumentSummary, error) {
	return idx.repo.List(ctx, skip, limit)
}

// CountDocuments returns the number of stored documents.
func (idx *Indexer) CountDocuments(ctx context.Context) (int, error) {
	return idx.repo.Count(ctx)
}

// DeleteDocument removes the document's blobs and, if anything was removed,
// rebuilds the index from the survivors. Returns false when nothing existed.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) (bool, error) {
	removed, err := idx.repo.Delete(ctx, id)
	if err != nil {
		return removed, fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if !removed {
		return false, nil
	}
	state, err := idx.manager.FullRebuild(ctx)
	if err != nil {
		return true, fmt.Errorf("failed to rebuild index after deleting %s: %w", id, err)
	}
	idx.logger.Debug("document deleted", zap.String("doc_id", id), zap.String("state", state.String()))
	return true, nil
}

// Rebuild rebuilds the index from every stored vector.
func (idx *Indexer) Rebuild(ctx context.Context) (indexstore.State, error) {
	return idx.manager.FullRebuild(ctx)
}

// Status reports document count, model and index state.
func (idx *Indexer) Status(ctx context.Context) (*models.Status, error) {
	count, err := idx.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	state, vectors := idx.manager.Stats(ctx)
	return &models.Status{
		Status:         "ok",
		DocumentCount:  count,
		EmbeddingModel: idx.embedder.ModelName(),
		Index: models.IndexStatus{
			State:   state.String(),
			Type:    idx.manager.IndexType(),
			Vectors: vectors,
			Backend: idx.repo.Backend().Name(),
		},
	}, nil
}
