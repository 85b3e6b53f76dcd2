// Package indexstore keeps the consolidated similarity index in sync with the
// document blobs. The index is persisted as two objects: the serialized index
// structure and a JSON array of document ids whose position i names vector i.
package indexstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/docstore"
	"github.com/hyperjump/vecbucket/internal/objectstore"
	"github.com/hyperjump/vecbucket/internal/vector"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

const (
	// IndexKey holds the serialized index structure.
	IndexKey = "faiss.index"
	// IDsKey holds the JSON id list aligned with index positions.
	IDsKey = "index.ids.json"
)

// State is the lifecycle state of the persisted index.
type State int

const (
	// Absent means no usable index is persisted.
	Absent State = iota
	// Present means both index objects exist, decode and agree in length.
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Snapshot is a loaded index with its id list. len(IDs) == Index.Len().
type Snapshot struct {
	Index vector.Index
	IDs   []string
}

// Close releases the index.
func (s *Snapshot) Close() error {
	if s == nil || s.Index == nil {
		return nil
	}
	return s.Index.Close()
}

// Manager owns the two index objects. All writes go through one lock, so
// in-process writers never interleave. Writers in other processes sharing the
// bucket are not coordinated.
type Manager struct {
	repo      *docstore.Repository
	backend   objectstore.Backend
	indexType string
	opts      []vector.Option
	logger    *zap.Logger
	mu        sync.RWMutex
}

// New returns a Manager persisting indexes of indexType next to repo's documents.
func New(repo *docstore.Repository, indexType string, logger *zap.Logger, opts ...vector.Option) *Manager {
	if indexType == "" {
		indexType = string(vector.IndexTypeFlat)
	}
	return &Manager{
		repo:      repo,
		backend:   repo.Backend(),
		indexType: indexType,
		opts:      opts,
		logger:    utils.OrNop(logger),
	}
}

// IndexType returns the configured index type.
func (m *Manager) IndexType() string { return m.indexType }

// Load fetches and decodes the persisted index. Every failure (missing object,
// backend error, undecodable blob, length mismatch) yields Absent; the cause is
// only logged.
func (m *Manager) Load(ctx context.Context) (*Snapshot, State) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) (*Snapshot, State) {
	snap, err := m.read(ctx)
	if err != nil {
		kind := apperr.KindOf(err)
		log := m.logger.Warn
		if kind == apperr.NotFound {
			log = m.logger.Debug
		}
		log("index unavailable, treating as absent", zap.String("kind", kind.String()), zap.Error(err))
		return nil, Absent
	}
	return snap, Present
}

func (m *Manager) read(ctx context.Context) (*Snapshot, error) {
	const op = "indexstore.load"
	indexData, err := m.backend.Get(ctx, IndexKey)
	if err != nil {
		return nil, err
	}
	idsData, err := m.backend.Get(ctx, IDsKey)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(idsData, &ids); err != nil {
		return nil, apperr.E(apperr.IndexCorrupt, op, IDsKey, err)
	}
	idx, err := vector.Decode(m.indexType, indexData)
	if err != nil {
		return nil, apperr.E(apperr.IndexCorrupt, op, IndexKey, err)
	}
	if len(ids) != idx.Len() {
		_ = idx.Close()
		return nil, apperr.E(apperr.IndexCorrupt, op, IDsKey,
			fmt.Errorf("id list has %d entries, index has %d vectors", len(ids), idx.Len()))
	}
	return &Snapshot{Index: idx, IDs: ids}, nil
}

// FullRebuild rebuilds the index from every stored vector. With no vectors left
// both index objects are removed and the state becomes Absent.
func (m *Manager) FullRebuild(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuild(ctx)
}

func (m *Manager) rebuild(ctx context.Context) (State, error) {
	ids, vecs, err := m.repo.Vectors(ctx)
	if err != nil {
		return Absent, fmt.Errorf("collect vectors: %w", err)
	}

	if len(vecs) == 0 {
		for _, key := range []string{IndexKey, IDsKey} {
			if err := m.backend.Remove(ctx, key); err != nil {
				return Absent, err
			}
		}
		m.logger.Info("index rebuilt", zap.String("state", Absent.String()), zap.Int("vectors", 0))
		return Absent, nil
	}

	idx, err := vector.New(m.indexType, len(vecs[0]), m.opts...)
	if err != nil {
		return Absent, fmt.Errorf("create %s index: %w", m.indexType, err)
	}
	defer idx.Close()
	if err := idx.Add(vecs); err != nil {
		return Absent, fmt.Errorf("add vectors: %w", err)
	}
	if err := m.persist(ctx, idx, ids); err != nil {
		return Absent, err
	}
	m.logger.Info("index rebuilt", zap.String("state", Present.String()), zap.Int("vectors", len(ids)))
	return Present, nil
}

// IncrementalAdd appends one vector for docID to the persisted index. When no
// index is present it falls back to a full rebuild, which picks up the
// document's already-written vector blob.
func (m *Manager) IncrementalAdd(ctx context.Context, docID string, vec []float32) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, state := m.load(ctx)
	if state == Absent {
		m.logger.Debug("no index to append to, rebuilding", zap.String("doc_id", docID))
		return m.rebuild(ctx)
	}
	defer snap.Close()

	if err := snap.Index.Add([][]float32{vec}); err != nil {
		return Present, apperr.E(apperr.InvalidInput, "indexstore.add", docID, err)
	}
	ids := append(snap.IDs, docID)
	if err := m.persist(ctx, snap.Index, ids); err != nil {
		return Present, err
	}
	m.logger.Debug("vector appended to index", zap.String("doc_id", docID), zap.Int("vectors", len(ids)))
	return Present, nil
}

// persist writes the index object, then the id list.
func (m *Manager) persist(ctx context.Context, idx vector.Index, ids []string) error {
	if len(ids) != idx.Len() {
		return fmt.Errorf("refusing to persist %d ids for %d vectors", len(ids), idx.Len())
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}
	idsData, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode id list: %w", err)
	}
	if err := m.backend.Put(ctx, IndexKey, data); err != nil {
		return err
	}
	return m.backend.Put(ctx, IDsKey, idsData)
}

// Stats reports the current state and vector count without keeping the index.
func (m *Manager) Stats(ctx context.Context) (State, int) {
	snap, state := m.Load(ctx)
	if state == Absent {
		return Absent, 0
	}
	defer snap.Close()
	return Present, len(snap.IDs)
}
