package docstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/objectstore"
)

// flakyBackend fails Put for keys with the given suffix and Get for every key when getErr is set.
type flakyBackend struct {
	*objectstore.Memory
	failPutSuffix string
	getErr        error
}

func (f *flakyBackend) Put(ctx context.Context, key string, data []byte) error {
	if f.failPutSuffix != "" && strings.HasSuffix(key, f.failPutSuffix) {
		return apperr.E(apperr.StorageFailure, "objectstore.put", key, errors.New("disk full"))
	}
	return f.Memory.Put(ctx, key, data)
}

func (f *flakyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Memory.Get(ctx, key)
}

func newRepo(t *testing.T) (*Repository, *objectstore.Memory) {
	t.Helper()
	mem := objectstore.NewMemory()
	return New(mem, 0, nil), mem
}

func TestCodec_RoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	b := EncodeVector(v)
	require.Len(t, b, 16)

	got, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRepository_PutGet(t *testing.T) {
	repo, mem := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "doc1", "hello world", []float32{1, 0}))

	doc, err := repo.Get(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", doc.DocID)
	assert.Equal(t, "hello world", doc.Text)

	meta, _ := mem.Get(ctx, "doc1.meta.json")
	assert.JSONEq(t, `{"doc_id":"doc1","text":"hello world"}`, string(meta))
	vec, _ := mem.Get(ctx, "doc1.npy")
	assert.Len(t, vec, 8)
}

func TestRepository_PutOverwrites(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "d", "first", []float32{1}))
	require.NoError(t, repo.Put(ctx, "d", "second", []float32{2}))

	doc, err := repo.Get(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Text)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_PutEmptyID(t *testing.T) {
	repo, _ := newRepo(t)
	err := repo.Put(context.Background(), "", "x", []float32{1})
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestRepository_PartialWrite(t *testing.T) {
	mem := objectstore.NewMemory()
	repo := New(&flakyBackend{Memory: mem, failPutSuffix: MetaSuffix}, 0, nil)
	ctx := context.Background()

	err := repo.Put(ctx, "half", "text", []float32{1, 2})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))

	// the vector blob stays behind
	ok, _ := mem.Exists(ctx, "half.npy")
	assert.True(t, ok)
	_, err = repo.Get(ctx, "half")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestRepository_GetErrors(t *testing.T) {
	repo, mem := newRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "nope")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	require.NoError(t, mem.Put(ctx, "bad.meta.json", []byte("{not json")))
	_, err = repo.Get(ctx, "bad")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	boom := apperr.E(apperr.StorageFailure, "objectstore.get", "x", errors.New("timeout"))
	flaky := New(&flakyBackend{Memory: mem, getErr: boom}, 0, nil)
	_, err = flaky.Get(ctx, "x")
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))
}

func TestRepository_List(t *testing.T) {
	repo, mem := newRepo(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b", "d"} {
		require.NoError(t, repo.Put(ctx, id, "text of "+id, []float32{1}))
	}

	all, err := repo.List(ctx, 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].DocID)
	assert.Equal(t, "text of a", all[0].TextPreview)

	page, err := repo.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].DocID)
	assert.Equal(t, "c", page[1].DocID)

	empty, err := repo.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	zero, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, zero)

	// unreadable metadata is skipped
	require.NoError(t, mem.Put(ctx, "e.meta.json", []byte("garbage")))
	all, err = repo.List(ctx, 0, -1)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRepository_ListPreview(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	long := strings.Repeat("é", 100)
	require.NoError(t, repo.Put(ctx, "long", long, []float32{1}))

	list, err := repo.List(ctx, 0, -1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, strings.Repeat("é", 64), list[0].TextPreview)
}

func TestRepository_Delete(t *testing.T) {
	repo, mem := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "d", "x", []float32{1}))

	removed, err := repo.Delete(ctx, "d")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, mem.Len())

	removed, err = repo.Delete(ctx, "d")
	require.NoError(t, err)
	assert.False(t, removed)

	// a partial document is still removable
	require.NoError(t, mem.Put(ctx, "p.npy", EncodeVector([]float32{1})))
	removed, err = repo.Delete(ctx, "p")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRepository_Vectors(t *testing.T) {
	repo, mem := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "a", "x", []float32{1, 0}))
	require.NoError(t, repo.Put(ctx, "b", "y", []float32{0, 1}))
	require.NoError(t, mem.Put(ctx, "odd.npy", []byte{1, 2, 3}))
	require.NoError(t, mem.Put(ctx, "wide.npy", EncodeVector([]float32{1, 2, 3})))
	require.NoError(t, mem.Put(ctx, "faiss.index", []byte("not a vector")))

	ids, vecs, err := repo.Vectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestRepository_VectorsEmpty(t *testing.T) {
	repo, _ := newRepo(t)
	ids, vecs, err := repo.Vectors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, vecs)
}
