package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/docstore"
	"github.com/hyperjump/vecbucket/internal/embedding"
	"github.com/hyperjump/vecbucket/internal/indexstore"
	"github.com/hyperjump/vecbucket/internal/models"
	"github.com/hyperjump/vecbucket/internal/objectstore"
	"github.com/hyperjump/vecbucket/internal/search"
)

func testIndexer(t *testing.T) (*Indexer, *indexstore.Manager, *objectstore.Memory) {
	t.Helper()
	mem := objectstore.NewMemory()
	repo := docstore.New(mem, 0, nil)
	mgr := indexstore.New(repo, "flat", nil)
	return NewIndexer(repo, mgr, embedding.NewMockEmbedder(8)), mgr, mem
}

// checkInvariant fails unless the persisted index is present with n entries and consistent.
func checkInvariant(t *testing.T, mgr *indexstore.Manager, n int) {
	t.Helper()
	snap, state := mgr.Load(context.Background())
	if n == 0 {
		if state != indexstore.Absent {
			t.Fatalf("state = %v, want absent", state)
		}
		return
	}
	if state != indexstore.Present {
		t.Fatalf("state = %v, want present", state)
	}
	defer snap.Close()
	if len(snap.IDs) != n || snap.Index.Len() != n {
		t.Fatalf("ids=%d vectors=%d, want %d", len(snap.IDs), snap.Index.Len(), n)
	}
}

func TestAddDocument_RoundTrip(t *testing.T) {
	idx, mgr, _ := testIndexer(t)
	ctx := context.Background()

	id, err := idx.AddDocument(ctx, models.DocumentInput{DocID: "d1", Text: "  hello\n\tworld  "})
	if err != nil {
		t.Fatal(err)
	}
	if id != "d1" {
		t.Errorf("id = %q", id)
	}
	doc, err := idx.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != "  hello\n\tworld  " {
		t.Errorf("text not stored verbatim: %q", doc.Text)
	}
	checkInvariant(t, mgr, 1)
}

func TestAddDocument_GeneratesID(t *testing.T) {
	idx, _, _ := testIndexer(t)
	id, err := idx.AddDocument(context.Background(), models.DocumentInput{Text: "anonymous"})
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}
	if _, err := idx.GetDocument(context.Background(), id); err != nil {
		t.Errorf("generated document not readable: %v", err)
	}
}

func TestAddDocuments_Bulk(t *testing.T) {
	idx, mgr, _ := testIndexer(t)
	ctx := context.Background()

	inputs := make([]models.DocumentInput, 5)
	for i := range inputs {
		inputs[i] = models.DocumentInput{DocID: fmt.Sprintf("b%d", i), Text: fmt.Sprintf("text %d", i)}
	}
	n, err := idx.AddDocuments(ctx, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("added %d, want 5", n)
	}
	count, _ := idx.CountDocuments(ctx)
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
	checkInvariant(t, mgr, 5)

	if n, err := idx.AddDocuments(ctx, nil); n != 0 || err != nil {
		t.Errorf("empty bulk: n=%d err=%v", n, err)
	}
}

func TestParseBulk(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"list", `[{"doc_id":"a","text":"x"},{"doc_id":"b","text":"y"}]`, 2, false},
		{"empty list", `[]`, 0, false},
		{"object", `{"doc_id":"a","text":"x"}`, 0, true},
		{"string", `"docs"`, 0, true},
		{"null", `null`, 0, true},
		{"empty", ``, 0, true},
		{"list of numbers", `[1,2]`, 0, true},
		{"broken", `[{"doc_id":`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBulk([]byte(tt.data))
			if tt.wantErr {
				if !apperr.IsKind(err, apperr.InvalidInput) {
					t.Errorf("err = %v, want invalid_input", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d inputs, want %d", len(got), tt.want)
			}
		})
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	idx, _, mem := testIndexer(t)
	ctx := context.Background()

	_, err := idx.GetDocument(ctx, "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}

	// unreadable metadata collapses to not found as well
	_ = mem.Put(ctx, "broken.meta.json", []byte("{"))
	if _, err := idx.GetDocument(ctx, "broken"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	idx, mgr, _ := testIndexer(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := idx.AddDocument(ctx, models.DocumentInput{DocID: id, Text: "text " + id}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := idx.DeleteDocument(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("delete a: removed=%v err=%v", removed, err)
	}
	if _, err := idx.GetDocument(ctx, "a"); err == nil {
		t.Error("deleted document still readable")
	}
	checkInvariant(t, mgr, 1)

	removed, err = idx.DeleteDocument(ctx, "a")
	if err != nil || removed {
		t.Errorf("second delete: removed=%v err=%v", removed, err)
	}

	if _, err := idx.DeleteDocument(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	checkInvariant(t, mgr, 0)
}

func TestListDocuments(t *testing.T) {
	idx, _, _ := testIndexer(t)
	ctx := context.Background()
	for _, id := range []string{"z", "m", "a"} {
		_, _ = idx.AddDocument(ctx, models.DocumentInput{DocID: id, Text: "doc " + id})
	}
	list, err := idx.ListDocuments(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].DocID != "a" || list[1].DocID != "m" {
		t.Errorf("list = %+v", list)
	}
}

func TestStatus(t *testing.T) {
	idx, _, _ := testIndexer(t)
	ctx := context.Background()

	st, err := idx.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.DocumentCount != 0 || st.Index.State != "absent" || st.Index.Backend != "memory" {
		t.Errorf("empty status = %+v", st)
	}

	_, _ = idx.AddDocument(ctx, models.DocumentInput{DocID: "a", Text: "x"})
	st, _ = idx.Status(ctx)
	if st.DocumentCount != 1 || st.Index.State != "present" || st.Index.Vectors != 1 {
		t.Errorf("status = %+v", st)
	}
	if st.EmbeddingModel != "mock" || st.Index.Type != "flat" {
		t.Errorf("identity = %s/%s", st.EmbeddingModel, st.Index.Type)
	}
}

func TestRebuild(t *testing.T) {
	idx, mgr, mem := testIndexer(t)
	ctx := context.Background()
	_, _ = idx.AddDocument(ctx, models.DocumentInput{DocID: "a", Text: "x"})

	_ = mem.Remove(ctx, indexstore.IDsKey)
	checkInvariant(t, mgr, 0)

	state, err := idx.Rebuild(ctx)
	if err != nil || state != indexstore.Present {
		t.Fatalf("rebuild: state=%v err=%v", state, err)
	}
	checkInvariant(t, mgr, 1)
}

func TestAddFile(t *testing.T) {
	idx, _, _ := testIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("meeting notes"), 0644); err != nil {
		t.Fatal(err)
	}

	id, err := idx.AddFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	again, err := idx.AddFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	if id != again {
		t.Errorf("same file gave different ids: %q vs %q", id, again)
	}
	doc, err := idx.GetDocument(ctx, id)
	if err != nil || doc.Text != "meeting notes" {
		t.Errorf("doc=%+v err=%v", doc, err)
	}

	named, err := idx.AddFile(ctx, path, "custom")
	if err != nil || named != "custom" {
		t.Errorf("explicit id: %q err=%v", named, err)
	}

	if _, err := idx.AddFile(ctx, filepath.Join(dir, "missing.txt"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPreprocess(t *testing.T) {
	if got := Preprocess("  a \n\n b\tc  "); got != "a b c" {
		t.Errorf("Preprocess = %q", got)
	}
}

func TestSearch_QueryWhitespaceMatchesIngestion(t *testing.T) {
	idx, mgr, _ := testIndexer(t)
	ctx := context.Background()
	text := "exact   text\n\twith  gaps"
	if _, err := idx.AddDocument(ctx, models.DocumentInput{DocID: "x", Text: text}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.AddDocument(ctx, models.DocumentInput{DocID: "y", Text: "other words"}); err != nil {
		t.Fatal(err)
	}

	engine := search.NewEngine(mgr, embedding.NewMockEmbedder(8), nil, nil)
	matches, err := engine.SearchMatches(ctx, text, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 || matches[0].DocID != "x" {
		t.Fatalf("matches = %v, want x first", matches)
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("distance = %v, want 0 for the stored text", matches[0].Distance)
	}
}
