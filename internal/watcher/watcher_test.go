package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

// recordingIngester records the paths and ids it is asked to add or delete.
type recordingIngester struct {
	mu      sync.Mutex
	added   map[string]string // doc id -> path
	deleted []string
}

func newRecordingIngester() *recordingIngester {
	return &recordingIngester{added: make(map[string]string)}
}

func (r *recordingIngester) AddFile(_ context.Context, path, docID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added[docID] = path
	return docID, nil
}

func (r *recordingIngester) DeleteDocument(_ context.Context, docID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.added[docID]
	delete(r.added, docID)
	r.deleted = append(r.deleted, docID)
	return ok, nil
}

func (r *recordingIngester) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.added {
		out = append(out, filepath.Base(p))
	}
	sort.Strings(out)
	return out
}

func (r *recordingIngester) has(docID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.added[docID]
	return ok
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_IngestsAndDeletesFiles(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := New(ing, []string{dir}, WithExtensions([]string{".txt"}), WithDebounce(30*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "note.txt")
	writeFile(t, path, "hello")
	writeFile(t, filepath.Join(dir, "skip.bin"), "x")
	eventually(t, func() bool { return ing.has(DocID(path)) }, "note.txt was not ingested")

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return !ing.has(DocID(path)) }, "note.txt document was not deleted")

	if got := ing.paths(); len(got) != 0 {
		t.Errorf("unexpected ingested files: %v", got)
	}
}

func TestWatcher_NewDirectoryIsSynced(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := New(ing, []string{dir}, WithExtensions([]string{".txt", ".md"}), WithDebounce(30*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "new-folder")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(sub, "doc1.txt"), "one")
	writeFile(t, filepath.Join(sub, "doc2.md"), "two")

	eventually(t, func() bool {
		got := ing.paths()
		return len(got) == 2 && got[0] == "doc1.txt" && got[1] == "doc2.md"
	}, "files in new folder were not ingested")
}

func TestWatcher_Sync(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "ignore.xyz"), "x")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "nested", "b.txt"), "deep")

	ing := newRecordingIngester()
	w := New(ing, []string{dir}, WithExtensions([]string{".txt"}))
	if n := w.Sync(context.Background()); n != 2 {
		t.Errorf("Sync visited %d files, want 2", n)
	}
	if got := ing.paths(); len(got) != 2 || got[0] != "a.txt" || got[1] != "b.txt" {
		t.Errorf("ingested %v", got)
	}

	flat := newRecordingIngester()
	w = New(flat, []string{dir}, WithExtensions([]string{".txt"}), WithRecursive(false))
	if n := w.Sync(context.Background()); n != 1 {
		t.Errorf("non-recursive Sync visited %d files, want 1", n)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := New(newRecordingIngester(), []string{root})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New(newRecordingIngester(), []string{t.TempDir()})
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestDocID_StableAcrossRelativePaths(t *testing.T) {
	dir := t.TempDir()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs("file.txt")
	if DocID("file.txt") != DocID(abs) || DocID("./x/../file.txt") != DocID(abs) {
		t.Error("relative and absolute paths should map to the same document id")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
