// Package watcher ingests files from watched directories as documents and
// deletes them again when the files go away.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/fileid"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester stores and removes file-backed documents.
type Ingester interface {
	AddFile(ctx context.Context, path, docID string) (string, error)
	DeleteDocument(ctx context.Context, docID string) (bool, error)
}

// Watcher turns file system events under its roots into document writes.
// A file's document id is derived from its absolute path, so rewriting the
// file replaces the document and removing it deletes the document.
type Watcher struct {
	ingester   Ingester
	roots      []string
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for ingestion events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = utils.OrNop(l) }
}

// WithExtensions limits ingestion to files with these extensions. Empty means all files.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) { w.extensions = exts }
}

// WithRecursive controls whether subdirectories are watched.
func WithRecursive(recursive bool) Option {
	return func(w *Watcher) { w.recursive = recursive }
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over roots. Nothing is watched until Start.
func New(ingester Ingester, roots []string, opts ...Option) *Watcher {
	w := &Watcher{
		ingester:  ingester,
		recursive: true,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
	}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DocID returns the document id used for the file at path.
func DocID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return fileid.FromPath(filepath.Clean(path))
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Start creates missing roots, registers them with fsnotify and processes
// events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.logger.Info("watching directories",
		zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))

	w.wg.Add(1)
	go w.run(w.ctx, fsw)
	return nil
}

// addTree registers dir, and its subdirectories when recursive.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.recursive {
				if err := w.addTree(fsw, path); err != nil {
					w.logger.Warn("watch new directory failed", zap.String("path", path), zap.Error(err))
				}
				w.syncDir(ctx, path)
			}
			return
		}
		if w.matches(path) {
			w.schedule(ctx, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matches(path) {
			w.remove(ctx, path)
		}
	}
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) matches(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule ingests path once it has been quiet for the debounce interval.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.pending[path]; ok && prev.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = t
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	id, err := w.ingester.AddFile(ctx, path, DocID(path))
	if err != nil {
		w.logger.Warn("ingest file failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Debug("file ingested", zap.String("path", path), zap.String("doc_id", id))
}

func (w *Watcher) remove(ctx context.Context, path string) {
	id := DocID(path)
	removed, err := w.ingester.DeleteDocument(ctx, id)
	if err != nil {
		w.logger.Warn("delete document for removed file failed", zap.String("path", path), zap.Error(err))
		return
	}
	if removed {
		w.logger.Debug("file document deleted", zap.String("path", path), zap.String("doc_id", id))
	}
}

// Sync ingests every matching file already present under the roots and
// returns how many were visited.
func (w *Watcher) Sync(ctx context.Context) int {
	n := 0
	for _, root := range w.roots {
		n += w.syncDir(ctx, root)
	}
	return n
}

func (w *Watcher) syncDir(ctx context.Context, dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if d.IsDir() {
			if path != dir && !w.recursive {
				return fs.SkipDir
			}
			return nil
		}
		if w.matches(path) {
			w.ingest(ctx, path)
			n++
		}
		return nil
	})
	return n
}

// Stop cancels pending ingestion, closes the fsnotify watcher and waits for
// in-flight work to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.cancel()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	_ = fsw.Close()
	w.wg.Wait()
}
