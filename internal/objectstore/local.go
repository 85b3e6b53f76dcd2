package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/vecbucket/internal/apperr"
)

// Local implements Backend on top of a directory. Keys map to files under root;
// a key containing "/" becomes a nested file.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local backend: empty root directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// EnsureBucket creates the root directory (with parents) if it does not exist.
func (l *Local) EnsureBucket(context.Context) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return apperr.E(apperr.StorageFailure, "objectstore.ensure_bucket", l.root, err)
	}
	return nil
}

// resolve turns a key into an absolute filesystem path inside root.
func (l *Local) resolve(op, key string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if key == "" || !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", apperr.E(apperr.InvalidInput, op, key, errors.New("key escapes store root"))
	}
	return full, nil
}

// Put writes data to a temp file and renames it over the target.
func (l *Local) Put(_ context.Context, key string, data []byte) error {
	const op = "objectstore.put"
	full, err := l.resolve(op, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.E(apperr.StorageFailure, op, key, err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.E(apperr.StorageFailure, op, key, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return apperr.E(apperr.StorageFailure, op, key, err)
	}
	return nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	const op = "objectstore.get"
	full, err := l.resolve(op, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.E(apperr.NotFound, op, key, err)
		}
		return nil, apperr.E(apperr.StorageFailure, op, key, err)
	}
	return data, nil
}

// List walks the root directory in lexical order. In-flight ".tmp" files are skipped.
func (l *Local) List(_ context.Context, suffix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == l.root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.E(apperr.StorageFailure, "objectstore.list", suffix, err)
	}
	return keys, nil
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	const op = "objectstore.exists"
	full, err := l.resolve(op, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, apperr.E(apperr.StorageFailure, op, key, err)
}

func (l *Local) Remove(_ context.Context, key string) error {
	const op = "objectstore.remove"
	full, err := l.resolve(op, key)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return apperr.E(apperr.StorageFailure, op, key, err)
}

func (l *Local) Name() string { return "local" }

func (l *Local) Close() error { return nil }

var _ Backend = (*Local)(nil)
