// Package objectstore defines the bucket-scoped key/blob store the document
// repository and index manager persist into. There is no transaction or
// cross-key atomicity in any backend.
package objectstore

import (
	"context"
	"fmt"

	"github.com/hyperjump/vecbucket/internal/config"
)

// Backend is a flat key/blob store.
//
// Keys are forward-slash separated strings. Implementations must be safe for
// concurrent use and must report missing keys from Get as an
// apperr.NotFound error; every other failure is an apperr.StorageFailure.
type Backend interface {
	// EnsureBucket checks that the bucket exists and creates it if not.
	EnsureBucket(ctx context.Context) error

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns every key ending in suffix ("" lists all keys).
	List(ctx context.Context, suffix string) ([]string, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Name identifies the backend kind ("s3", "local", ...).
	Name() string

	Close() error
}

// Open constructs the backend selected by cfg.Backend and ensures its bucket exists.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case "s3", "":
		b = NewS3(NewS3Client(cfg), cfg.Bucket, cfg.Prefix)
	case "local":
		b, err = NewLocal(cfg.Path)
	case "sqlite":
		b, err = NewSQLite(cfg.Path)
	case "memory":
		b = NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: s3, local, sqlite, memory)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := b.EnsureBucket(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("ensure bucket %q: %w", cfg.Bucket, err)
	}
	return b, nil
}
