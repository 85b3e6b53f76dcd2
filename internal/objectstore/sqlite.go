package objectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vecbucket/internal/apperr"
)

// SQLiteStore implements Backend as a single key/blob table in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureBucket creates the objects table.
func (s *SQLiteStore) EnsureBucket(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return apperr.E(apperr.StorageFailure, "objectstore.ensure_bucket", "objects", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		key, data)
	if err != nil {
		return apperr.E(apperr.StorageFailure, "objectstore.put", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "objectstore.get"
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM objects WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.NotFound, op, key, err)
	}
	if err != nil {
		return nil, apperr.E(apperr.StorageFailure, op, key, err)
	}
	return data, nil
}

// List matches the suffix with substr so the filter runs inside SQLite.
func (s *SQLiteStore) List(ctx context.Context, suffix string) ([]string, error) {
	const op = "objectstore.list"
	var (
		rows *sql.Rows
		err  error
	)
	if suffix == "" {
		rows, err = s.db.QueryContext(ctx, "SELECT key FROM objects ORDER BY key")
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT key FROM objects WHERE substr(key, ?) = ? ORDER BY key",
			-len([]rune(suffix)), suffix)
	}
	if err != nil {
		return nil, apperr.E(apperr.StorageFailure, op, suffix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, apperr.E(apperr.StorageFailure, op, suffix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.E(apperr.StorageFailure, op, suffix, err)
	}
	return keys, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM objects WHERE key = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.E(apperr.StorageFailure, "objectstore.exists", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE key = ?", key); err != nil {
		return apperr.E(apperr.StorageFailure, "objectstore.remove", key, err)
	}
	return nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Backend = (*SQLiteStore)(nil)
