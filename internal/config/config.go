// Package config provides configuration loading and structs for the vecbucket server and CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig lists directories whose files are ingested as they change.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	// Extensions filters watched files; empty means every extractable format.
	Extensions []string `yaml:"extensions"`
	Recursive  *bool    `yaml:"recursive"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	// Backend is one of "s3", "local", "sqlite" or "memory".
	Backend   string `yaml:"backend"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
	// Path is the root directory (local) or database file (sqlite).
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "openai", "hashing" or "mock".
	Provider   string `yaml:"provider"`
	ModelName  string `yaml:"model_name"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
}

// IndexConfig selects the similarity index structure.
type IndexConfig struct {
	// Type is one of "flat", "hnsw" or "faiss".
	Type         string `yaml:"type"`
	HNSWM        int    `yaml:"hnsw_m"`
	HNSWEfSearch int    `yaml:"hnsw_ef_search"`
}

// SearchConfig holds query and listing defaults.
type SearchConfig struct {
	DefaultTopK      int `yaml:"default_top_k"`
	MaxTopK          int `yaml:"max_top_k"`
	DefaultListLimit int `yaml:"default_list_limit"`
	PreviewLength    int `yaml:"preview_length"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.Path = expandPath(cfg.Storage.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i, dir := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(dir, configDir)
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns a default configuration (with
// environment overrides) when no file exists at path.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	ApplyEnv(cfg)
	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyEnv overrides connection settings from the environment. Only non-empty
// variables are applied.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("VECBUCKET_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = v
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
