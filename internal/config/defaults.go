package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "s3"
	}
	if cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = "localhost:9000"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "vectors"
	}
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Backend {
		case "sqlite":
			cfg.Storage.Path = "/usr/local/var/vecbucket/data/objects.db"
		default:
			cfg.Storage.Path = "/usr/local/var/vecbucket/data/objects"
		}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelName == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.ModelName = "text-embedding-3-small"
		case "hashing":
			cfg.Embedding.ModelName = "hashing-bow"
		default:
			cfg.Embedding.ModelName = "all-MiniLM-L6-v2"
		}
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/vecbucket/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.HNSWM == 0 {
		cfg.Index.HNSWM = 16
	}
	if cfg.Index.HNSWEfSearch == 0 {
		cfg.Index.HNSWEfSearch = 20
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.DefaultListLimit == 0 {
		cfg.Search.DefaultListLimit = 100
	}
	if cfg.Search.PreviewLength == 0 {
		cfg.Search.PreviewLength = 64
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
