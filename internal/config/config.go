// Package config loads and validates the engine configuration from YAML
// files, with environment variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the retrieval engine.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Selector   SelectorConfig   `yaml:"selector" json:"selector"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Vector     VectorConfig     `yaml:"vector" json:"vector"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

// CorpusConfig locates the corpus snapshot and the metadata store.
type CorpusConfig struct {
	// SnapshotPath is the JSON corpus snapshot produced by the ingestion
	// pipeline (external collaborator).
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path"`
	// StorePath is the SQLite metadata store location. Empty means in-memory.
	StorePath string `yaml:"store_path" json:"store_path"`
	// Watch enables rebuilding when the snapshot file changes.
	Watch bool `yaml:"watch" json:"watch"`
	// WatchDebounce coalesces rapid snapshot writes into one rebuild.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig configures ranking and fusion parameters.
type SearchConfig struct {
	// DefaultTopK is the number of fused results returned when the caller
	// does not specify one.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	// MaxTopK caps the per-request result count.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`
	// RRFConstant is the RRF smoothing parameter k (default 60).
	RRFConstant float64 `yaml:"rrf_constant" json:"rrf_constant"`
	// LexicalWeight and VectorWeight scale each source's reciprocal-rank
	// contribution. Both default to 1.0 (pure RRF).
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	// BM25K1 is the term-frequency saturation parameter.
	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	// BM25B is the document-length normalization parameter.
	BM25B float64 `yaml:"bm25_b" json:"bm25_b"`
	// RequestTimeout bounds the whole miss path of one retrieval.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// SelectorConfig configures namespace selection.
type SelectorConfig struct {
	// MaxNamespaces caps how many namespaces one query may search.
	MaxNamespaces int `yaml:"max_namespaces" json:"max_namespaces"`
	// MinScore is the minimum overlap score a namespace must reach.
	MinScore int `yaml:"min_score" json:"min_score"`
	// DefaultNamespaces is the fallback set used when nothing clears MinScore.
	DefaultNamespaces []string `yaml:"default_namespaces" json:"default_namespaces"`
}

// EmbeddingsConfig configures the external embedding service client.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "http" (external service) or "static"
	// (deterministic hash-based fallback, no network).
	Provider string `yaml:"provider" json:"provider"`
	// Endpoint is the embedding service base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// APIKey authenticates against the embedding service. Usually set via
	// POLICYRAG_EMBEDDING_API_KEY rather than the config file.
	APIKey string `yaml:"api_key" json:"api_key"`
	// Model is the embedding model identifier.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding dimension (0 = trust the service).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// CacheSize is the query-embedding LRU capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// VectorConfig configures the external vector store client.
type VectorConfig struct {
	// Provider selects the backend: "http" (external store) or "local"
	// (in-process HNSW, for development and tests).
	Provider string `yaml:"provider" json:"provider"`
	// Endpoint is the vector store base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// APIKey authenticates against the vector store. Usually set via
	// POLICYRAG_VECTOR_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`
	// Timeout bounds a single store query.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RetryBackoff is the delay before the single retry of a failed call.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// CacheConfig configures the result cache and durable index artifacts.
type CacheConfig struct {
	// Capacity is the maximum number of cached query results (LRU bound).
	Capacity int `yaml:"capacity" json:"capacity"`
	// TTL is the time after which an entry is treated as a miss.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// ArtifactDir holds the durable lexical index artifacts keyed by corpus hash.
	ArtifactDir string `yaml:"artifact_dir" json:"artifact_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			LogLevel: "info",
		},
		Corpus: CorpusConfig{
			SnapshotPath:  "corpus/snapshot.json",
			Watch:         false,
			WatchDebounce: 500 * time.Millisecond,
		},
		Search: SearchConfig{
			DefaultTopK:    5,
			MaxTopK:        50,
			RRFConstant:    60,
			LexicalWeight:  1.0,
			VectorWeight:   1.0,
			BM25K1:         1.5,
			BM25B:          0.75,
			RequestTimeout: 8 * time.Second,
		},
		Selector: SelectorConfig{
			MaxNamespaces: 3,
			MinScore:      1,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Model:     "policy-minilm",
			Timeout:   15 * time.Second,
			CacheSize: 256,
		},
		Vector: VectorConfig{
			Provider:     "local",
			Timeout:      5 * time.Second,
			RetryBackoff: 200 * time.Millisecond,
		},
		Cache: CacheConfig{
			Capacity:    512,
			TTL:         15 * time.Minute,
			ArtifactDir: "cache",
		},
	}
}

// Load reads the config file at path, applies defaults for unset fields,
// then applies environment overrides. A missing file is not an error: the
// defaults plus environment are used, matching container deployments that
// configure everything through the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env-only configuration.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides deployment-sensitive settings from POLICYRAG_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("POLICYRAG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("POLICYRAG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("POLICYRAG_SNAPSHOT_PATH"); v != "" {
		c.Corpus.SnapshotPath = v
	}
	if v := os.Getenv("POLICYRAG_EMBEDDING_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
		c.Embeddings.Provider = "http"
	}
	if v := os.Getenv("POLICYRAG_EMBEDDING_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("POLICYRAG_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("POLICYRAG_VECTOR_ENDPOINT"); v != "" {
		c.Vector.Endpoint = v
		c.Vector.Provider = "http"
	}
	if v := os.Getenv("POLICYRAG_VECTOR_API_KEY"); v != "" {
		c.Vector.APIKey = v
	}
	if v := os.Getenv("POLICYRAG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("search.default_top_k must be positive, got %d", c.Search.DefaultTopK)
	}
	if c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search.max_top_k (%d) must be >= default_top_k (%d)", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %v", c.Search.RRFConstant)
	}
	if c.Search.BM25K1 <= 0 || c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return fmt.Errorf("bm25 parameters out of range: k1=%v b=%v", c.Search.BM25K1, c.Search.BM25B)
	}
	if c.Selector.MaxNamespaces <= 0 {
		return fmt.Errorf("selector.max_namespaces must be positive, got %d", c.Selector.MaxNamespaces)
	}
	if c.Embeddings.Provider == "http" && c.Embeddings.Endpoint == "" {
		return fmt.Errorf("embeddings.endpoint is required with the http provider")
	}
	if c.Vector.Provider == "http" && c.Vector.Endpoint == "" {
		return fmt.Errorf("vector.endpoint is required with the http provider")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
