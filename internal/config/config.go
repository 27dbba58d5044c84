// Package config loads and validates the tradesearch configuration.
//
// Resolution order (later wins):
//  1. Built-in defaults
//  2. Config file (tradesearch.yaml)
//  3. Environment variables (TRADESEARCH_*)
//
// Engine tunables (fusion weights, boosts, rerank controls) are NOT part of
// this config: they live in the settings store and are owned by the admin
// surface. This config covers process-level concerns only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	tserr "github.com/mercavo/tradesearch/internal/errors"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "tradesearch.yaml"

// Config represents the complete tradesearch configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir holds the sqlite databases and the bleve lexical index.
	DataDir string `yaml:"data_dir"`
}

// EmbeddingsConfig configures the embedding provider.
// When APIKey is empty the engine uses the deterministic local fallback.
type EmbeddingsConfig struct {
	// Provider selects the remote provider: "openai" or "none".
	Provider string `yaml:"provider"`
	// APIKey authenticates against the remote provider. May reference an
	// environment variable via ${VAR} syntax.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `yaml:"base_url"`
	// Model is the embedding model identifier.
	Model string `yaml:"model"`
	// Dimensions pins the expected vector dimension; 0 = provider default.
	Dimensions int `yaml:"dimensions"`
	// Timeout bounds a single remote embedding call.
	Timeout time.Duration `yaml:"timeout"`
	// CacheSize is the query-embedding LRU capacity.
	CacheSize int `yaml:"cache_size"`
}

// RerankConfig configures the cross-encoder rerank provider.
// Whether reranking runs at all is a settings-store tunable; this only
// says where the provider lives.
type RerankConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// Embedding provider names.
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Default configuration values.
const (
	DefaultDataDir        = ".tradesearch"
	DefaultEmbedProvider  = ProviderOpenAI
	DefaultEmbedModel     = "text-embedding-3-small"
	DefaultEmbedTimeout   = 15 * time.Second
	DefaultEmbedCacheSize = 1000
	DefaultRerankModel    = "rerank-1"
	DefaultLogLevel       = "info"
)

// NewConfig returns a config populated with defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads the config file at path (or the default location when path is
// empty), applies env overrides and defaults, and validates the result.
// A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}

	cfg := &Config{}
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case os.IsNotExist(err):
		// Defaults-only run.
	case err != nil:
		return nil, tserr.Wrap(tserr.ErrCodeConfigNotFound, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, tserr.New(tserr.ErrCodeConfigInvalid,
				fmt.Sprintf("parse %s: %v", path, err), err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = DefaultDataDir
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = DefaultEmbedProvider
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = DefaultEmbedModel
	}
	if c.Embeddings.Timeout <= 0 {
		c.Embeddings.Timeout = DefaultEmbedTimeout
	}
	if c.Embeddings.CacheSize <= 0 {
		c.Embeddings.CacheSize = DefaultEmbedCacheSize
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = DefaultRerankModel
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	c.Embeddings.APIKey = expandEnvRef(c.Embeddings.APIKey)
	c.Rerank.APIKey = expandEnvRef(c.Rerank.APIKey)
}

// applyEnvOverrides applies TRADESEARCH_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRADESEARCH_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("TRADESEARCH_EMBED_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("TRADESEARCH_EMBED_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("TRADESEARCH_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("TRADESEARCH_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("TRADESEARCH_RERANK_API_KEY"); v != "" {
		c.Rerank.APIKey = v
	}
	if v := os.Getenv("TRADESEARCH_RERANK_BASE_URL"); v != "" {
		c.Rerank.BaseURL = v
	}
	if v := os.Getenv("TRADESEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks config invariants.
func (c *Config) Validate() error {
	switch c.Embeddings.Provider {
	case ProviderOpenAI, ProviderNone:
	default:
		return tserr.New(tserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embeddings provider %q (want openai or none)", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Dimensions < 0 {
		return tserr.New(tserr.ErrCodeConfigInvalid, "embeddings.dimensions must be >= 0", nil)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return tserr.New(tserr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown log level %q", c.Logging.Level), nil)
	}
	return nil
}

// DatabasePath returns the sqlite database path inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tradesearch.db")
}

// LexicalIndexPath returns the bleve index path inside the data dir.
func (c *Config) LexicalIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "lexical.bleve")
}

// expandEnvRef resolves a ${VAR} reference against the environment.
// Plain values pass through unchanged.
func expandEnvRef(v string) string {
	if len(v) > 3 && v[0] == '$' && v[1] == '{' && v[len(v)-1] == '}' {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}
