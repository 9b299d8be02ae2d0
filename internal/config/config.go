// Package config loads and validates skuseek configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/skuseek/config.yaml)
//  3. Project config (.skuseek.yaml in the working directory)
//  4. Environment variables (SKUSEEK_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// Config represents the complete skuseek configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Keyword    KeywordConfig    `yaml:"keyword" json:"keyword"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer" json:"analyzer"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// PathsConfig configures where catalog data and indexes live.
type PathsConfig struct {
	// DataDir is the root directory for all on-disk state.
	// Defaults to ~/.skuseek.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Catalog is the JSON catalog snapshot consumed by `skuseek index`
	// and watched by `skuseek watch`.
	Catalog string `yaml:"catalog" json:"catalog"`
}

// SearchConfig configures fusion and retrieval behavior.
type SearchConfig struct {
	// RRFConstant is the reciprocal rank fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// DefaultK is the result count used when a query does not set one.
	DefaultK int `yaml:"default_k" json:"default_k"`

	// MaxK caps the per-query result count.
	MaxK int `yaml:"max_k" json:"max_k"`

	// SemanticTimeout bounds a single semantic retrieval.
	SemanticTimeout time.Duration `yaml:"semantic_timeout" json:"semantic_timeout"`

	// KeywordTimeout bounds a single keyword retrieval.
	KeywordTimeout time.Duration `yaml:"keyword_timeout" json:"keyword_timeout"`

	// OversampleFactor multiplies k for backends that filter after
	// retrieval, so post-filtering still yields k survivors.
	OversampleFactor int `yaml:"oversample_factor" json:"oversample_factor"`
}

// KeywordConfig configures the BM25 keyword index.
type KeywordConfig struct {
	// Backend selects the keyword index implementation.
	// Options: "memory" (default, copy-on-write in-process index) or
	// "bleve" (disk index with native filter pushdown).
	Backend string `yaml:"backend" json:"backend"`

	// K1 controls BM25 term-frequency saturation. Default: 1.2.
	K1 float64 `yaml:"k1" json:"k1"`

	// B controls BM25 document-length normalization. Default: 0.75.
	B float64 `yaml:"b" json:"b"`

	// MinTokenLength drops tokens shorter than this after normalization.
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`

	// StopWords are removed at index and query time. Empty list disables
	// stop-word removal.
	StopWords []string `yaml:"stop_words" json:"stop_words"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "openai" or "static".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding dimensionality.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BaseURL overrides the provider endpoint for OpenAI-compatible servers.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// CacheSize is the LRU embedding cache capacity. 0 disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// AnalyzerConfig configures the LLM query analyzer.
type AnalyzerConfig struct {
	// Enabled turns on LLM filter extraction. When off, or on any
	// analyzer error, the raw query text is searched with no filters.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Model is the chat model used for filter extraction.
	Model string `yaml:"model" json:"model"`
	// Timeout bounds one analyzer call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// WatchConfig configures the catalog snapshot watcher.
type WatchConfig struct {
	// Debounce is the quiet period after the last file event before a
	// reindex is triggered.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
			Catalog: "catalog.json",
		},
		Search: SearchConfig{
			RRFConstant:      60,
			DefaultK:         10,
			MaxK:             100,
			SemanticTimeout:  2 * time.Second,
			KeywordTimeout:   2 * time.Second,
			OversampleFactor: 4,
		},
		Keyword: KeywordConfig{
			Backend:        "memory",
			K1:             1.2,
			B:              0.75,
			MinTokenLength: 2,
			StopWords:      nil,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  64,
			CacheSize:  1024,
		},
		Analyzer: AnalyzerConfig{
			Enabled: false,
			Model:   "gpt-4o-mini",
			Timeout: 5 * time.Second,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// defaultDataDir returns the default on-disk state directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".skuseek")
	}
	return filepath.Join(home, ".skuseek")
}

// KeywordIndexPath returns the gob snapshot path for the memory backend.
func (c *Config) KeywordIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "keyword.gob")
}

// BleveIndexPath returns the on-disk bleve index directory.
func (c *Config) BleveIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "keyword.bleve")
}

// VectorIndexPath returns the HNSW graph snapshot path.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.hnsw")
}

// CatalogDBPath returns the SQLite product store path.
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/skuseek/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/skuseek/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "skuseek", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "skuseek", "config.yaml")
	}
	return filepath.Join(home, ".config", "skuseek", "config.yaml")
}

// Load loads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromDir attempts to load configuration from .skuseek.yaml or .skuseek.yml.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, ".skuseek.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".skuseek.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.Catalog != "" {
		c.Paths.Catalog = other.Paths.Catalog
	}

	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.DefaultK != 0 {
		c.Search.DefaultK = other.Search.DefaultK
	}
	if other.Search.MaxK != 0 {
		c.Search.MaxK = other.Search.MaxK
	}
	if other.Search.SemanticTimeout != 0 {
		c.Search.SemanticTimeout = other.Search.SemanticTimeout
	}
	if other.Search.KeywordTimeout != 0 {
		c.Search.KeywordTimeout = other.Search.KeywordTimeout
	}
	if other.Search.OversampleFactor != 0 {
		c.Search.OversampleFactor = other.Search.OversampleFactor
	}

	if other.Keyword.Backend != "" {
		c.Keyword.Backend = other.Keyword.Backend
	}
	if other.Keyword.K1 != 0 {
		c.Keyword.K1 = other.Keyword.K1
	}
	if other.Keyword.B != 0 {
		c.Keyword.B = other.Keyword.B
	}
	if other.Keyword.MinTokenLength != 0 {
		c.Keyword.MinTokenLength = other.Keyword.MinTokenLength
	}
	if len(other.Keyword.StopWords) > 0 {
		c.Keyword.StopWords = other.Keyword.StopWords
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Analyzer.Enabled {
		c.Analyzer.Enabled = true
	}
	if other.Analyzer.Model != "" {
		c.Analyzer.Model = other.Analyzer.Model
	}
	if other.Analyzer.Timeout != 0 {
		c.Analyzer.Timeout = other.Analyzer.Timeout
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// applyEnvOverrides applies SKUSEEK_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SKUSEEK_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("SKUSEEK_SEMANTIC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.SemanticTimeout = d
		}
	}
	if v := os.Getenv("SKUSEEK_KEYWORD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.KeywordTimeout = d
		}
	}
	if v := os.Getenv("SKUSEEK_KEYWORD_BACKEND"); v != "" {
		c.Keyword.Backend = v
	}
	if v := os.Getenv("SKUSEEK_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SKUSEEK_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SKUSEEK_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("SKUSEEK_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SKUSEEK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.RRFConstant <= 0 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant), nil)
	}
	if c.Search.DefaultK <= 0 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.default_k must be positive, got %d", c.Search.DefaultK), nil)
	}
	if c.Search.MaxK < c.Search.DefaultK {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.max_k (%d) must be >= search.default_k (%d)", c.Search.MaxK, c.Search.DefaultK), nil)
	}
	if c.Search.SemanticTimeout <= 0 || c.Search.KeywordTimeout <= 0 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			"search timeouts must be positive", nil)
	}
	if c.Search.OversampleFactor < 1 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search.oversample_factor must be >= 1, got %d", c.Search.OversampleFactor), nil)
	}

	switch strings.ToLower(c.Keyword.Backend) {
	case "memory", "bleve":
	default:
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("keyword.backend must be 'memory' or 'bleve', got %s", c.Keyword.Backend), nil)
	}
	if c.Keyword.K1 < 0 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("keyword.k1 must be non-negative, got %f", c.Keyword.K1), nil)
	}
	if c.Keyword.B < 0 || c.Keyword.B > 1 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("keyword.b must be between 0 and 1, got %f", c.Keyword.B), nil)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "openai", "static":
	default:
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.provider must be 'openai' or 'static', got %s", c.Embeddings.Provider), nil)
	}
	if c.Embeddings.Dimensions <= 0 {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel), nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeConfigInvalid, "failed to marshal config", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
