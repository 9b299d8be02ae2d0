package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 10, cfg.Search.DefaultK)
	assert.Equal(t, 100, cfg.Search.MaxK)
	assert.Equal(t, 2*time.Second, cfg.Search.SemanticTimeout)
	assert.Equal(t, 2*time.Second, cfg.Search.KeywordTimeout)

	assert.Equal(t, "memory", cfg.Keyword.Backend)
	assert.InDelta(t, 1.2, cfg.Keyword.K1, 1e-9)
	assert.InDelta(t, 0.75, cfg.Keyword.B, 1e-9)
	assert.Equal(t, 2, cfg.Keyword.MinTokenLength)

	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 1536, cfg.Embeddings.Dimensions)

	require.NoError(t, cfg.Validate())
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
search:
  rrf_constant: 30
  default_k: 5
keyword:
  backend: bleve
  k1: 1.5
embeddings:
  provider: openai
  model: text-embedding-3-large
  dimensions: 3072
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".skuseek.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, 5, cfg.Search.DefaultK)
	assert.Equal(t, "bleve", cfg.Keyword.Backend)
	assert.InDelta(t, 1.5, cfg.Keyword.K1, 1e-9)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 3072, cfg.Embeddings.Dimensions)

	// Untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Search.MaxK)
	assert.InDelta(t, 0.75, cfg.Keyword.B, 1e-9)
}

func TestLoadMissingConfigUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".skuseek.yaml"), []byte("search: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SKUSEEK_RRF_CONSTANT", "90")
	t.Setenv("SKUSEEK_KEYWORD_BACKEND", "bleve")
	t.Setenv("SKUSEEK_SEMANTIC_TIMEOUT", "750ms")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Search.RRFConstant)
	assert.Equal(t, "bleve", cfg.Keyword.Backend)
	assert.Equal(t, 750*time.Millisecond, cfg.Search.SemanticTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"negative default k", func(c *Config) { c.Search.DefaultK = -1 }},
		{"max k below default k", func(c *Config) { c.Search.MaxK = 5; c.Search.DefaultK = 10 }},
		{"unknown keyword backend", func(c *Config) { c.Keyword.Backend = "redis" }},
		{"b out of range", func(c *Config) { c.Keyword.B = 1.5 }},
		{"unknown embedder", func(c *Config) { c.Embeddings.Provider = "cohere" }},
		{"zero dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Search.RRFConstant = 42
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 42, loaded.Search.RRFConstant)
}
