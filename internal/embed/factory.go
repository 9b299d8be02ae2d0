package embed

import (
	"fmt"
	"strings"

	"github.com/skuseek/skuseek/internal/config"
	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// New creates the embedder selected by config, wrapped in the LRU cache
// when a cache size is configured.
func New(cfg *config.Config) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch strings.ToLower(cfg.Embeddings.Provider) {
	case "", "static":
		inner = NewStaticEmbedder(cfg.Embeddings.Dimensions)
	case "openai":
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.Embeddings.BaseURL,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embeddings provider %q", cfg.Embeddings.Provider), nil)
	}

	if cfg.Embeddings.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
	}
	return inner, nil
}
