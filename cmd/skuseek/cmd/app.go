package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/config"
	"github.com/skuseek/skuseek/internal/embed"
	"github.com/skuseek/skuseek/internal/query"
	"github.com/skuseek/skuseek/internal/search"
	"github.com/skuseek/skuseek/internal/store"
)

// openEngine wires up the search engine from config: keyword index,
// vector store, embedder, catalog mirror, and the optional analyzer.
// Existing on-disk indexes are loaded when present.
func openEngine(cfg *config.Config) (*search.Engine, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	keyword, err := store.NewKeywordIndex(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(cfg)
	if err != nil {
		_ = keyword.Close()
		return nil, err
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(cfg.Embeddings.Dimensions))
	if err != nil {
		_ = keyword.Close()
		_ = embedder.Close()
		return nil, err
	}
	if _, statErr := os.Stat(cfg.VectorIndexPath()); statErr == nil {
		if loadErr := vectors.Load(cfg.VectorIndexPath()); loadErr != nil {
			slog.Warn("vector index load failed, starting empty",
				"path", cfg.VectorIndexPath(), "error", loadErr)
		}
	}

	cat, err := catalog.OpenStore(cfg.CatalogDBPath())
	if err != nil {
		_ = keyword.Close()
		_ = embedder.Close()
		_ = vectors.Close()
		return nil, err
	}

	analyzer := query.NewAnalyzer(cfg.Analyzer, os.Getenv("OPENAI_API_KEY"), slog.Default())

	return search.NewEngine(keyword, vectors, embedder, cat, cfg,
		search.WithAnalyzer(analyzer),
		search.WithLogger(slog.Default()))
}
