package store

import (
	"fmt"
	"strings"

	"github.com/skuseek/skuseek/internal/config"
	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// NewKeywordIndex creates the keyword index selected by config.
//
// "memory" builds the copy-on-write in-process index; if a gob snapshot
// exists at the configured path it is loaded, otherwise the index starts
// empty and `skuseek index` fills it. "bleve" opens (or creates) the
// disk index, which supports native filter pushdown.
func NewKeywordIndex(cfg *config.Config) (KeywordIndex, error) {
	bm25 := BM25Config{
		K1:             cfg.Keyword.K1,
		B:              cfg.Keyword.B,
		StopWords:      cfg.Keyword.StopWords,
		MinTokenLength: cfg.Keyword.MinTokenLength,
	}

	switch strings.ToLower(cfg.Keyword.Backend) {
	case "", "memory":
		idx := NewMemIndex(bm25)
		if err := idx.Load(cfg.KeywordIndexPath()); err != nil {
			// Missing snapshot means a fresh index; corruption does not
			if skerrors.GetCode(err) == skerrors.ErrCodeCorruptIndex {
				return nil, err
			}
		}
		return idx, nil
	case "bleve":
		return NewBleveIndex(cfg.BleveIndexPath(), bm25)
	default:
		return nil, skerrors.New(skerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown keyword backend %q", cfg.Keyword.Backend), nil)
	}
}
