// Package search fuses semantic and keyword retrieval with Reciprocal
// Rank Fusion (RRF).
package search

import (
	"context"
	"time"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/query"
	"github.com/skuseek/skuseek/internal/store"
)

// Retrieval source names, used in logs and degradation reporting.
const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
)

// Candidate is one ranked hit from a single retrieval source.
// Rank is implied by position (1-indexed).
type Candidate struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// Retriever produces a ranked candidate list for a query.
// Implementations apply the query filter before ranking is truncated, so
// a full candidate list always reflects the filtered corpus.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, q query.Query) ([]Candidate, error)
}

// Result is one fused search hit.
type Result struct {
	// ID is the product code.
	ID string

	// Score is the fused RRF score. In semantic-only mode it is the raw
	// similarity score.
	Score float64

	// SemanticRank is the position in the semantic list (1-indexed, 0 if
	// absent). KeywordRank likewise for the keyword list.
	SemanticRank int
	KeywordRank  int

	// SemanticScore and KeywordScore preserve the per-source scores.
	SemanticScore float64
	KeywordScore  float64

	// MatchedTerms are the query terms the keyword source matched.
	MatchedTerms []string

	// Product is the full catalog entry, populated during enrichment.
	// Nil when the product has vanished from the catalog since indexing.
	Product *catalog.Product
}

// Response is a completed search.
type Response struct {
	Results []*Result

	// Degraded is true when one retrieval source failed and results come
	// from the surviving source alone.
	Degraded bool

	// FailedSources names the sources that failed when Degraded is true.
	FailedSources []string

	// RequestID correlates the response with its log lines.
	RequestID string

	// Took is the total search duration.
	Took time.Duration
}

// EngineStats summarizes index state for the status command.
type EngineStats struct {
	Keyword      store.IndexStats
	VectorCount  int
	CatalogCount int
}
