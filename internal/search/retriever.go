package search

import (
	"context"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/embed"
	skerrors "github.com/skuseek/skuseek/internal/errors"
	"github.com/skuseek/skuseek/internal/filter"
	"github.com/skuseek/skuseek/internal/query"
	"github.com/skuseek/skuseek/internal/store"
)

// AttributeSource resolves filterable attributes for candidate IDs.
// The vector store holds no attributes, so semantic retrieval filters
// against this source after the nearest-neighbor search.
type AttributeSource interface {
	AttributesFor(ctx context.Context, ids []string) (map[string]filter.Attributes, error)
}

// CatalogAttributes adapts the catalog store to AttributeSource.
type CatalogAttributes struct {
	Store *catalog.Store
}

func (c CatalogAttributes) AttributesFor(ctx context.Context, ids []string) (map[string]filter.Attributes, error) {
	products, err := c.Store.GetBatch(ctx, ids)
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]filter.Attributes, len(products))
	for code, p := range products {
		attrs[code] = p.Attributes()
	}
	return attrs, nil
}

// SemanticRetriever ranks candidates by vector similarity. Filters are
// applied after retrieval, so filtered queries oversample the neighbor
// search to keep k survivors likely.
type SemanticRetriever struct {
	vectors    store.VectorStore
	embedder   embed.Embedder
	attrs      AttributeSource
	oversample int
}

// NewSemanticRetriever creates a semantic retriever.
// oversample <= 1 disables oversampling.
func NewSemanticRetriever(vectors store.VectorStore, embedder embed.Embedder, attrs AttributeSource, oversample int) *SemanticRetriever {
	if oversample < 1 {
		oversample = 1
	}
	return &SemanticRetriever{
		vectors:    vectors,
		embedder:   embedder,
		attrs:      attrs,
		oversample: oversample,
	}
}

func (r *SemanticRetriever) Name() string { return SourceSemantic }

// Retrieve embeds the query text when no vector is given, searches the
// vector store, and post-filters against catalog attributes.
func (r *SemanticRetriever) Retrieve(ctx context.Context, q query.Query) ([]Candidate, error) {
	vec := q.Vector
	if len(vec) == 0 {
		if r.embedder == nil {
			return nil, skerrors.New(skerrors.ErrCodeMissingVector,
				"no query vector and no embedder configured", nil)
		}
		var err error
		vec, err = r.embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, skerrors.New(skerrors.ErrCodeEmbeddingFailed, "embed query", err)
		}
	}

	fetch := q.K
	if !q.Filter.Empty() {
		fetch = q.K * r.oversample
	}

	hits, err := r.vectors.Search(ctx, vec, fetch)
	if err != nil {
		return nil, err
	}

	if q.Filter.Empty() {
		return truncateCandidates(vectorCandidates(hits), q.K), nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	attrs, err := r.attrs.AttributesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	kept := make([]Candidate, 0, q.K)
	for _, h := range hits {
		a, ok := attrs[h.ID]
		if !ok || !q.Filter.Matches(a) {
			continue
		}
		kept = append(kept, Candidate{ID: h.ID, Score: float64(h.Score)})
		if len(kept) == q.K {
			break
		}
	}
	return kept, nil
}

// KeywordRetriever ranks candidates by BM25. The index applies filters
// itself, natively or by post-filtering, so no oversampling is needed.
type KeywordRetriever struct {
	index store.KeywordIndex
}

// NewKeywordRetriever creates a keyword retriever over the index.
func NewKeywordRetriever(index store.KeywordIndex) *KeywordRetriever {
	return &KeywordRetriever{index: index}
}

func (r *KeywordRetriever) Name() string { return SourceKeyword }

// Retrieve runs a BM25 search. An empty index yields empty candidates,
// not an error.
func (r *KeywordRetriever) Retrieve(ctx context.Context, q query.Query) ([]Candidate, error) {
	hits, err := r.index.Search(ctx, q.Text, q.Filter, q.K)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{ID: h.ID, Score: h.Score, MatchedTerms: h.MatchedTerms}
	}
	return candidates, nil
}

func vectorCandidates(hits []store.VectorResult) []Candidate {
	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{ID: h.ID, Score: float64(h.Score)}
	}
	return candidates
}

func truncateCandidates(c []Candidate, k int) []Candidate {
	if k > 0 && len(c) > k {
		return c[:k]
	}
	return c
}
