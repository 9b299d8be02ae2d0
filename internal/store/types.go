// Package store provides the retrieval backends: the BM25 keyword index
// (in-memory and bleve implementations) and the HNSW vector store.
package store

import (
	"context"

	"github.com/skuseek/skuseek/internal/filter"
)

// Document is one indexable catalog entry. Documents are immutable once
// indexed; an upsert replaces the previous version wholesale.
type Document struct {
	// ID is the stable document identity (the product code).
	ID string
	// Text is the searchable text, tokenized at index time.
	Text string
	// Attrs holds the filterable attributes.
	Attrs filter.Attributes
}

// KeywordResult is a single scored keyword hit.
type KeywordResult struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about a keyword index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// KeywordIndex provides BM25 keyword search over catalog documents.
//
// Implementations must give readers a consistent snapshot: a Search that
// overlaps a Rebuild or Upsert sees either the old state or the new state,
// never a mix. Searching an empty index returns empty results, not an error.
type KeywordIndex interface {
	// Rebuild atomically replaces the index contents with docs.
	Rebuild(ctx context.Context, docs []Document) error

	// Upsert inserts or replaces a single document.
	Upsert(ctx context.Context, doc Document) error

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Clear removes all documents.
	Clear(ctx context.Context) error

	// Search returns up to k documents matching text, scored by BM25,
	// restricted to documents satisfying f. Results are ordered by
	// descending score with ties broken by ID ascending.
	Search(ctx context.Context, text string, f filter.Filter, k int) ([]KeywordResult, error)

	// Count returns the number of indexed documents.
	Count() int

	// Stats returns index statistics.
	Stats() IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures BM25 scoring and tokenization.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      nil,
		MinTokenLength: 2,
	}
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Product code
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (1536 for text-embedding-3-small)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides semantic search over product embeddings.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store.
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}
