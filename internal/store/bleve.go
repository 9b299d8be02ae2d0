package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	skerrors "github.com/skuseek/skuseek/internal/errors"
	"github.com/skuseek/skuseek/internal/filter"
)

const (
	// ProductTokenizerName is the name of the custom product tokenizer.
	ProductTokenizerName = "product_tokenizer"

	// ProductAnalyzerName is the name of the custom product analyzer.
	ProductAnalyzerName = "product_analyzer"

	textField  = "text"
	attrPrefix = "attrs."
)

func init() {
	registry.RegisterTokenizer(ProductTokenizerName, productTokenizerConstructor)
}

// BleveIndex is the disk-backed keyword index. Unlike MemIndex it pushes
// filters into the engine: predicates become native bleve clauses joined
// in a conjunction with the text match, so filtered-out documents are
// excluded during retrieval rather than post-filtered.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
}

var _ KeywordIndex = (*BleveIndex)(nil)

// NewBleveIndex creates a keyword index at path.
// An empty path creates an in-memory index for testing.
func NewBleveIndex(path string, config BM25Config) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, skerrors.New(skerrors.ErrCodeIndexUnavailable, "failed to open keyword index", err)
	}

	return &BleveIndex{
		index:  idx,
		path:   path,
		config: config,
	}, nil
}

// createIndexMapping builds the bleve mapping: the text field uses the
// product analyzer, attribute strings use the keyword analyzer so term
// queries match raw values exactly, and numeric attributes map to
// numeric fields automatically.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(ProductAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": ProductTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	textMapping := bleve.NewTextFieldMapping()
	textMapping.Analyzer = ProductAnalyzerName
	docMapping.AddFieldMappingsAt(textField, textMapping)

	attrsMapping := bleve.NewDocumentMapping()
	attrsMapping.DefaultAnalyzer = keyword.Name
	docMapping.AddSubDocumentMapping("attrs", attrsMapping)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = ProductAnalyzerName

	return indexMapping, nil
}

// Rebuild atomically replaces the index contents with docs.
func (b *BleveIndex) Rebuild(ctx context.Context, docs []Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	existing, err := b.allIDsLocked()
	if err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, id := range existing {
		batch.Delete(id)
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(doc.ID, bleveDocument(doc)); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute rebuild batch: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a single document.
func (b *BleveIndex) Upsert(ctx context.Context, doc Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	if err := b.index.Index(doc.ID, bleveDocument(doc)); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes documents by ID.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Clear removes all documents.
func (b *BleveIndex) Clear(ctx context.Context) error {
	return b.Rebuild(ctx, nil)
}

// Search returns up to k documents matching text, with the filter pushed
// down into the bleve query.
func (b *BleveIndex) Search(ctx context.Context, text string, f filter.Filter, k int) ([]KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	if k <= 0 || strings.TrimSpace(text) == "" {
		return []KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(text)
	matchQuery.SetField(textField)
	matchQuery.Analyzer = ProductAnalyzerName

	var q query.Query = matchQuery
	if clauses := pushdownQueries(f); len(clauses) > 0 {
		conj := bleve.NewConjunctionQuery(matchQuery)
		conj.AddQuery(clauses...)
		q = conj
	}

	req := bleve.NewSearchRequest(q)
	req.Size = k
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, skerrors.New(skerrors.ErrCodeRetrievalFailure, "keyword search failed", err)
	}

	results := make([]KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, KeywordResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	// bleve leaves equal-score order unspecified
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// pushdownQueries converts filter clauses to native bleve queries.
func pushdownQueries(f filter.Filter) []query.Query {
	clauses := f.Pushdown()
	if len(clauses) == 0 {
		return nil
	}

	queries := make([]query.Query, 0, len(clauses))
	for _, clause := range clauses {
		field := attrPrefix + clause.Field
		switch clause.Kind {
		case filter.ClauseNumericRange:
			incl := true
			nq := bleve.NewNumericRangeInclusiveQuery(clause.Min, clause.Max, &incl, &incl)
			nq.SetField(field)
			queries = append(queries, nq)
		case filter.ClauseOneOf:
			disj := bleve.NewDisjunctionQuery()
			for _, value := range clause.Values {
				tq := bleve.NewTermQuery(value)
				tq.SetField(field)
				disj.AddQuery(tq)
			}
			queries = append(queries, disj)
		case filter.ClauseEquals:
			tq := bleve.NewTermQuery(clause.Value)
			tq.SetField(field)
			queries = append(queries, tq)
		}
	}
	return queries
}

// Count returns the number of indexed documents.
func (b *BleveIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	n, _ := b.index.DocCount()
	return int(n)
}

// Stats returns index statistics. bleve does not expose term counts or
// average document length.
func (b *BleveIndex) Stats() IndexStats {
	return IndexStats{DocumentCount: b.Count()}
}

// Save is a no-op: a disk-backed bleve index persists every batch.
func (b *BleveIndex) Save(path string) error {
	return nil
}

// Load opens an existing index from disk.
func (b *BleveIndex) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil && !b.closed {
		_ = b.index.Close()
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable,
			fmt.Sprintf("failed to open keyword index %s", path), err)
	}

	b.index = idx
	b.path = path
	b.closed = false
	return nil
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func (b *BleveIndex) allIDsLocked() ([]string, error) {
	docCount, _ := b.index.DocCount()
	if docCount == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list document IDs: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// bleveDocument shapes a Document for indexing.
func bleveDocument(doc Document) map[string]interface{} {
	return map[string]interface{}{
		textField: doc.Text,
		"attrs":   map[string]any(doc.Attrs),
	}
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == textField {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	sort.Strings(result)
	return result
}

// productTokenizerConstructor creates the product tokenizer for bleve.
func productTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveProductTokenizer{tokenizer: NewTokenizer(DefaultBM25Config())}, nil
}

// bleveProductTokenizer adapts Tokenizer to the bleve analysis pipeline so
// index-time and query-time terms match the in-memory backend.
type bleveProductTokenizer struct {
	tokenizer *Tokenizer
}

// Tokenize implements analysis.Tokenizer.
func (t *bleveProductTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := t.tokenizer.Tokenize(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}
