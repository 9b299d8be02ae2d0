package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/config"
	"github.com/skuseek/skuseek/internal/embed"
	skerrors "github.com/skuseek/skuseek/internal/errors"
	"github.com/skuseek/skuseek/internal/query"
	"github.com/skuseek/skuseek/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine runs hybrid search: semantic and keyword retrieval in parallel,
// fused with RRF, enriched from the catalog store.
type Engine struct {
	keyword  store.KeywordIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	catalog  *catalog.Store
	cfg      *config.Config
	fusion   *RRFFusion
	logger   *slog.Logger

	// Retrieval sources. Built from the stores above; swappable for tests.
	semanticSource Retriever
	keywordSource  Retriever

	analyzer *query.Analyzer
	mu       sync.Mutex
}

// EngineOption configures optional engine behavior.
type EngineOption func(*Engine)

// WithAnalyzer enables LLM filter extraction for queries that carry no
// explicit filter.
func WithAnalyzer(a *query.Analyzer) EngineOption {
	return func(e *Engine) { e.analyzer = a }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a hybrid search engine. All store dependencies are
// required; the analyzer is optional.
func NewEngine(
	keyword store.KeywordIndex,
	vectors store.VectorStore,
	embedder embed.Embedder,
	cat *catalog.Store,
	cfg *config.Config,
	opts ...EngineOption,
) (*Engine, error) {
	if keyword == nil {
		return nil, fmt.Errorf("%w: keyword index is required", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog store is required", ErrNilDependency)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrNilDependency)
	}

	e := &Engine{
		keyword:  keyword,
		vectors:  vectors,
		embedder: embedder,
		catalog:  cat,
		cfg:      cfg,
		fusion:   NewRRFFusion(cfg.Search.RRFConstant),
		logger:   slog.Default(),
	}
	e.semanticSource = NewSemanticRetriever(vectors, embedder,
		CatalogAttributes{Store: cat}, cfg.Search.OversampleFactor)
	e.keywordSource = NewKeywordRetriever(keyword)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search executes a query and returns fused, enriched results.
//
// In hybrid mode both sources run in parallel under their own timeouts.
// One source failing degrades the response to the surviving source; both
// failing is an error.
func (e *Engine) Search(ctx context.Context, q query.Query) (*Response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	q.Normalize(e.cfg.Search.DefaultK)
	if err := q.Validate(e.cfg.Search.MaxK); err != nil {
		return nil, err
	}

	// Extract filters from natural language when the caller gave none.
	if e.analyzer != nil && q.Filter.Empty() && q.Text != "" {
		analysis := e.analyzer.Analyze(ctx, q.Text)
		q.Text = analysis.SearchText
		q.Filter = analysis.Filter
	}

	var resp *Response
	var err error
	switch q.Mode {
	case query.ModeSemantic:
		resp, err = e.semanticSearch(ctx, q)
	default:
		resp, err = e.hybridSearch(ctx, q)
	}
	if err != nil {
		e.logger.Error("search failed",
			"request_id", requestID,
			"mode", string(q.Mode),
			"error", err)
		return nil, err
	}

	if err := e.enrich(ctx, resp.Results); err != nil {
		return nil, skerrors.New(skerrors.ErrCodeCatalogStore, "enrich results", err)
	}

	resp.RequestID = requestID
	resp.Took = time.Since(start)
	e.logger.Info("search complete",
		"request_id", requestID,
		"mode", string(q.Mode),
		"results", len(resp.Results),
		"degraded", resp.Degraded,
		"took", resp.Took)
	return resp, nil
}

// semanticSearch runs the semantic source alone. With a single source
// there is nothing to degrade to, so failure is an error.
func (e *Engine) semanticSearch(ctx context.Context, q query.Query) (*Response, error) {
	tctx, cancel := e.sourceContext(ctx, e.cfg.Search.SemanticTimeout)
	defer cancel()

	candidates, err := e.semanticSource.Retrieve(tctx, q)
	if err != nil {
		return nil, classifyRetrievalErr(SourceSemantic, err)
	}

	results := make([]*Result, len(candidates))
	for i, c := range candidates {
		results[i] = &Result{
			ID:            c.ID,
			Score:         c.Score,
			SemanticRank:  i + 1,
			SemanticScore: c.Score,
		}
	}
	return &Response{Results: results}, nil
}

// hybridSearch fans out to both sources and fuses the survivors.
func (e *Engine) hybridSearch(ctx context.Context, q query.Query) (*Response, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		semantic, keyword []Candidate
		semErr, kwErr     error
	)

	g.Go(func() error {
		tctx, cancel := e.sourceContext(gctx, e.cfg.Search.SemanticTimeout)
		defer cancel()
		semantic, semErr = e.semanticSource.Retrieve(tctx, q)
		// Failure degrades, it does not cancel the sibling
		return nil
	})
	g.Go(func() error {
		tctx, cancel := e.sourceContext(gctx, e.cfg.Search.KeywordTimeout)
		defer cancel()
		keyword, kwErr = e.keywordSource.Retrieve(tctx, q)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if semErr != nil && kwErr != nil {
		return nil, skerrors.BothSourcesFailed(
			classifyRetrievalErr(SourceSemantic, semErr),
			classifyRetrievalErr(SourceKeyword, kwErr))
	}

	resp := &Response{}
	if semErr != nil {
		resp.Degraded = true
		resp.FailedSources = append(resp.FailedSources, SourceSemantic)
		e.logger.Warn("semantic retrieval failed, degrading to keyword only",
			"error", semErr)
	}
	if kwErr != nil {
		resp.Degraded = true
		resp.FailedSources = append(resp.FailedSources, SourceKeyword)
		e.logger.Warn("keyword retrieval failed, degrading to semantic only",
			"error", kwErr)
	}

	resp.Results = e.fusion.Fuse(semantic, keyword, q.K)
	return resp, nil
}

func (e *Engine) sourceContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classifyRetrievalErr wraps a source failure, distinguishing timeouts
// from other failures. Already-typed errors pass through.
func classifyRetrievalErr(source string, err error) error {
	var serr *skerrors.SearchError
	if errors.As(err, &serr) {
		return serr.WithSource(source)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return skerrors.RetrievalTimeout(source, err)
	}
	return skerrors.RetrievalFailure(source, err)
}

// enrich attaches full catalog entries to results in a single batch read.
// Products gone from the catalog leave a nil Product rather than dropping
// the result.
func (e *Engine) enrich(ctx context.Context, results []*Result) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	products, err := e.catalog.GetBatch(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range results {
		if p, ok := products[r.ID]; ok {
			product := p
			r.Product = &product
		}
	}
	return nil
}

// Rebuild atomically replaces the catalog mirror and both indexes from a
// full product snapshot.
func (e *Engine) Rebuild(ctx context.Context, products []catalog.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	docs := make([]store.Document, len(products))
	texts := make([]string, len(products))
	ids := make([]string, len(products))
	for i, p := range products {
		docs[i] = store.Document{ID: p.Code, Text: p.SearchText(), Attrs: p.Attributes()}
		texts[i] = p.SearchText()
		ids[i] = p.Code
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeEmbeddingFailed, "embed catalog", err)
	}

	if err := e.catalog.ReplaceAll(ctx, products); err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "replace catalog", err)
	}
	if err := e.keyword.Rebuild(ctx, docs); err != nil {
		return err
	}

	// Drop vectors for products no longer in the snapshot
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range e.vectors.AllIDs() {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := e.vectors.Delete(ctx, stale); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		if err := e.vectors.Add(ctx, ids, embeddings); err != nil {
			return err
		}
	}

	e.logger.Info("rebuild complete",
		"products", len(products),
		"stale_vectors", len(stale))
	return nil
}

// Upsert indexes a single product in the catalog and both indexes.
func (e *Engine) Upsert(ctx context.Context, p catalog.Product) error {
	if err := p.Validate(); err != nil {
		return skerrors.InvalidQuery(err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	vec, err := e.embedder.Embed(ctx, p.SearchText())
	if err != nil {
		return skerrors.New(skerrors.ErrCodeEmbeddingFailed, "embed product", err)
	}
	if err := e.catalog.Upsert(ctx, p); err != nil {
		return skerrors.New(skerrors.ErrCodeCatalogStore, "upsert product", err)
	}
	if err := e.keyword.Upsert(ctx, store.Document{
		ID:    p.Code,
		Text:  p.SearchText(),
		Attrs: p.Attributes(),
	}); err != nil {
		return err
	}
	return e.vectors.Add(ctx, []string{p.Code}, [][]float32{vec})
}

// Delete removes products from both indexes. Catalog rows are left in
// place and trimmed on the next rebuild; without index entries they can
// never surface as results.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.keyword.Delete(ctx, ids); err != nil {
		return err
	}
	return e.vectors.Delete(ctx, ids)
}

// Stats reports index and catalog sizes.
func (e *Engine) Stats(ctx context.Context) (EngineStats, error) {
	count, err := e.catalog.Count(ctx)
	if err != nil {
		return EngineStats{}, skerrors.New(skerrors.ErrCodeCatalogStore, "count catalog", err)
	}
	return EngineStats{
		Keyword:      e.keyword.Stats(),
		VectorCount:  e.vectors.Count(),
		CatalogCount: count,
	}, nil
}

// Save persists both indexes to their configured paths.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.keyword.Save(e.cfg.KeywordIndexPath()); err != nil {
		return err
	}
	return e.vectors.Save(e.cfg.VectorIndexPath())
}

// Close releases all engine resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.keyword.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.vectors.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
