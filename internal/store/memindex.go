package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	skerrors "github.com/skuseek/skuseek/internal/errors"
	"github.com/skuseek/skuseek/internal/filter"
)

func init() {
	// Attribute values cross the gob boundary as interface values.
	gob.Register("")
	gob.Register(float64(0))
	gob.Register([]string{})
}

// memSnapshot is one immutable generation of the index. Writers build a
// new snapshot and swap the pointer; readers score against whichever
// generation they grabbed, so a search never sees a half-applied write.
type memSnapshot struct {
	// Postings maps term -> doc ID -> term frequency.
	Postings map[string]map[string]int
	// Attrs maps doc ID -> filterable attributes.
	Attrs map[string]filter.Attributes
	// DocLens maps doc ID -> token count.
	DocLens map[string]int
	// TotalLen is the sum of all document lengths.
	TotalLen int
	// Terms maps doc ID -> its terms, needed to unindex on upsert.
	Terms map[string][]string
}

func newMemSnapshot() *memSnapshot {
	return &memSnapshot{
		Postings: map[string]map[string]int{},
		Attrs:    map[string]filter.Attributes{},
		DocLens:  map[string]int{},
		Terms:    map[string][]string{},
	}
}

// MemIndex is the in-memory BM25 keyword index with copy-on-write
// snapshot semantics.
type MemIndex struct {
	mu        sync.RWMutex
	snap      *memSnapshot
	cfg       BM25Config
	tokenizer *Tokenizer
	closed    bool
}

var _ KeywordIndex = (*MemIndex)(nil)

// NewMemIndex creates an empty in-memory keyword index.
func NewMemIndex(cfg BM25Config) *MemIndex {
	if cfg.K1 == 0 {
		cfg.K1 = 1.2
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	return &MemIndex{
		snap:      newMemSnapshot(),
		cfg:       cfg,
		tokenizer: NewTokenizer(cfg),
	}
}

// Rebuild atomically replaces the index contents with docs.
func (m *MemIndex) Rebuild(ctx context.Context, docs []Document) error {
	snap := newMemSnapshot()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		addToSnapshot(snap, doc, m.tokenizer)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}
	m.snap = snap
	return nil
}

// Upsert inserts or replaces a single document.
func (m *MemIndex) Upsert(ctx context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	next := m.snap.cloneShallow()
	removeFromSnapshot(next, doc.ID)
	addToSnapshot(next, doc, m.tokenizer)
	m.snap = next
	return nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (m *MemIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	next := m.snap.cloneShallow()
	for _, id := range ids {
		removeFromSnapshot(next, id)
	}
	m.snap = next
	return nil
}

// Clear removes all documents.
func (m *MemIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}
	m.snap = newMemSnapshot()
	return nil
}

// Search returns up to k documents matching text, restricted to f.
// The filter prunes candidates before any scoring happens; corpus
// statistics (N, df, avgdl) stay global so a document's score does not
// depend on the filter.
func (m *MemIndex) Search(ctx context.Context, text string, f filter.Filter, k int) ([]KeywordResult, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}
	snap := m.snap
	m.mu.RUnlock()

	if k <= 0 {
		return []KeywordResult{}, nil
	}
	terms := m.tokenizer.Tokenize(text)
	if len(terms) == 0 || len(snap.DocLens) == 0 {
		return []KeywordResult{}, nil
	}

	n := float64(len(snap.DocLens))
	avgdl := float64(snap.TotalLen) / n
	if avgdl == 0 {
		avgdl = 1
	}

	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})

	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		postings, ok := snap.Postings[term]
		if !ok {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for id, tf := range postings {
			if !f.Empty() && !f.Matches(snap.Attrs[id]) {
				continue
			}
			dl := float64(snap.DocLens[id])
			tfF := float64(tf)
			denom := tfF + m.cfg.K1*(1-m.cfg.B+m.cfg.B*dl/avgdl)
			scores[id] += idf * tfF * (m.cfg.K1 + 1) / denom

			if matched[id] == nil {
				matched[id] = map[string]struct{}{}
			}
			matched[id][term] = struct{}{}
		}
	}

	results := make([]KeywordResult, 0, len(scores))
	for id, score := range scores {
		terms := make([]string, 0, len(matched[id]))
		for t := range matched[id] {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, KeywordResult{ID: id, Score: score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (m *MemIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0
	}
	return len(m.snap.DocLens)
}

// Stats returns index statistics.
func (m *MemIndex) Stats() IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return IndexStats{}
	}
	stats := IndexStats{
		DocumentCount: len(m.snap.DocLens),
		TermCount:     len(m.snap.Postings),
	}
	if stats.DocumentCount > 0 {
		stats.AvgDocLength = float64(m.snap.TotalLen) / float64(stats.DocumentCount)
	}
	return stats
}

// Save persists the current snapshot with gob, guarded by a file lock and
// written via temp file + rename so readers never see a torn file.
func (m *MemIndex) Save(path string) error {
	m.mu.RLock()
	snap := m.snap
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load replaces the current snapshot with one read from disk.
func (m *MemIndex) Load(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	file, err := os.Open(path)
	if err != nil {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable,
			fmt.Sprintf("failed to open index file %s", path), err)
	}
	defer func() { _ = file.Close() }()

	snap := newMemSnapshot()
	if err := gob.NewDecoder(file).Decode(snap); err != nil {
		return skerrors.New(skerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("failed to decode index file %s", path), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return skerrors.New(skerrors.ErrCodeIndexUnavailable, "keyword index is closed", nil)
	}
	m.snap = snap
	return nil
}

// Close releases the index. Further calls fail.
func (m *MemIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.snap = newMemSnapshot()
	return nil
}

// cloneShallow copies the snapshot maps. Inner posting maps stay shared
// until mutatePostings copies them, so untouched terms cost nothing.
func (s *memSnapshot) cloneShallow() *memSnapshot {
	next := &memSnapshot{
		Postings: make(map[string]map[string]int, len(s.Postings)),
		Attrs:    make(map[string]filter.Attributes, len(s.Attrs)),
		DocLens:  make(map[string]int, len(s.DocLens)),
		Terms:    make(map[string][]string, len(s.Terms)),
		TotalLen: s.TotalLen,
	}
	for term, postings := range s.Postings {
		next.Postings[term] = postings
	}
	for id, attrs := range s.Attrs {
		next.Attrs[id] = attrs
	}
	for id, l := range s.DocLens {
		next.DocLens[id] = l
	}
	for id, terms := range s.Terms {
		next.Terms[id] = terms
	}
	return next
}

// mutatePostings returns a private copy of the posting list for term,
// installing it in the snapshot.
func (s *memSnapshot) mutatePostings(term string) map[string]int {
	orig := s.Postings[term]
	copied := make(map[string]int, len(orig)+1)
	for id, tf := range orig {
		copied[id] = tf
	}
	s.Postings[term] = copied
	return copied
}

func addToSnapshot(s *memSnapshot, doc Document, tok *Tokenizer) {
	terms := tok.Tokenize(doc.Text)
	s.Attrs[doc.ID] = doc.Attrs
	s.DocLens[doc.ID] = len(terms)
	s.Terms[doc.ID] = terms
	s.TotalLen += len(terms)

	seen := map[string]struct{}{}
	for _, term := range terms {
		if _, done := seen[term]; done {
			continue
		}
		seen[term] = struct{}{}
		tf := 0
		for _, t := range terms {
			if t == term {
				tf++
			}
		}
		postings := s.mutatePostings(term)
		postings[doc.ID] = tf
	}
}

func removeFromSnapshot(s *memSnapshot, id string) {
	terms, ok := s.Terms[id]
	if !ok {
		return
	}
	seen := map[string]struct{}{}
	for _, term := range terms {
		if _, done := seen[term]; done {
			continue
		}
		seen[term] = struct{}{}
		postings := s.mutatePostings(term)
		delete(postings, id)
		if len(postings) == 0 {
			delete(s.Postings, term)
		}
	}
	s.TotalLen -= s.DocLens[id]
	delete(s.DocLens, id)
	delete(s.Attrs, id)
	delete(s.Terms, id)
}
