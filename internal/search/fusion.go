package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// RRFFusion combines ranked lists using Reciprocal Rank Fusion.
//
//	score(d) = Σ 1 / (K + rank_i(d))
//
// summed over the lists where d appears, with rank 1-indexed. A document
// absent from a list gets no contribution from it; there is no missing
// rank penalty, so fusing a list with an empty list preserves the
// non-empty list's order.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fuser. k <= 0 falls back to the default.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines the semantic and keyword candidate lists into a single
// ranking. Results are ordered by fused score descending, ties broken by
// ID ascending, and truncated to limit. limit <= 0 keeps everything.
func (f *RRFFusion) Fuse(semantic, keyword []Candidate, limit int) []*Result {
	if len(semantic) == 0 && len(keyword) == 0 {
		return []*Result{}
	}

	byID := make(map[string]*Result, len(semantic)+len(keyword))

	for i, c := range semantic {
		r := f.getOrCreate(byID, c.ID)
		r.SemanticRank = i + 1
		r.SemanticScore = c.Score
		r.Score += 1.0 / float64(f.K+i+1)
	}

	for i, c := range keyword {
		r := f.getOrCreate(byID, c.ID)
		r.KeywordRank = i + 1
		r.KeywordScore = c.Score
		r.MatchedTerms = c.MatchedTerms
		r.Score += 1.0 / float64(f.K+i+1)
	}

	results := make([]*Result, 0, len(byID))
	for _, r := range byID {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (f *RRFFusion) getOrCreate(m map[string]*Result, id string) *Result {
	if r, ok := m[id]; ok {
		return r
	}
	r := &Result{ID: id}
	m[id] = r
	return r
}
