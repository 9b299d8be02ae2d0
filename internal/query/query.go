// Package query defines the search query contract and the natural
// language analyzer that extracts structured filters.
package query

import (
	"fmt"
	"strings"

	skerrors "github.com/skuseek/skuseek/internal/errors"
	"github.com/skuseek/skuseek/internal/filter"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeHybrid fuses semantic and keyword retrieval.
	ModeHybrid Mode = "hybrid"
	// ModeSemantic uses vector similarity only.
	ModeSemantic Mode = "semantic"
)

// Query is the contract between callers and the fusion orchestrator.
type Query struct {
	// Text is the free-text query. Required for hybrid mode.
	Text string
	// Vector is the query embedding. When absent, the orchestrator
	// embeds Text before semantic retrieval.
	Vector []float32
	// Filter restricts results by structured attributes.
	Filter filter.Filter
	// K is the number of results to return.
	K int
	// Mode selects the retrieval strategy. Defaults to hybrid.
	Mode Mode
}

// Normalize fills defaults. Call before Validate.
func (q *Query) Normalize(defaultK int) {
	if q.K <= 0 {
		q.K = defaultK
	}
	if q.Mode == "" {
		q.Mode = ModeHybrid
	}
	q.Text = strings.TrimSpace(q.Text)
}

// Validate enforces the query contract. Violations are caller bugs and
// surface as invalid-query errors, never as degraded results.
func (q Query) Validate(maxK int) error {
	switch q.Mode {
	case ModeHybrid, ModeSemantic:
	default:
		return skerrors.InvalidQuery(fmt.Sprintf("unknown mode %q", q.Mode))
	}

	if q.K < 1 || q.K > maxK {
		return skerrors.InvalidQuery(fmt.Sprintf("k must be in [1, %d], got %d", maxK, q.K))
	}

	switch q.Mode {
	case ModeHybrid:
		if q.Text == "" {
			return skerrors.New(skerrors.ErrCodeQueryEmpty, "hybrid query requires text", nil)
		}
	case ModeSemantic:
		if len(q.Vector) == 0 && q.Text == "" {
			return skerrors.New(skerrors.ErrCodeMissingVector,
				"semantic query requires a vector or text to embed", nil)
		}
	}

	if err := q.Filter.Validate(); err != nil {
		return err
	}
	return nil
}
