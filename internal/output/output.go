// Package output provides consistent CLI output formatting for search
// results, index status, and progress indicators.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/skuseek/skuseek/internal/search"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results prints a search response as a human-readable listing.
func (w *Writer) Results(resp *search.Response) {
	if resp.Degraded {
		w.Warningf("degraded results: %s unavailable", strings.Join(resp.FailedSources, ", "))
	}
	if len(resp.Results) == 0 {
		w.Status("", "no results")
		return
	}

	for i, r := range resp.Results {
		line := fmt.Sprintf("%2d. %-16s score %.4f", i+1, r.ID, r.Score)
		if r.Product != nil {
			line += fmt.Sprintf("  %s ($%.2f)", r.Product.Description, r.Product.BasePrice)
		}
		_, _ = fmt.Fprintln(w.out, line)
		if len(r.MatchedTerms) > 0 {
			_, _ = fmt.Fprintf(w.out, "    matched: %s\n", strings.Join(r.MatchedTerms, ", "))
		}
	}
	_, _ = fmt.Fprintf(w.out, "\n%d results in %s\n", len(resp.Results), resp.Took.Round(0))
}

type jsonResult struct {
	ProductCode  string   `json:"product_code"`
	Score        float64  `json:"score"`
	SemanticRank int      `json:"semantic_rank,omitempty"`
	KeywordRank  int      `json:"keyword_rank,omitempty"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	Description  string   `json:"description,omitempty"`
	BasePrice    float64  `json:"base_price,omitempty"`
}

type jsonResponse struct {
	Results       []jsonResult `json:"results"`
	Degraded      bool         `json:"degraded"`
	FailedSources []string     `json:"failed_sources,omitempty"`
	RequestID     string       `json:"request_id"`
	TookMS        int64        `json:"took_ms"`
}

// ResultsJSON prints a search response as JSON for scripted consumers.
func (w *Writer) ResultsJSON(resp *search.Response) error {
	out := jsonResponse{
		Results:       make([]jsonResult, len(resp.Results)),
		Degraded:      resp.Degraded,
		FailedSources: resp.FailedSources,
		RequestID:     resp.RequestID,
		TookMS:        resp.Took.Milliseconds(),
	}
	for i, r := range resp.Results {
		jr := jsonResult{
			ProductCode:  r.ID,
			Score:        r.Score,
			SemanticRank: r.SemanticRank,
			KeywordRank:  r.KeywordRank,
			MatchedTerms: r.MatchedTerms,
		}
		if r.Product != nil {
			jr.Description = r.Product.Description
			jr.BasePrice = r.Product.BasePrice
		}
		out.Results[i] = jr
	}

	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Stats prints index status.
func (w *Writer) Stats(stats search.EngineStats) {
	_, _ = fmt.Fprintf(w.out, "catalog products: %d\n", stats.CatalogCount)
	_, _ = fmt.Fprintf(w.out, "keyword index:    %d documents, %d terms, avg length %.1f\n",
		stats.Keyword.DocumentCount, stats.Keyword.TermCount, stats.Keyword.AvgDocLength)
	_, _ = fmt.Fprintf(w.out, "vector store:     %d vectors\n", stats.VectorCount)
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	// Carriage return for in-place updates
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))

	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
