package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skuseek/skuseek/internal/config"
	"github.com/skuseek/skuseek/internal/filter"
)

// Analysis is the analyzer output: the text to search and the
// structured filters extracted from the request.
type Analysis struct {
	SearchText string
	Filter     filter.Filter
}

const analyzerSystemPrompt = `You are a product search assistant for a furniture catalog. Extract a search query and structured filters from the user's request.

Respond with a JSON object: {"search_query": string, "filters": object}

Filterable fields:
- base_price, height, width, depth, weight, volume_value: numeric, expressed as {"$gte": number, "$lte": number} or {"$eq": number}
- categories: list of category strings
- series, product_code: string

Rules:
- search_query holds the descriptive terms: product type, materials, colors, style.
- Price and dimension constraints belong in filters, never in search_query.
- "under X" means {"$lte": X}, "over X" means {"$gte": X}, "between X and Y" means both.
- Omit any filter you are not confident about. An empty filters object is valid.`

// chatCompleter is the slice of the OpenAI client the analyzer uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Analyzer extracts structured filters from natural language queries
// using a chat model. It never fails a search: any error falls back to
// searching the raw text with no filters.
type Analyzer struct {
	client  chatCompleter
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer from config. Returns nil when the
// analyzer is disabled; Analyze on a nil analyzer is the fallback.
func NewAnalyzer(cfg config.AnalyzerConfig, apiKey string, logger *slog.Logger) *Analyzer {
	if !cfg.Enabled || apiKey == "" {
		return nil
	}
	return &Analyzer{
		client:  openai.NewClient(apiKey),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Analyze extracts search text and filters from a raw query.
// On any analyzer failure the raw query is returned with no filters.
func (a *Analyzer) Analyze(ctx context.Context, raw string) Analysis {
	fallback := Analysis{SearchText: raw}
	if a == nil || a.client == nil {
		return fallback
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: raw},
		},
	})
	if err != nil {
		a.warn(raw, err)
		return fallback
	}
	if len(resp.Choices) == 0 {
		a.warn(raw, fmt.Errorf("no choices in response"))
		return fallback
	}

	analysis, err := parseAnalysis(raw, resp.Choices[0].Message.Content)
	if err != nil {
		a.warn(raw, err)
		return fallback
	}
	return analysis
}

func (a *Analyzer) warn(raw string, err error) {
	if a.logger != nil {
		a.logger.Warn("query analysis failed, using raw query",
			"query", raw, "error", err)
	}
}

// parseAnalysis decodes the model's JSON into an Analysis. A missing
// search_query falls back to the raw query; unparseable filters fail
// the whole analysis so the caller uses the fallback.
func parseAnalysis(raw, content string) (Analysis, error) {
	var payload struct {
		SearchQuery string                     `json:"search_query"`
		Filters     map[string]json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Analysis{}, fmt.Errorf("decode analyzer response: %w", err)
	}

	text := strings.TrimSpace(payload.SearchQuery)
	if text == "" {
		text = raw
	}

	f, err := buildFilter(payload.Filters)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{SearchText: text, Filter: f}, nil
}

// buildFilter translates extracted filter clauses into predicates.
// Numeric operator objects become ranges, string lists become set
// membership, bare strings become equality.
func buildFilter(filters map[string]json.RawMessage) (filter.Filter, error) {
	f := filter.New()
	for field, value := range filters {
		var ops map[string]float64
		if err := json.Unmarshal(value, &ops); err == nil {
			if len(ops) == 0 {
				continue
			}
			pred, err := rangeFromOps(field, ops)
			if err != nil {
				return filter.Filter{}, err
			}
			f = f.WithRange(field, pred.Min, pred.Max)
			continue
		}

		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			if len(list) > 0 {
				f = f.WithOneOf(field, list...)
			}
			continue
		}

		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			if s != "" {
				f = f.WithEquals(field, s)
			}
			continue
		}

		var n float64
		if err := json.Unmarshal(value, &n); err == nil {
			f = f.WithRange(field, filter.Ptr(n), filter.Ptr(n))
			continue
		}

		return filter.Filter{}, fmt.Errorf("field %s: unsupported filter value %s", field, value)
	}
	if err := f.Validate(); err != nil {
		return filter.Filter{}, err
	}
	return f, nil
}

func rangeFromOps(field string, ops map[string]float64) (filter.NumericRange, error) {
	var r filter.NumericRange
	for op, v := range ops {
		val := v
		switch strings.TrimPrefix(op, "$") {
		case "gte", "gt":
			r.Min = &val
		case "lte", "lt":
			r.Max = &val
		case "eq":
			r.Min = &val
			r.Max = &val
		default:
			return r, fmt.Errorf("field %s: unknown operator %q", field, op)
		}
	}
	return r, nil
}
