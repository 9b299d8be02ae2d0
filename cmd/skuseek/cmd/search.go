package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skuseek/skuseek/internal/filter"
	"github.com/skuseek/skuseek/internal/output"
	"github.com/skuseek/skuseek/internal/query"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	mode       string
	format     string
	minPrice   float64
	maxPrice   float64
	categories []string
	series     string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed catalog",
		Long: `Search the indexed catalog with hybrid retrieval: BM25 keyword
matching and vector similarity, fused with Reciprocal Rank Fusion.

Structured filters can be given as flags. Without filter flags, and
with the analyzer enabled, price and category constraints are
extracted from the query text itself.

Examples:
  skuseek search "red office chair"
  skuseek search "oak table" --max-price 500 -n 5
  skuseek search "sofa" --category Sofas --format json
  skuseek search "velvet armchair" --mode semantic`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Retrieval mode: hybrid, semantic")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().Float64Var(&opts.minPrice, "min-price", -1, "Minimum base price")
	cmd.Flags().Float64Var(&opts.maxPrice, "max-price", -1, "Maximum base price")
	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "Filter by category (repeatable)")
	cmd.Flags().StringVar(&opts.series, "series", "", "Filter by product series")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, text string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	q := query.Query{
		Text:   text,
		K:      opts.limit,
		Mode:   query.Mode(opts.mode),
		Filter: buildFilter(opts),
	}

	resp, err := engine.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.ResultsJSON(resp)
	}
	out.Results(resp)
	return nil
}

// buildFilter translates filter flags into predicates. Unset price
// flags keep their -1 sentinel and are skipped.
func buildFilter(opts searchOptions) filter.Filter {
	f := filter.New()
	if opts.minPrice >= 0 || opts.maxPrice >= 0 {
		var min, max *float64
		if opts.minPrice >= 0 {
			min = filter.Ptr(opts.minPrice)
		}
		if opts.maxPrice >= 0 {
			max = filter.Ptr(opts.maxPrice)
		}
		f = f.WithRange("base_price", min, max)
	}
	if len(opts.categories) > 0 {
		f = f.WithOneOf("categories", opts.categories...)
	}
	if opts.series != "" {
		f = f.WithEquals("series", opts.series)
	}
	return f
}
