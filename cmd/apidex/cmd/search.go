package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/apidex/apidex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	format    string
	filter    string
	facets    []string
	expand    bool
	rerank    bool
	diversify bool
	alpha     float64
	lambda    float64
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documentation",
		Long: `Search the index with hybrid retrieval.

BM25 keyword results and semantic vector results are merged with
Reciprocal Rank Fusion. Filters are JSON expression trees over
document metadata.

Examples:
  apidex search "create webhook"
  apidex search "list users" --limit 5 --facet tags
  apidex search "auth" --filter '{"field":"method","op":"eq","value":"GET"}'
  apidex search "pagination" --expand --rerank --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format: text, json (default: text on a TTY, json otherwise)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Metadata filter as a JSON expression tree")
	cmd.Flags().StringSliceVar(&opts.facets, "facet", nil, "Metadata field to aggregate counts for (repeatable)")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "Expand the query with related terms")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Rescore top candidates with the cross-encoder")
	cmd.Flags().BoolVar(&opts.diversify, "diversify", false, "Diversify results with MMR")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", -1, "Dense-leg fusion weight in [0,1] (overrides config)")
	cmd.Flags().Float64Var(&opts.lambda, "lambda", -1, "MMR diversity lambda in [0,1] (overrides config)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.close(false) }()

	req := &search.Request{
		Query:           query,
		Limit:           opts.limit,
		FacetFields:     opts.facets,
		EnableExpansion: opts.expand || cfg.Search.EnableExpansion,
		EnableRerank:    opts.rerank || cfg.Search.EnableRerank,
		EnableDiversify: opts.diversify || cfg.Search.EnableDiversification,
	}
	if opts.filter != "" {
		var expr search.FilterExpression
		if err := json.Unmarshal([]byte(opts.filter), &expr); err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}
		req.Filter = &expr
	}
	if opts.alpha >= 0 && opts.alpha <= 1 {
		req.FusionAlpha = &opts.alpha
	}
	if opts.lambda >= 0 && opts.lambda <= 1 {
		req.DiversityLambda = &opts.lambda
	}

	resp, err := p.engine.Search(ctx, req)
	if err != nil {
		return err
	}

	format := opts.format
	if format == "" {
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "text":
		printTextResults(cmd, query, resp)
		return nil
	default:
		return fmt.Errorf("unknown format %q (valid: text, json)", format)
	}
}

func printTextResults(cmd *cobra.Command, query string, resp *search.Response) {
	out := cmd.OutOrStdout()

	if len(resp.Degraded) > 0 {
		fmt.Fprintf(out, "warning: degraded (%s)\n\n", strings.Join(resp.Degraded, ", "))
	}
	if resp.ExpandedQuery != "" {
		fmt.Fprintf(out, "Expanded query: %s\n\n", resp.ExpandedQuery)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return
	}

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.DocID
		}
		fmt.Fprintf(out, "%2d. %s  (%s, score %.4f)\n", i+1, title, r.DocID, r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(out, "    %s\n", r.Snippet)
		}
	}

	for field, buckets := range resp.Facets {
		fmt.Fprintf(out, "\n%s:\n", field)
		for _, b := range buckets {
			fmt.Fprintf(out, "  %-20s %d\n", b.Value, b.Count)
		}
	}

	fmt.Fprintf(out, "\n%d results in %s\n", len(resp.Results), resp.Took.Round(time.Millisecond))
}
