package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/search"
)

type searchOptions struct {
	entityType string
	limit      int
	categoryID string
	country    string
	excludeID  string
	rerank     bool
	format     string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed catalog",
		Long: `Search products or suppliers with hybrid ranking.

Keyword and semantic rankings are fused with trust-aware boosts.
Pass --rerank to refine the head of the list with the cross-encoder.

Examples:
  tradesearch search "stainless hex screws"
  tradesearch search "ceramic tile" --category building --limit 5
  tradesearch search "fastener manufacturer" --type supplier --country CN
  tradesearch search "hydraulic pump" --rerank --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.entityType, "type", "t", "product", "What to search: product or supplier")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum results (0 = default for the entity type)")
	cmd.Flags().StringVar(&opts.categoryID, "category", "", "Restrict products to one category")
	cmd.Flags().StringVar(&opts.country, "country", "", "Restrict suppliers to one country code")
	cmd.Flags().StringVar(&opts.excludeID, "exclude", "", "Omit one entity from the results")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Apply the cross-encoder rerank to the head of the list")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	entityType := catalog.EntityType(opts.entityType)
	results, err := rt.engine.Search(cmd.Context(), search.Request{
		Query:      query,
		EntityType: entityType,
		Filters: search.Filters{
			CategoryID: opts.categoryID,
			Country:    opts.country,
			ExcludeID:  opts.excludeID,
		},
		Limit:  opts.limit,
		Rerank: opts.rerank,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	rt.out.SearchResults(entityType, results)
	return nil
}
