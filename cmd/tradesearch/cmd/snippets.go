package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/catalog"
)

func newSnippetsCmd() *cobra.Command {
	var entityType string
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "snippets <id> <query>",
		Short: "Show the chunks of one entity most similar to a query",
		Long: `Score each stored chunk of a product or supplier against a query
and print the best matches, for result highlighting.

Examples:
  tradesearch snippets prod-123 "food grade certification"
  tradesearch snippets sup-42 "injection molding" --type supplier`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			id := args[0]
			query := strings.Join(args[1:], " ")
			snippets, err := rt.engine.Snippets(cmd.Context(),
				catalog.EntityType(entityType), id, query, limit)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snippets)
			}
			rt.out.Snippets(snippets)
			return nil
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "product", "What kind of entity: product or supplier")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum snippets (0 = default)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
