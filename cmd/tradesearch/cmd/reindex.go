package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/catalog"
	tserr "github.com/mercavo/tradesearch/internal/errors"
)

func newReindexCmd() *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the chunk store and keyword index from the catalog",
		Long: `Rechunk, re-embed, and re-index every catalog entity.

The run is idempotent and safe to interrupt: each entity's chunks are
replaced atomically, and only one reindex runs at a time per data
directory. Pass --only type:id to refresh a single entity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if only != "" {
				entityType, id, ok := strings.Cut(only, ":")
				if !ok {
					return tserr.InvalidInput("--only expects type:id, e.g. product:prod-123")
				}
				ref := catalog.EntityRef{EntityType: catalog.EntityType(entityType), ParentID: id}
				if err := rt.reindex.ReindexOne(cmd.Context(), ref); err != nil {
					return err
				}
				rt.out.Printf("reindexed %s %s\n", entityType, id)
				return nil
			}

			report, err := rt.reindex.Run(cmd.Context())
			if err != nil {
				return err
			}
			rt.out.Printf("reindexed %d products, %d suppliers in %s",
				report.Reindexed[catalog.EntityProduct],
				report.Reindexed[catalog.EntitySupplier],
				report.Duration.Round(time.Millisecond))
			if report.Skipped > 0 {
				rt.out.Warnf(" (%d skipped)", report.Skipped)
			}
			rt.out.Newline()
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "Reindex a single entity, as type:id")

	return cmd
}
