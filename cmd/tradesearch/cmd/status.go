package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/catalog"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report catalog and index freshness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			products, err := rt.catalog.Count(ctx, catalog.EntityProduct)
			if err != nil {
				return err
			}
			suppliers, err := rt.catalog.Count(ctx, catalog.EntitySupplier)
			if err != nil {
				return err
			}
			chunkStats, err := rt.chunks.Stats(ctx)
			if err != nil {
				return err
			}
			keywordDocs, err := rt.lexical.DocCount()
			if err != nil {
				return err
			}

			rt.out.Printf("catalog:   %d products, %d suppliers\n", products, suppliers)
			rt.out.Printf("chunks:    %d across %d entities\n", chunkStats.Chunks, chunkStats.Parents)
			rt.out.Printf("keyword:   %d documents\n", keywordDocs)
			rt.out.Printf("embedder:  %s\n", rt.embedder.ModelName())
			if !chunkStats.NewestAt.IsZero() {
				rt.out.Printf("freshness: newest chunk %s\n", chunkStats.NewestAt.Format(time.RFC3339))
			}

			indexed := chunkStats.Parents
			total := products + suppliers
			if indexed < total {
				rt.out.Warnf("%d entities not yet indexed; run 'tradesearch reindex'\n", total-indexed)
			}
			return nil
		},
	}
}
