package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/eval"
)

func newEvalsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "evals <dataset.yaml>",
		Short: "Measure retrieval quality against a judged query dataset",
		Long: `Run every judged query through each retrieval mode (keyword, dense,
hybrid, hybrid with rerank) and report NDCG@10, Recall@50, and MRR.

The dataset is a YAML file:

  judgments:
    - query: stainless hex screws
      entity_type: product
      relevant_ids: [prod-123, prod-456]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ds, err := eval.LoadDataset(args[0])
			if err != nil {
				return err
			}
			report, err := rt.harness.Run(cmd.Context(), ds)
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			rt.out.EvalReport(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
