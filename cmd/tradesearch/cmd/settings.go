package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and tune the ranking settings",
		Long: `Ranking settings live in the database and apply without a restart.
Unset fields fall back to built-in defaults.`,
	}

	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsResetCmd())

	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the effective settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg, err := rt.settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	var (
		keywordWeight        float64
		semanticWeight       float64
		interleaveKeyword    int
		interleaveSemantic   int
		defaultLimit         int
		supplierDefaultLimit int
		prefilterLimit       int
		verifiedBoost        float64
		goldVerifiedBoost    float64
		tradeAssuranceBoost  float64
		serviceRatingMult    float64
		responseRateMult     float64
		rerankEnabled        bool
		rerankTopK           int
		rerankTimeoutMs      int
		rerankWeight         float64
		reindexBatchSize     int
		chunkTargetChars     int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update settings; only the flags you pass change",
		Example: `  tradesearch settings set --keyword-weight 0.6 --semantic-weight 0.4
  tradesearch settings set --rerank-enabled=false
  tradesearch settings set --rerank-top-k 50 --rerank-timeout-ms 800`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			var patch settings.Patch
			flags := cmd.Flags()
			if flags.Changed("keyword-weight") {
				patch.KeywordWeight = &keywordWeight
			}
			if flags.Changed("semantic-weight") {
				patch.SemanticWeight = &semanticWeight
			}
			if flags.Changed("interleave-keyword") {
				patch.InterleaveKeyword = &interleaveKeyword
			}
			if flags.Changed("interleave-semantic") {
				patch.InterleaveSemantic = &interleaveSemantic
			}
			if flags.Changed("default-limit") {
				patch.DefaultLimit = &defaultLimit
			}
			if flags.Changed("supplier-default-limit") {
				patch.SupplierDefaultLimit = &supplierDefaultLimit
			}
			if flags.Changed("prefilter-limit") {
				patch.PrefilterLimit = &prefilterLimit
			}
			if flags.Changed("verified-boost") {
				patch.VerifiedBoost = &verifiedBoost
			}
			if flags.Changed("gold-verified-boost") {
				patch.GoldVerifiedBoost = &goldVerifiedBoost
			}
			if flags.Changed("trade-assurance-boost") {
				patch.TradeAssuranceBoost = &tradeAssuranceBoost
			}
			if flags.Changed("service-rating-multiplier") {
				patch.ServiceRatingMultiplier = &serviceRatingMult
			}
			if flags.Changed("response-rate-multiplier") {
				patch.ResponseRateMultiplier = &responseRateMult
			}
			if flags.Changed("rerank-enabled") {
				patch.RerankEnabled = &rerankEnabled
			}
			if flags.Changed("rerank-top-k") {
				patch.RerankTopK = &rerankTopK
			}
			if flags.Changed("rerank-timeout-ms") {
				patch.RerankTimeoutMs = &rerankTimeoutMs
			}
			if flags.Changed("rerank-weight") {
				patch.RerankWeight = &rerankWeight
			}
			if flags.Changed("reindex-batch-size") {
				patch.ReindexBatchSize = &reindexBatchSize
			}
			if flags.Changed("chunk-target-chars") {
				patch.ChunkTargetChars = &chunkTargetChars
			}

			updated, err := rt.settings.Update(cmd.Context(), patch)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(updated)
		},
	}

	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0, "Fusion weight of the keyword ranking")
	cmd.Flags().Float64Var(&semanticWeight, "semantic-weight", 0, "Fusion weight of the semantic ranking")
	cmd.Flags().IntVar(&interleaveKeyword, "interleave-keyword", 0, "Keyword slots per interleave cycle")
	cmd.Flags().IntVar(&interleaveSemantic, "interleave-semantic", 0, "Semantic slots per interleave cycle")
	cmd.Flags().IntVar(&defaultLimit, "default-limit", 0, "Default product result count")
	cmd.Flags().IntVar(&supplierDefaultLimit, "supplier-default-limit", 0, "Default supplier result count")
	cmd.Flags().IntVar(&prefilterLimit, "prefilter-limit", 0, "Keyword candidate pool size")
	cmd.Flags().Float64Var(&verifiedBoost, "verified-boost", 0, "Score boost for verified entities")
	cmd.Flags().Float64Var(&goldVerifiedBoost, "gold-verified-boost", 0, "Score boost for gold-verified entities")
	cmd.Flags().Float64Var(&tradeAssuranceBoost, "trade-assurance-boost", 0, "Score boost for the trade assurance badge")
	cmd.Flags().Float64Var(&serviceRatingMult, "service-rating-multiplier", 0, "Max boost from the service rating")
	cmd.Flags().Float64Var(&responseRateMult, "response-rate-multiplier", 0, "Max boost from the response rate")
	cmd.Flags().BoolVar(&rerankEnabled, "rerank-enabled", false, "Allow the cross-encoder pass")
	cmd.Flags().IntVar(&rerankTopK, "rerank-top-k", 0, "How many head results the cross-encoder scores")
	cmd.Flags().IntVar(&rerankTimeoutMs, "rerank-timeout-ms", 0, "Rerank deadline in milliseconds")
	cmd.Flags().Float64Var(&rerankWeight, "rerank-weight", 0, "Blend weight of the cross-encoder score")
	cmd.Flags().IntVar(&reindexBatchSize, "reindex-batch-size", 0, "Catalog page size during reindex")
	cmd.Flags().IntVar(&chunkTargetChars, "chunk-target-chars", 0, "Target chunk size in characters")

	return cmd
}

func newSettingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear every override and return to built-in defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.settings.Reset(cmd.Context()); err != nil {
				return err
			}
			rt.out.Printf("settings reset to defaults\n")
			return nil
		},
	}
}
