// Package cmd provides the CLI commands for tradesearch.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/catalog"
	"github.com/mercavo/tradesearch/internal/chunkstore"
	"github.com/mercavo/tradesearch/internal/config"
	"github.com/mercavo/tradesearch/internal/embed"
	"github.com/mercavo/tradesearch/internal/eval"
	"github.com/mercavo/tradesearch/internal/lexical"
	"github.com/mercavo/tradesearch/internal/logging"
	"github.com/mercavo/tradesearch/internal/output"
	"github.com/mercavo/tradesearch/internal/reindex"
	"github.com/mercavo/tradesearch/internal/search"
	"github.com/mercavo/tradesearch/internal/settings"
	"github.com/mercavo/tradesearch/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the tradesearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tradesearch",
		Short: "Hybrid search and ranking engine for marketplace catalogs",
		Long: `Tradesearch ranks marketplace products and suppliers by combining
keyword matching with semantic similarity, trust-aware boosts, and an
optional cross-encoder rerank.

Run 'tradesearch seed' to load a catalog, 'tradesearch reindex' to build
the indexes, then 'tradesearch search' to query them.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("tradesearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default ./tradesearch.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSnippetsCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newEvalsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI with signal-aware context cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// runtime bundles everything an engine-backed command needs.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	logLevel *slog.LevelVar
	catalog  *catalog.Store
	chunks   *chunkstore.Store
	lexical  *lexical.Index
	settings *settings.Store
	embedder embed.Provider
	reranker search.Reranker
	engine   *search.Engine
	reindex  *reindex.Orchestrator
	harness  *eval.Harness
	out      *output.Writer
}

// openRuntime loads config, sets up logging, and opens every store.
// Callers must Close the runtime when done.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	levelVar := new(slog.LevelVar)
	logger := logging.SetupDefault(logging.Config{
		Level:    cfg.Logging.Level,
		JSON:     cfg.Logging.JSON,
		LevelVar: levelVar,
	})

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.Paths.DataDir, err)
	}

	rt := &runtime{cfg: cfg, logger: logger, logLevel: levelVar, out: output.New(cmd.OutOrStdout())}

	rt.catalog, err = catalog.NewStore(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	rt.chunks, err = chunkstore.NewStore(cfg.DatabasePath())
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.settings, err = settings.NewStore(cfg.DatabasePath())
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.lexical, err = lexical.NewIndex(cfg.LexicalIndexPath(), logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.embedder = embed.FromConfig(cfg, logger)

	if cfg.Rerank.BaseURL != "" {
		rt.reranker = search.NewHTTPReranker(search.HTTPRerankerOptions{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  cfg.Rerank.APIKey,
			Model:   cfg.Rerank.Model,
		})
	} else {
		rt.reranker = search.NoOpReranker{}
	}

	rt.engine = search.NewEngine(search.Options{
		Catalog:  rt.catalog,
		Chunks:   rt.chunks,
		Lexical:  rt.lexical,
		Embedder: rt.embedder,
		Reranker: rt.reranker,
		Settings: rt.settings,
		Logger:   logger,
	})
	rt.reindex = reindex.New(reindex.Options{
		Catalog:  rt.catalog,
		Chunks:   rt.chunks,
		Lexical:  rt.lexical,
		Embedder: rt.embedder,
		Settings: rt.settings,
		DataDir:  cfg.Paths.DataDir,
		Logger:   logger,
	})
	rt.harness = eval.NewHarness(rt.engine, logger)

	return rt, nil
}

// Close releases every open store. Safe on a partially opened runtime.
func (rt *runtime) Close() {
	if rt.reranker != nil {
		_ = rt.reranker.Close()
	}
	if rt.embedder != nil {
		_ = rt.embedder.Close()
	}
	if rt.lexical != nil {
		_ = rt.lexical.Close()
	}
	if rt.settings != nil {
		_ = rt.settings.Close()
	}
	if rt.chunks != nil {
		_ = rt.chunks.Close()
	}
	if rt.catalog != nil {
		_ = rt.catalog.Close()
	}
}
