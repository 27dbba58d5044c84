package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mercavo/tradesearch/internal/config"
	"github.com/mercavo/tradesearch/internal/logging"
	"github.com/mercavo/tradesearch/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search engine over MCP stdio",
		Long: `Expose search, snippets, reindex, settings, evals, and status as
MCP tools over stdio, for AI clients.

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if watch {
				watcher, err := config.NewWatcher(configPath, func(cfg *config.Config) {
					rt.logLevel.Set(logging.ParseLevel(cfg.Logging.Level))
					rt.logger.Info("config reloaded",
						"log_level", cfg.Logging.Level,
						"data_dir", cfg.Paths.DataDir,
						"embed_provider", cfg.Embeddings.Provider)
				}, rt.logger)
				if err != nil {
					rt.logger.Warn("config watcher unavailable", "error", err)
				} else {
					go watcher.Run(cmd.Context())
					defer watcher.Close()
				}
			}

			server := mcpserver.NewServer(mcpserver.Options{
				Engine:   rt.engine,
				Catalog:  rt.catalog,
				Chunks:   rt.chunks,
				Lexical:  rt.lexical,
				Embedder: rt.embedder,
				Settings: rt.settings,
				Reindex:  rt.reindex,
				Harness:  rt.harness,
				Logger:   rt.logger,
			})
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&watch, "watch-config", false, "Reload the config file while serving; applies the log level live")

	return cmd
}
