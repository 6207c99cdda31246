package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexgate/lexgate/internal/config"
	"github.com/lexgate/lexgate/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexgate server",
	Long: `Start the lexgate HTTP server.

Secrets come from the environment (LEXGATE_SERVICE_API_KEY,
LEXGATE_PROVIDER_API_KEY) or from a config file; the config file is
watched and validation limits take effect without a restart. A server
missing its secrets still starts and serves /healthz, but reports not
ready and refuses extractions.

Examples:
  lexgate serve                    # Start on default port 8080
  lexgate serve --port 3000        # Start on custom port
  lexgate serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.OnChange(func(cfg *config.Config) {
			logger.Info("config reloaded",
				"max_text_chars", cfg.MaxTextChars,
				"max_examples", cfg.MaxExamples,
				"max_workers", cfg.MaxWorkers,
				"missing_secrets", cfg.MissingSecrets(),
			)
		})
		cm.WatchConfig()

		if missing := cm.Get().MissingSecrets(); len(missing) > 0 {
			logger.Warn("starting without required secrets; extraction requests will be refused",
				"missing", missing)
		}

		srv, err := server.New(server.Config{
			Host:         serveHost,
			Port:         servePort,
			ConfigSource: cm,
			Logger:       logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
