package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arboreal/harvest/internal/arboreal"
	"arboreal/harvest/internal/config"
	"arboreal/harvest/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve downloads over HTTP",
	Long: `Starts the harvest HTTP API. Callers pass their own Arboreal key in the
Authorization header; the server never uses the configured api_key.

  GET  /healthz
  GET  /metrics
  GET  /api/samples
  POST /api/downloads[?upload=true]`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := config.GetLogger(ctx)

		opts := server.Options{
			NewUpstream: func(apiKey string) server.Upstream {
				return arboreal.New(cfg.BaseURL, apiKey,
					arboreal.WithTimeout(cfg.Timeout),
					arboreal.WithLogger(logger))
			},
			Concurrency:    cfg.Concurrency,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
			UploadPrefix:   cfg.S3.Prefix,
		}
		if cfg.S3.Enabled() {
			store, err := openStore(ctx, cfg.S3)
			if err != nil {
				return err
			}
			opts.Store = store
			logger.Info("uploads enabled", slog.String("bucket", cfg.S3.Bucket))
		}
		return serve(ctx, server.New(opts), cfg.Server.Addr)
	},
}

// serve is replaced in tests to avoid binding a port.
var serve = func(ctx context.Context, s *server.Server, addr string) error {
	return s.ListenAndServe(ctx, addr)
}

func init() {
	serveCmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	serveCmd.Flags().IntP("concurrency", "c", config.DefaultConcurrency, "Parallel detail fetches per download")
	rootCmd.AddCommand(serveCmd)
}
