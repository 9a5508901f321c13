package cli

import (
	"context"
	"time"

	"resumerank/internal/extract"
	"resumerank/internal/observability"
	"resumerank/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP ranking service",
	Long: `Start an HTTP server exposing the ranking pipeline.

Available endpoints:
- POST /rank: Rank resume texts sent as JSON
- POST /rank/upload: Rank resume files sent as multipart/form-data
- GET /vocabulary: Describe the active scoring profile
- GET /health: Health check including the similarity provider
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled or server
- Use --cert-file and --key-file for the server certificate

With --watch-profile the scoring profile file is reloaded when it changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled or server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().Bool("watch-profile", false, "Reload the scoring profile file when it changes")

	bindFlag(serveCmd, "server.port", "port", false)
	bindFlag(serveCmd, "server.host", "host", false)
	bindFlag(serveCmd, "server.tls.mode", "tls-mode", false)
	bindFlag(serveCmd, "server.tls.certFile", "cert-file", false)
	bindFlag(serveCmd, "server.tls.keyFile", "key-file", false)
	bindFlag(serveCmd, "scoring.watchProfile", "watch-profile", false)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shut down observability")
		}
	}()

	p, err := newPipeline(ctx, cfg, logger, om)
	if err != nil {
		return err
	}
	defer p.Close(logger)

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		MaxFileSize:    cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
	deps := server.Dependencies{
		Ranker:        p.ranker,
		Engine:        p.engine,
		Extractor:     extract.NewExtractor(cfg.App.MaxFileSize, logger),
		Observability: om,
	}
	return server.NewServer(cfg, serverCfg, deps, logger).Start(ctx)
}
