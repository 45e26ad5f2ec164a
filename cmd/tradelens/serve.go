package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/tradelens/pkg/config"
	tlhttp "github.com/rhuss/tradelens/pkg/transport/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `serve starts the search page on /, the JSON API under /v1, the MCP tool
endpoint, health probes and Prometheus metrics. It shuts down gracefully on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}
}

func serve(cmd *cobra.Command, cfg *config.Config) error {
	st, err := buildStack(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	authMW, err := buildAuth(cfg.Auth)
	if err != nil {
		return fmt.Errorf("building auth: %w", err)
	}

	opts := tlhttp.Options{
		Logger:      slog.Default(),
		Auth:        authMW,
		MaxBodySize: cfg.Server.MaxBodyBytes,
		Version:     version,
	}
	if cfg.Observability.Metrics.Enabled {
		opts.MetricsPath = cfg.Observability.Metrics.Path
	}
	if cfg.MCP.Enabled {
		opts.MCPPath = cfg.MCP.Path
	}

	srv := tlhttp.NewServer(tlhttp.NewHandler(st.engine, opts),
		tlhttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		tlhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		tlhttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		tlhttp.WithLogger(slog.Default()),
	)

	slog.Info("tradelens starting",
		"version", version,
		"port", cfg.Server.Port,
		"auth", cfg.Auth.Type,
		"mcp", opts.MCPPath,
		"metrics", opts.MetricsPath,
	)
	return srv.ListenAndServe()
}
