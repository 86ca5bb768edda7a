package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/ion/internal/config"
	"github.com/vango-dev/ion/internal/demo"
	"github.com/vango-dev/ion/pkg/middleware"
	"github.com/vango-dev/ion/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		address    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo calculator service",
		Long: `Run the demo calculator service.

Configuration is read from --config, or from ion.yaml / ion.json in
the working directory when present. Prometheus metrics are served on
the configured metrics path (default /metrics).

Examples:
  ion serve
  ion serve --config ion.yaml
  ion serve --address 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			srv, err := buildServer(cfg, slog.Default())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printBanner(out)
			success(out, "Serving %s on %s", demo.Interface, cfg.Server.Address)
			if cfg.Metrics.Enabled {
				info(out, "metrics: %s", cfg.Metrics.Path)
			}
			if cfg.Ticket.Secret == "" {
				info(out, "tickets: disabled")
			}
			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to ion.yaml or ion.json")
	cmd.Flags().StringVarP(&address, "address", "a", "", "Address to listen on (overrides config)")

	return cmd
}

// loadConfig reads path, or the working directory's config file, or
// falls back to defaults.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case config.Exists("."):
		return config.Load(".")
	default:
		return config.New(), nil
	}
}

// buildServer assembles the calculator server described by cfg.
func buildServer(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	sc, err := cfg.ServerConfig()
	if err != nil {
		return nil, err
	}
	sc.WithFormatters(demo.Formatters()).
		WithInterceptors(middleware.Logging(logger))

	if cfg.Tracing.Enabled {
		sc.WithInterceptors(middleware.OpenTelemetry(
			middleware.WithTracerName(cfg.Tracing.TracerName),
		))
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := middleware.Prometheus(
			middleware.WithRegistry(registry),
			middleware.WithNamespace(cfg.Metrics.Namespace),
		)
		sc.WithMetrics(metrics).WithInterceptors(metrics)
	}

	srv := server.New(sc)
	srv.SetLogger(logger.With("component", "server"))
	if err := demo.Register(srv, demo.NewService()); err != nil {
		return nil, err
	}
	if registry != nil {
		srv.Router().Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return srv, nil
}
