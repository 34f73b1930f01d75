package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tripreport/pkg/config"
	"tripreport/pkg/export"
	"tripreport/pkg/logging"
	"tripreport/pkg/loki"
	"tripreport/pkg/metrics"
	"tripreport/pkg/otel"
	"tripreport/pkg/pinme"
	"tripreport/pkg/pipeline"
	"tripreport/pkg/profiling"
	"tripreport/pkg/server"
	"tripreport/pkg/tracing"
)

var (
	envFile     string
	pinmeBase   string
	concurrency int

	rootCmd = &cobra.Command{
		Use:   "tripreport",
		Short: "Fleet trip report exporter",
		Long: `tripreport builds per-vehicle trip reports from a Traccar-compatible
telemetry API (PinMe). Trips and stops are fetched for every visible device,
stop time between trips is split into idle and stopped time, and the result
is rendered as a spreadsheet with per-vehicle totals.

Configuration is read from the environment and an optional .env file:
  PINME_BASE / PINME_BASE_URL  Telemetry API base URL (default https://api.pinme.io/api)
  PINME_USER / PINME_PASSWORD  Server-side credentials (optional)
  PORT                         HTTP port for serve (default 4000)
  TRACCAR_SERVER               Upstream host for the /api proxy (default gps.fleetmap.pt)
  PUBLIC_DIR                   Static files directory (default public)
  MAX_CONCURRENCY              Devices processed at once (default 6)
  HTTP_TIMEOUT                 Upstream request timeout (default 30s)
  METRICS_ADDR                 Prometheus listen address (empty disables)
  LOKI_URL / LOKI_USER / LOKI_PASSWORD  Export audit log sink (optional)
  LOG_LEVEL                    debug, info, warn or error (default info)`,
		Version:       otel.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load when present")
	rootCmd.PersistentFlags().StringVar(&pinmeBase, "pinme-base", "", "Telemetry API base URL (overrides PINME_BASE)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Devices processed at once (overrides MAX_CONCURRENCY)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
}

// setup loads configuration and starts the observability stack. The
// returned function stops everything it started.
func setup(cmd *cobra.Command, metricsAddr string) (*config.Config, func(), error) {
	logging.InitLogging()

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	// .env may set LOG_LEVEL
	logging.InitLogging()

	if pinmeBase != "" {
		cfg.PinmeBaseURL = pinmeBase
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.MaxConcurrency = concurrency
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	shutdownTracing, err := tracing.InitTracing()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	shutdownProfiling, err := profiling.InitProfiling()
	if err != nil {
		shutdownTracing()
		return nil, nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	shutdownMetrics, err := metrics.InitMetrics(metrics.Options{PrometheusAddr: cfg.MetricsAddr})
	if err != nil {
		shutdownProfiling()
		shutdownTracing()
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return cfg, func() {
		shutdownMetrics()
		shutdownProfiling()
		shutdownTracing()
	}, nil
}

// sourceFactory shares one instrumented HTTP client between requests and
// scopes credentials to each caller.
func sourceFactory(cfg *config.Config) server.SourceFactory {
	base := pinme.NewClient(cfg.PinmeBaseURL, cfg.HTTPTimeout)
	return func(cookie string) pipeline.Source {
		c := base.WithCookie(cookie)
		if cfg.HasBasicAuth() {
			c = c.WithBasicAuth(cfg.PinmeUser, cfg.PinmePassword)
		}
		return c
	}
}

// auditor returns the Loki audit sink, or nil when LOKI_URL is unset.
func auditor(cfg *config.Config) export.Auditor {
	if cfg.LokiURL == "" {
		return nil
	}
	return loki.NewClient(cfg.LokiURL, cfg.LokiUser, cfg.LokiPassword)
}

func logStartup(cfg *config.Config, mode string) {
	slog.Info("Starting tripreport",
		"mode", mode,
		"version", otel.Version,
		"pinme_base", cfg.PinmeBaseURL,
		"concurrency", cfg.MaxConcurrency,
		"metrics_addr", cfg.MetricsAddr,
		"audit_loki", cfg.LokiURL != "",
	)
}
