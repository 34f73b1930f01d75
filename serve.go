package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tripreport/pkg/server"
)

var (
	servePort        int
	servePublicDir   string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the export endpoint, API proxy and static files",
	Long: `Start the HTTP server:
  GET /export/vehicles-xlsx    Trip report download (also /treports/vehicles-xlsx)
  /api/*                       Proxied to http://{TRACCAR_SERVER}
  GET /healthz                 Liveness and last successful export
  /                            Static files from PUBLIC_DIR`,
	Example: `  tripreport serve --port 4000
  tripreport serve --metrics-addr :9464`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides PORT)")
	serveCmd.Flags().StringVar(&servePublicDir, "public-dir", "", "Static files directory (overrides PUBLIC_DIR)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus listen address (overrides METRICS_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, shutdown, err := setup(cmd, serveMetricsAddr)
	if err != nil {
		return err
	}
	defer shutdown()

	if servePort != 0 {
		cfg.Port = servePort
	}
	if servePublicDir != "" {
		cfg.PublicDir = servePublicDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(cfg, sourceFactory(cfg), auditor(cfg))
	if err != nil {
		return err
	}

	logStartup(cfg, "serve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx)
}
