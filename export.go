package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tripreport/pkg/export"
	"tripreport/pkg/pipeline"
	"tripreport/pkg/report"
)

var (
	exportQuery  report.RangeQuery
	exportOut    string
	exportFormat string
	exportDryRun bool
	exportCookie string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a trip report once and write it to a file",
	Example: `  # One day, cookie from a logged-in browser session
  tripreport export --date 2024-03-01 --cookie "JSESSIONID=..."

  # Date range with server credentials, printed instead of written
  PINME_USER=admin PINME_PASSWORD=secret tripreport export \
    --from-date 2024-03-01 --to-date 2024-03-07 --from-time 06:00 --dry-run`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportQuery.Date, "date", "", "Single day (YYYY-MM-DD)")
	f.StringVar(&exportQuery.FromDate, "from-date", "", "First day of the range (YYYY-MM-DD)")
	f.StringVar(&exportQuery.ToDate, "to-date", "", "Last day of the range (YYYY-MM-DD)")
	f.StringVar(&exportQuery.FromTime, "from-time", "", "Start time on the first day (HH:MM, default 00:00)")
	f.StringVar(&exportQuery.ToTime, "to-time", "", "End time on the last day (HH:MM, default 23:59)")
	f.StringVarP(&exportOut, "out", "o", "", `Output file, "-" for stdout (default "Trip report.<format>")`)
	f.StringVar(&exportFormat, "format", "xlsx", "Document format: xlsx, xml or json")
	f.BoolVar(&exportDryRun, "dry-run", false, "Print rows to stdout instead of writing a document")
	f.StringVar(&exportCookie, "cookie", os.Getenv("PINME_COOKIE"), "Cookie header for the telemetry API (or PINME_COOKIE)")
}

func runExport(cmd *cobra.Command, args []string) error {
	rng, err := report.ResolveRange(exportQuery)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	cfg, shutdown, err := setup(cmd, "")
	if err != nil {
		return err
	}
	defer shutdown()

	if exportCookie == "" && !cfg.HasBasicAuth() {
		return fmt.Errorf("missing credentials: use --cookie, PINME_COOKIE or PINME_USER/PINME_PASSWORD")
	}

	logStartup(cfg, "export")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg, err := pipeline.New(sourceFactory(cfg)(exportCookie), pipeline.Config{Concurrency: cfg.MaxConcurrency})
	if err != nil {
		return err
	}

	if exportDryRun {
		res, err := agg.Run(ctx, rng)
		if err != nil {
			return err
		}
		return pipeline.PrintDryRun(cmd.OutOrStdout(), res)
	}

	body, res, err := export.Generate(ctx, agg, rng, format, export.Options{Trigger: "cli", Audit: auditor(cfg)})
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = format.FileName()
	}
	if out == "-" {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	slog.Info("Report written", "file", out, "devices", len(res.Devices), "rows", res.RowCount())
	return nil
}
