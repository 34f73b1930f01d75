package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"tripreport/pkg/otel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelapi "go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	// meterProvider is the SDK meter provider once InitMetrics installed one
	meterProvider *sdkmetric.MeterProvider

	// Meter is the global meter for creating instruments. Instruments are
	// created at package init against the global provider and start
	// recording once InitMetrics installs a real one.
	Meter metric.Meter

	// lastSuccessTimestamp tracks the last successful export (Unix timestamp)
	lastSuccessTimestamp atomic.Int64
)

func init() {
	Meter = otelapi.Meter(otel.ServiceName)
	if err := initializeInstruments(); err != nil {
		slog.Error("Failed to initialize metric instruments", "error", err)
	}
}

// Options selects the metric readers. OTLP export follows OTEL_METRICS_ENABLED;
// a non-empty PrometheusAddr starts a scrape endpoint at /metrics.
type Options struct {
	PrometheusAddr string
}

// InitMetrics installs the SDK meter provider with the configured readers.
// Returns a shutdown function that should be called on application exit.
func InitMetrics(opts Options) (func(), error) {
	ctx := context.Background()
	var readers []sdkmetric.Option
	var promServer *http.Server

	if otel.IsMetricsEnabled() {
		cfg := otel.GetExporterConfig(otel.SignalMetrics)
		exporter, err := otel.NewMetricExporter(ctx, cfg)
		if err != nil {
			slog.Warn("Failed to create OTLP metric exporter", "error", err)
		} else {
			readers = append(readers, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(60*time.Second)),
			))
			slog.Debug("OTLP metrics enabled", "endpoint", cfg.Endpoint, "protocol", cfg.Protocol)
		}
	}

	if opts.PrometheusAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return func() {}, err
		}
		readers = append(readers, sdkmetric.WithReader(exporter))
		promServer = serve(opts.PrometheusAddr, registry)
	}

	if len(readers) == 0 {
		slog.Debug("Metrics are disabled")
		return func() {}, nil
	}

	res, err := otel.NewResource()
	if err != nil {
		slog.Warn("Failed to create resource, using default", "error", err)
	} else {
		readers = append(readers, sdkmetric.WithResource(res))
	}

	meterProvider = sdkmetric.NewMeterProvider(readers...)
	otelapi.SetMeterProvider(meterProvider)

	if err := registerRuntimeMetrics(meterProvider.Meter(otel.ServiceName)); err != nil {
		slog.Warn("Failed to register runtime metrics", "error", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if promServer != nil {
			_ = promServer.Shutdown(ctx)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down meter provider", "error", err)
		}
	}, nil
}

// serve starts an HTTP server exposing /metrics on the given address.
func serve(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}

// registerRuntimeMetrics registers observable gauges for runtime metrics
func registerRuntimeMetrics(m metric.Meter) error {
	_, err := m.Int64ObservableGauge(
		"runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = m.Int64ObservableGauge(
		"export.last_success.timestamp",
		metric.WithDescription("Unix timestamp of the last successful export"),
		metric.WithUnit("s"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			ts := lastSuccessTimestamp.Load()
			if ts > 0 {
				o.Observe(ts)
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = m.Int64ObservableGauge(
		"runtime.go.mem.heap_alloc",
		metric.WithDescription("Heap memory allocated"),
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			o.Observe(int64(ms.HeapAlloc))
			return nil
		}),
	)
	return err
}

// RecordLastSuccessTimestamp records the current time as the last successful export
func RecordLastSuccessTimestamp() {
	lastSuccessTimestamp.Store(time.Now().Unix())
}

// LastSuccess returns the last successful export time, zero if none yet.
func LastSuccess() time.Time {
	ts := lastSuccessTimestamp.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// IsEnabled returns true once an SDK meter provider has been installed
func IsEnabled() bool {
	return meterProvider != nil
}
