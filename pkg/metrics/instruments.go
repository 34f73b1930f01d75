package metrics

import (
	"go.opentelemetry.io/otel/metric"
)

// Export Metrics
var (
	// ExportRunsTotal counts report exports by outcome
	ExportRunsTotal metric.Int64Counter

	// ExportRunDuration measures a full export, lookups to document
	ExportRunDuration metric.Float64Histogram

	// DocumentSize measures rendered report documents
	DocumentSize metric.Int64Histogram
)

// Aggregator Metrics
var (
	// DevicesProcessed counts device pipelines by result (rows, empty, failed)
	DevicesProcessed metric.Int64Counter

	// DevicesInFlight tracks concurrent device pipelines
	DevicesInFlight metric.Int64UpDownCounter

	// DeviceStageDuration measures duration per device pipeline stage
	DeviceStageDuration metric.Float64Histogram

	// RowsBuilt counts report rows produced
	RowsBuilt metric.Int64Counter

	// RecordsDropped counts trips and stops discarded during normalization
	RecordsDropped metric.Int64Counter
)

// Upstream API Metrics
var (
	// UpstreamRequestsTotal counts telemetry API requests by path and status
	UpstreamRequestsTotal metric.Int64Counter

	// UpstreamRequestDuration measures telemetry API request latency
	UpstreamRequestDuration metric.Float64Histogram
)

// initializeInstruments creates all metric instruments
func initializeInstruments() error {
	var err error

	ExportRunsTotal, err = Meter.Int64Counter(
		"export.runs.total",
		metric.WithDescription("Total report exports by status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	ExportRunDuration, err = Meter.Float64Histogram(
		"export.run.duration",
		metric.WithDescription("Duration of report exports"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return err
	}

	DocumentSize, err = Meter.Int64Histogram(
		"export.document.size",
		metric.WithDescription("Size of rendered report documents"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1024, 10240, 102400, 1048576, 10485760), // 1KB to 10MB
	)
	if err != nil {
		return err
	}

	DevicesProcessed, err = Meter.Int64Counter(
		"aggregator.devices.processed",
		metric.WithDescription("Device pipelines completed by result"),
		metric.WithUnit("{device}"),
	)
	if err != nil {
		return err
	}

	DevicesInFlight, err = Meter.Int64UpDownCounter(
		"aggregator.devices.in_flight",
		metric.WithDescription("Number of device pipelines currently running"),
		metric.WithUnit("{device}"),
	)
	if err != nil {
		return err
	}

	DeviceStageDuration, err = Meter.Float64Histogram(
		"aggregator.stage.duration",
		metric.WithDescription("Duration per device pipeline stage"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return err
	}

	RowsBuilt, err = Meter.Int64Counter(
		"aggregator.rows.built",
		metric.WithDescription("Report rows built"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return err
	}

	RecordsDropped, err = Meter.Int64Counter(
		"aggregator.records.dropped",
		metric.WithDescription("Trips and stops dropped for invalid timestamps"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return err
	}

	UpstreamRequestsTotal, err = Meter.Int64Counter(
		"pinme.api.requests.total",
		metric.WithDescription("Total telemetry API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	UpstreamRequestDuration, err = Meter.Float64Histogram(
		"pinme.api.request.duration",
		metric.WithDescription("Duration of telemetry API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return err
	}

	return nil
}
