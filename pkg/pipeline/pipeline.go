package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"tripreport/pkg/metrics"
	appotel "tripreport/pkg/otel"
	"tripreport/pkg/report"
	"tripreport/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of device pipelines run at once.
const DefaultConcurrency = 6

// Telemetry fetches the per-device trip and stop reports.
type Telemetry interface {
	FetchTrips(ctx context.Context, deviceID int64, from, to time.Time) ([]types.RawTrip, error)
	FetchStops(ctx context.Context, deviceID int64, from, to time.Time) ([]types.RawStop, error)
}

// Directory lists the groups and devices the caller can see.
type Directory interface {
	FetchGroups(ctx context.Context) ([]types.Group, error)
	FetchDevices(ctx context.Context) ([]types.Device, error)
}

// Source is everything an export run needs from upstream.
type Source interface {
	Telemetry
	Directory
}

type Config struct {
	Concurrency int
}

// Aggregator fans the device pipeline out over a fleet.
type Aggregator struct {
	source Source
	limit  int
	tracer trace.Tracer
}

// DeviceFailure records a device whose pipeline errored or panicked.
type DeviceFailure struct {
	DeviceID int64
	Err      error
}

// Result holds the device reports in input device order. Devices without
// valid trips and failed devices have no entry in Devices.
type Result struct {
	Devices []types.DeviceReport
	Failed  []DeviceFailure
}

// Device returns the report for one device id.
func (r *Result) Device(id int64) (types.DeviceReport, bool) {
	for _, d := range r.Devices {
		if d.Device.ID == id {
			return d, true
		}
	}
	return types.DeviceReport{}, false
}

// RowCount is the number of trip rows across all devices.
func (r *Result) RowCount() int {
	n := 0
	for _, d := range r.Devices {
		n += len(d.Rows)
	}
	return n
}

func New(source Source, config Config) (*Aggregator, error) {
	if source == nil {
		return nil, fmt.Errorf("telemetry source is required")
	}
	if config.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative")
	}
	limit := config.Concurrency
	if limit == 0 {
		limit = DefaultConcurrency
	}

	return &Aggregator{
		source: source,
		limit:  limit,
		tracer: otel.Tracer("pipeline"),
	}, nil
}

// Run resolves the lookups, then aggregates every visible device.
func (a *Aggregator) Run(ctx context.Context, rng report.Range) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("range.from", rng.FromISO()),
			attribute.String("range.to", rng.ToISO()),
			attribute.Int("concurrency", a.limit),
		),
	)
	defer span.End()

	lookups, devices, err := a.Lookups(ctx)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return nil, err
	}

	res := a.Aggregate(ctx, devices, lookups, rng)

	span.SetAttributes(
		attribute.Int("devices.total", len(devices)),
		attribute.Int("devices.reported", len(res.Devices)),
		attribute.Int("devices.failed", len(res.Failed)),
		attribute.Int("rows", res.RowCount()),
	)
	appotel.SetSpanOk(span)
	return res, nil
}

// Lookups fetches groups and devices concurrently. Either failure fails
// the whole run.
func (a *Aggregator) Lookups(ctx context.Context) (*report.Lookups, []types.Device, error) {
	ctx, span := a.tracer.Start(ctx, "pipeline.lookups")
	defer span.End()

	var (
		groups  []types.Group
		devices []types.Device
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groups, err = a.source.FetchGroups(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch groups: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		devices, err = a.source.FetchDevices(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch devices: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("groups", len(groups)),
		attribute.Int("devices", len(devices)),
	)
	return report.NewLookups(groups, devices), devices, nil
}

// Aggregate runs one pipeline per device with at most limit in flight.
// A failing device is logged and skipped; it never cancels the others.
func (a *Aggregator) Aggregate(ctx context.Context, devices []types.Device, lookups *report.Lookups, rng report.Range) *Result {
	type slot struct {
		rep types.DeviceReport
		ok  bool
		err error
	}
	slots := make([]slot, len(devices))

	var g errgroup.Group
	g.SetLimit(a.limit)
	for i, dev := range devices {
		g.Go(func() error {
			rep, ok, err := a.safeProcessDevice(ctx, dev, lookups, rng)
			slots[i] = slot{rep: rep, ok: ok, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	for i, s := range slots {
		switch {
		case s.err != nil:
			res.Failed = append(res.Failed, DeviceFailure{DeviceID: devices[i].ID, Err: s.err})
		case s.ok:
			res.Devices = append(res.Devices, s.rep)
		}
	}
	return res
}

// safeProcessDevice turns a panic in the device pipeline into an error.
func (a *Aggregator) safeProcessDevice(ctx context.Context, dev types.Device, lookups *report.Lookups, rng report.Range) (rep types.DeviceReport, ok bool, err error) {
	metrics.DevicesInFlight.Add(ctx, 1)
	defer metrics.DevicesInFlight.Add(ctx, -1)

	defer func() {
		if r := recover(); r != nil {
			rep, ok = types.DeviceReport{}, false
			err = fmt.Errorf("device pipeline panicked: %v", r)
			appotel.RecordError(trace.SpanFromContext(ctx), err, appotel.ErrorTypePanic, false)
			slog.Debug("device pipeline stack", "device_id", dev.ID, "stack", string(debug.Stack()))
		}
		result := "rows"
		switch {
		case err != nil:
			result = "failed"
			slog.Error("Device export failed", "device_id", dev.ID, "error", err)
		case !ok:
			result = "empty"
		}
		metrics.DevicesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}()

	return a.processDevice(ctx, dev, lookups, rng)
}

func (a *Aggregator) processDevice(ctx context.Context, dev types.Device, lookups *report.Lookups, rng report.Range) (types.DeviceReport, bool, error) {
	ctx, span := a.tracer.Start(ctx, "pipeline.process_device",
		trace.WithAttributes(attribute.Int64("device_id", dev.ID)),
	)
	defer span.End()

	start := time.Now()
	trips, err := a.source.FetchTrips(ctx, dev.ID, rng.From, rng.To)
	recordStage(ctx, "fetch_trips", start)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return types.DeviceReport{}, false, fmt.Errorf("failed to fetch trips: %w", err)
	}
	if len(trips) == 0 {
		span.SetAttributes(attribute.Int("trips", 0))
		appotel.SetSpanOk(span)
		return types.DeviceReport{}, false, nil
	}

	start = time.Now()
	stops, err := a.source.FetchStops(ctx, dev.ID, rng.From, rng.To)
	recordStage(ctx, "fetch_stops", start)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return types.DeviceReport{}, false, fmt.Errorf("failed to fetch stops: %w", err)
	}

	start = time.Now()
	rep, stats, ok := report.BuildDeviceReport(dev, trips, stops, lookups, rng)
	recordStage(ctx, "build", start)

	if stats.TripsDropped > 0 {
		metrics.RecordsDropped.Add(ctx, int64(stats.TripsDropped), metric.WithAttributes(attribute.String("kind", "trip")))
	}
	if stats.StopsDropped > 0 {
		metrics.RecordsDropped.Add(ctx, int64(stats.StopsDropped), metric.WithAttributes(attribute.String("kind", "stop")))
	}
	metrics.RowsBuilt.Add(ctx, int64(len(rep.Rows)))

	span.SetAttributes(
		attribute.Int("trips", len(trips)),
		attribute.Int("stops", len(stops)),
		attribute.Int("rows", len(rep.Rows)),
		attribute.Int("trips_dropped", stats.TripsDropped),
		attribute.Int("stops_dropped", stats.StopsDropped),
	)
	appotel.SetSpanOk(span)
	return rep, ok, nil
}

func recordStage(ctx context.Context, stage string, start time.Time) {
	metrics.DeviceStageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// PrintDryRun writes a readable summary of res followed by one JSON line
// per row.
func PrintDryRun(w io.Writer, res *Result) error {
	fmt.Fprintf(w, "\n=== DRY RUN - Trip report ===\n")
	fmt.Fprintf(w, "Devices: %d, Rows: %d, Failed: %d\n", len(res.Devices), res.RowCount(), len(res.Failed))

	for _, dev := range res.Devices {
		fmt.Fprintf(w, "\nDevice %d (%s): %d trips, %.1f km, %s driving\n",
			dev.Device.ID, dev.Device.Name, len(dev.Rows),
			report.ApproxDistance1Dec(dev.Totals.DistanceKm), report.FormatDuration(dev.Totals.DurationMs))
		for i, row := range dev.Rows {
			line, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to marshal row for dry run: %w", err)
			}
			fmt.Fprintf(w, "Row %d: %s\n", i+1, line)
		}
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "\nDevice %d failed: %v\n", f.DeviceID, f.Err)
	}

	fmt.Fprintln(w, "=== END DRY RUN ===")
	return nil
}
