package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"tripreport/pkg/metrics"
	appotel "tripreport/pkg/otel"
	"tripreport/pkg/pipeline"
	"tripreport/pkg/report"
	"tripreport/pkg/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Runner produces the aggregated device reports for a range.
type Runner interface {
	Run(ctx context.Context, rng report.Range) (*pipeline.Result, error)
}

// Auditor receives one summary event per export run.
type Auditor interface {
	Audit(ctx context.Context, ev types.ExportEvent) error
}

type Options struct {
	// Trigger names what started the run, e.g. "http" or "cli".
	Trigger string
	// Audit is optional.
	Audit Auditor
}

// Generate runs one export end to end and returns the rendered document.
// Per-device failures are already absorbed by the runner; an error here
// means the run as a whole failed.
func Generate(ctx context.Context, runner Runner, rng report.Range, format Format, opts Options) (body []byte, res *pipeline.Result, err error) {
	ctx, span := otel.Tracer("export").Start(ctx, "export.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("format", string(format)),
		attribute.String("range.from", rng.FromISO()),
		attribute.String("range.to", rng.ToISO()),
	)

	start := time.Now()
	status := "error"
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("format", string(format)),
		)
		metrics.ExportRunsTotal.Add(ctx, 1, attrs)
		metrics.ExportRunDuration.Record(ctx, time.Since(start).Seconds(), attrs)

		if opts.Audit != nil {
			ev := newEvent(opts.Trigger, status, format, rng, res, len(body), time.Since(start), err)
			if auditErr := opts.Audit.Audit(ctx, ev); auditErr != nil {
				slog.Warn("Failed to record export audit event", "error", auditErr)
			}
		}
	}()

	res, err = runner.Run(ctx, rng)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return nil, nil, err
	}

	doc := Document{Range: rng, Devices: res.Devices, GeneratedAt: time.Now()}
	var buf bytes.Buffer
	if werr := NewWriter(format).Write(&buf, doc); werr != nil {
		appotel.RecordError(span, werr, appotel.ErrorTypeRender, false)
		return nil, nil, fmt.Errorf("failed to render %s report: %w", format, werr)
	}

	status = "success"
	metrics.DocumentSize.Record(ctx, int64(buf.Len()), metric.WithAttributes(attribute.String("format", string(format))))
	metrics.RecordLastSuccessTimestamp()

	span.SetAttributes(
		attribute.Int("devices", len(res.Devices)),
		attribute.Int("devices.failed", len(res.Failed)),
		attribute.Int("rows", res.RowCount()),
		attribute.Int("document.size_bytes", buf.Len()),
	)
	appotel.SetSpanOk(span)

	slog.Info("Report generated",
		"format", format,
		"from", rng.FromISO(),
		"to", rng.ToISO(),
		"devices", len(res.Devices),
		"failed_devices", len(res.Failed),
		"rows", res.RowCount(),
		"bytes", buf.Len(),
		"duration", time.Since(start),
	)
	return buf.Bytes(), res, nil
}

func newEvent(trigger, status string, format Format, rng report.Range, res *pipeline.Result, size int, elapsed time.Duration, err error) types.ExportEvent {
	ev := types.ExportEvent{
		Time:       time.Now().UTC(),
		Trigger:    trigger,
		Status:     status,
		Format:     string(format),
		From:       rng.FromISO(),
		To:         rng.ToISO(),
		Bytes:      size,
		DurationMs: elapsed.Milliseconds(),
	}
	if res != nil {
		ev.Devices = len(res.Devices)
		ev.Rows = res.RowCount()
		for _, f := range res.Failed {
			ev.FailedDevices = append(ev.FailedDevices, f.DeviceID)
		}
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
