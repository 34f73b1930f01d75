package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	appotel "tripreport/pkg/otel"
	"tripreport/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client pushes export audit events to Grafana Loki.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	tracer     trace.Tracer
}

type PushRequest struct {
	Streams []Stream `json:"streams"`
}

type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

func NewClient(baseURL, username, password string) *Client {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}

	return &Client{
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
		tracer:     otel.Tracer("loki-client"),
	}
}

// Audit sends ev as one JSON log line. Labels stay low-cardinality: the
// range and device ids live in the line, not in the stream labels.
func (c *Client) Audit(ctx context.Context, ev types.ExportEvent) error {
	ctx, span := c.tracer.Start(ctx, "loki.push_audit",
		trace.WithAttributes(
			attribute.String("export.status", ev.Status),
			attribute.String("export.trigger", ev.Trigger),
		),
	)
	defer span.End()

	line, err := json.Marshal(ev)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeParse, false)
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	lokiReq := PushRequest{
		Streams: []Stream{
			{
				Stream: map[string]string{
					"job":     "tripreport",
					"service": "fleet-reports",
					"event":   "export",
					"status":  ev.Status,
					"trigger": ev.Trigger,
				},
				Values: [][]string{{strconv.FormatInt(ts.UnixNano(), 10), string(line)}},
			},
		},
	}

	reqBody, err := json.Marshal(lokiReq)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeParse, false)
		return fmt.Errorf("failed to marshal Loki request: %w", err)
	}

	url := c.baseURL + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeValidation, false)
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tripreport/1.0.0")

	// Grafana Cloud needs basic auth; a local Loki does not
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	span.SetAttributes(
		attribute.Bool("auth.enabled", c.username != "" && c.password != ""),
		attribute.String("http.url", url),
		attribute.Int("request.size_bytes", len(reqBody)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("loki returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		appotel.RecordError(span, err, appotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return err
	}

	appotel.SetSpanOk(span)
	return nil
}
