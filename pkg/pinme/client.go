package pinme

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tripreport/pkg/metrics"
	appotel "tripreport/pkg/otel"
	"tripreport/pkg/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://api.pinme.io/api"
	userAgent      = "tripreport/1.0.0"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s :: %s", e.Status, e.Body)
}

// Client talks to the PinMe (Traccar) REST API. A Client is safe for
// concurrent use; WithCookie and WithBasicAuth return copies sharing the
// underlying http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
	username   string
	password   string
	tracer     trace.Tracer
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Create HTTP client with OpenTelemetry instrumentation
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}

	return &Client{
		httpClient: client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tracer:     otel.Tracer("pinme-client"),
	}
}

// WithCookie returns a client that forwards the given Cookie header.
func (c *Client) WithCookie(cookie string) *Client {
	cp := *c
	cp.cookie = cookie
	return &cp
}

// WithBasicAuth returns a client that authenticates with user credentials.
func (c *Client) WithBasicAuth(username, password string) *Client {
	cp := *c
	cp.username = username
	cp.password = password
	return &cp
}

func (c *Client) FetchGroups(ctx context.Context) ([]types.Group, error) {
	var groups []types.Group
	if err := c.getJSON(ctx, "/groups", url.Values{"all": {"true"}}, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) FetchDevices(ctx context.Context) ([]types.Device, error) {
	var devices []types.Device
	if err := c.getJSON(ctx, "/devices", url.Values{"all": {"true"}}, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Client) FetchTrips(ctx context.Context, deviceID int64, from, to time.Time) ([]types.RawTrip, error) {
	var trips []types.RawTrip
	if err := c.getJSON(ctx, "/reports/trips", reportQuery(deviceID, from, to), &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *Client) FetchStops(ctx context.Context, deviceID int64, from, to time.Time) ([]types.RawStop, error) {
	var stops []types.RawStop
	if err := c.getJSON(ctx, "/reports/stops", reportQuery(deviceID, from, to), &stops); err != nil {
		return nil, err
	}
	return stops, nil
}

func reportQuery(deviceID int64, from, to time.Time) url.Values {
	return url.Values{
		"deviceId": {strconv.FormatInt(deviceID, 10)},
		"from":     {from.UTC().Format(time.RFC3339)},
		"to":       {to.UTC().Format(time.RFC3339)},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, "pinme.get",
		trace.WithAttributes(
			attribute.String("api.path", path),
			attribute.String("api.endpoint", c.baseURL),
		),
	)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("status", status),
		)
		metrics.UpstreamRequestsTotal.Add(ctx, 1, attrs)
		metrics.UpstreamRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	span.SetAttributes(
		attribute.String("http.url", reqURL),
		attribute.String("http.method", http.MethodGet),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeValidation, false)
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("http.response.content_type", resp.Header.Get("Content-Type")),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read the error response body for debugging
		body, _ := io.ReadAll(resp.Body)
		err := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		appotel.RecordError(span, err, appotel.ErrorTypeHTTP, resp.StatusCode >= 500)
		status = strconv.Itoa(resp.StatusCode)
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeNetwork, true)
		return fmt.Errorf("failed to read response body: %w", err)
	}
	span.SetAttributes(attribute.Int("response.size_bytes", len(body)))

	if err := json.Unmarshal(body, out); err != nil {
		appotel.RecordError(span, err, appotel.ErrorTypeParse, false)
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	status = strconv.Itoa(resp.StatusCode)
	appotel.SetSpanOk(span)
	return nil
}
