package otel

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocol represents OTLP transport protocol
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// SignalType represents the OTEL signal type
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

// ExporterConfig holds parsed OTLP exporter configuration for a signal
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

func IsTracingEnabled() bool {
	return IsTrue(os.Getenv("OTEL_TRACING_ENABLED"))
}

func IsMetricsEnabled() bool {
	return IsTrue(os.Getenv("OTEL_METRICS_ENABLED"))
}

// GetExporterConfig resolves the OTLP settings for one signal. Each
// OTEL_EXPORTER_OTLP_<SIGNAL>_* variable wins over its OTEL_EXPORTER_OTLP_*
// counterpart.
func GetExporterConfig(signal SignalType) ExporterConfig {
	lookup := signalLookup(signal)

	protocol := parseProtocol(lookup("PROTOCOL", "http/protobuf"))
	endpoint := resolveEndpoint(signal, protocol)

	cfg := ExporterConfig{
		Endpoint:    endpoint,
		Protocol:    protocol,
		Headers:     parseHeaders(lookup("HEADERS", "")),
		Timeout:     parseDuration(lookup("TIMEOUT", ""), 10*time.Second),
		Compression: lookup("COMPRESSION", ""),
	}

	// Without an explicit setting, insecure follows the endpoint scheme
	if v := lookup("INSECURE", ""); v != "" {
		cfg.Insecure = IsTrue(v)
	} else {
		cfg.Insecure = strings.HasPrefix(endpoint, "http://")
	}
	return cfg
}

// signalLookup returns a getter that checks the signal-specific variable,
// then the shared one, then the default.
func signalLookup(signal SignalType) func(suffix, def string) string {
	upper := strings.ToUpper(string(signal))
	return func(suffix, def string) string {
		if v := os.Getenv("OTEL_EXPORTER_OTLP_" + upper + "_" + suffix); v != "" {
			return v
		}
		if v := os.Getenv("OTEL_EXPORTER_OTLP_" + suffix); v != "" {
			return v
		}
		return def
	}
}

func parseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "grpc":
		return ProtocolGRPC
	case "http/json":
		return ProtocolHTTPJSON
	default:
		return ProtocolHTTPProtobuf
	}
}

// resolveEndpoint uses a signal endpoint as-is; a base endpoint gets the
// /v1/<signal> path appended for HTTP protocols.
func resolveEndpoint(signal SignalType, protocol Protocol) string {
	upper := strings.ToUpper(string(signal))
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_" + upper + "_ENDPOINT"); ep != "" {
		return normalizeEndpoint(ep, protocol)
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return appendSignalPath(normalizeEndpoint(ep, protocol), signal, protocol)
	}
	if protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318/v1/" + string(signal)
}

// normalizeEndpoint reduces gRPC endpoints to host:port and gives HTTP
// endpoints a scheme.
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

func appendSignalPath(endpoint string, signal SignalType, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		return endpoint
	}
	signalPath := "/v1/" + string(signal)

	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + signalPath
	}
	if strings.HasSuffix(u.Path, signalPath) {
		return endpoint
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	return u.String()
}

// IsTrue checks if a string represents a true value
func IsTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseHeaders parses "key1=value1,key2=value2". Values keep everything after
// the first '=' untouched, e.g. "Authorization=Basic abc==".
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}
	for _, pair := range strings.Split(headerStr, ",") {
		pair = strings.TrimSpace(pair)
		if idx := strings.Index(pair, "="); idx > 0 {
			key := strings.TrimSpace(pair[:idx])
			headers[key] = pair[idx+1:]
			slog.Debug("Parsed OTEL header", "key", key, "value_length", len(pair)-idx-1)
		}
	}
	return headers
}

// parseDuration accepts Go durations ("10s") and the plain milliseconds
// form used by OTEL_* variables ("10000").
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
