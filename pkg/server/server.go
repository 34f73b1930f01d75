package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"tripreport/pkg/config"
	"tripreport/pkg/export"
	"tripreport/pkg/metrics"
	"tripreport/pkg/pipeline"
	"tripreport/pkg/report"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const missingDateMessage = "Params requis: fromDate/toDate OU date (YYYY-MM-DD)"

// SourceFactory builds the upstream source for one request. cookie is the
// caller's Cookie header and may be empty when server credentials are set.
type SourceFactory func(cookie string) pipeline.Source

type Server struct {
	cfg       *config.Config
	newSource SourceFactory
	audit     export.Auditor
	handler   http.Handler
}

// New wires the routes. audit may be nil.
func New(cfg *config.Config, newSource SourceFactory, audit export.Auditor) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if newSource == nil {
		return nil, fmt.Errorf("source factory is required")
	}

	s := &Server{cfg: cfg, newSource: newSource, audit: audit}

	proxy, err := newAPIProxy(cfg.TraccarServer)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /export/vehicles-xlsx", s.handleExport)
	mux.HandleFunc("GET /treports/vehicles-xlsx", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("/api/", proxy)
	mux.Handle("/", http.FileServer(http.Dir(cfg.PublicDir)))

	s.handler = otelhttp.NewHandler(withCORS(mux), "tripreport",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	slog.Info("Server running", "url", "http://localhost:"+strconv.Itoa(s.cfg.Port))
	slog.Info("Auth", "user", s.cfg.MaskedUser(), "password_set", s.cfg.PinmePassword != "")

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	cookie := r.Header.Get("Cookie")
	if cookie == "" && !s.cfg.HasBasicAuth() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "Missing credentials",
			"hint":  "No cookie header in request",
		})
		return
	}

	q := r.URL.Query()
	rng, err := report.ResolveRange(report.RangeQuery{
		Date:     q.Get("date"),
		FromDate: q.Get("fromDate"),
		ToDate:   q.Get("toDate"),
		FromTime: q.Get("fromTime"),
		ToTime:   q.Get("toTime"),
	})
	if err != nil {
		if errors.Is(err, report.ErrMissingDate) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": missingDateMessage})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid date range", "detail": err.Error()})
		return
	}

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid format", "detail": err.Error()})
		return
	}

	agg, err := pipeline.New(s.newSource(cookie), pipeline.Config{Concurrency: s.cfg.MaxConcurrency})
	if err != nil {
		s.exportError(w, r, err)
		return
	}

	body, _, err := export.Generate(r.Context(), agg, rng, format, export.Options{Trigger: "http", Audit: s.audit})
	if err != nil {
		s.exportError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Warn("Failed to write export response", "error", err)
	}
}

func (s *Server) exportError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Export failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":  "Export error",
		"detail": err.Error(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if last := metrics.LastSuccess(); !last.IsZero() {
		resp["last_export"] = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// newAPIProxy forwards /api/* unchanged to http://{host} on port 80 unless
// host names a port itself.
func newAPIProxy(host string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse("http://" + host)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream server %q", host)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
		},
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("API proxy error", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Upstream unavailable"})
		},
	}, nil
}

// withCORS allows any origin and answers preflight requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
				h.Add("Vary", "Access-Control-Request-Headers")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}
