// Package http serves derived schema documents over HTTP.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/artpar/schemagate/adapters/metrics"
	"github.com/artpar/schemagate/pkg/jsonapi"
)

// ServiceVersion is reported by the version endpoint. It is set by the
// command at startup.
var ServiceVersion = "dev"

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checker HealthChecker
}

// HealthChecker reports whether the service can answer requests.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness reports ready once a catalog generation is loaded.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.checker != nil {
		if err := h.checker.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Version returns the service version.
func Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{
		Version: ServiceVersion,
		Service: "schemagate",
	})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics     *metrics.Collector
	MetricsPath string // default: /metrics

	// EnableSwaggerUI mounts Swagger UI at /swagger/, reading SwaggerSpecURL.
	EnableSwaggerUI bool
	SwaggerSpecURL  string

	Timeout time.Duration // default: 60s
}

// NewRouter creates the main HTTP router.
func NewRouter(schemas *SchemaHandler, snapshots *SnapshotHandler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSONError(w, req, jsonapi.ErrNotFound("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSONError(w, req, jsonapi.NewError(http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed").
			Detailf("%s is not supported on %s", req.Method, req.URL.Path))
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(NewRecoverMiddleware(logger))
	r.Use(middleware.Timeout(cfg.Timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, cfg.MetricsPath))
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", Version)

	if cfg.Metrics != nil {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	if cfg.EnableSwaggerUI && cfg.SwaggerSpecURL != "" {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL(cfg.SwaggerSpecURL),
		))
	}

	r.Mount("/apis", schemas.Routes())
	if snapshots != nil {
		r.Mount("/snapshots", snapshots.Routes())
	}

	return r
}

// NewMetricsMiddleware creates middleware that records request metrics
// labelled by the matched chi route pattern.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipObservation(r.URL.Path, metricsPath) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.RequestServed(r.Method, route, statusLabel(ww.Status()), time.Since(start))
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware logs HTTP requests at debug level.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if skipObservation(r.URL.Path, metricsPath) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func skipObservation(path, metricsPath string) bool {
	return strings.HasPrefix(path, "/health") || path == metricsPath || strings.HasPrefix(path, "/swagger")
}
