package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the API, the health endpoints and /metrics behind the common middleware.
func NewRouter(h *Handler, health *Health, log logger.Logger, requestTimeout time.Duration) http.Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(middleware.Timeout(requestTimeout))

	health.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	h.Register(r)
	return r
}

// requestLogger logs each request and counts it by route pattern and status.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

			if route == "/health" || route == "/ready" || route == "/metrics" {
				return
			}
			log.Info("HTTP request", map[string]interface{}{
				"method":     r.Method,
				"route":      route,
				"status":     status,
				"durationMs": time.Since(start).Milliseconds(),
				"requestId":  middleware.GetReqID(r.Context()),
			})
		})
	}
}
