package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/metrics"
)

// Logging logs one line per request and counts it in m. Requests are
// labelled by their chi route pattern so IDs in paths do not explode
// metric cardinality.
func Logging(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)

			logger.Debug(r.Context(), "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"headers", RedactHeaders(r.Header),
			)

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			m.ObserveRequest(r.Method, route, strconv.Itoa(rec.StatusCode))

			args := []any{
				"method", r.Method,
				"route", route,
				"status", rec.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case rec.StatusCode >= http.StatusInternalServerError:
				logger.Error(r.Context(), "request failed", args...)
			case rec.StatusCode >= http.StatusBadRequest:
				logger.Warn(r.Context(), "request rejected", args...)
			default:
				logger.Info(r.Context(), "request completed", args...)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
