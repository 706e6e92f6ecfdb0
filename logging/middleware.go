package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Polled by monitoring, never logged
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// LoggingMiddleware writes one access line per request. Lines carry the chi route
// pattern and decoded route and lookup parameters, so requests for different regions
// share one route while the region itself stays readable. Client errors log at
// warn level and server errors at error level.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("request_id", requestID(r)),
				slog.String("method", r.Method),
				slog.String("route", routeOf(r)),
				slog.String("path", r.URL.Path),
			}
			attrs = append(attrs, lookupAttrs(r)...)
			attrs = append(attrs,
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)

			logger.LogAttrs(r.Context(), levelFor(rec.status), "HTTP request", attrs...)
		})
	}
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(middleware.RequestIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// routeOf returns the matched chi pattern, or "unmatched" outside a router or on 404
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// lookupAttrs reports the region path parameter and the /classify query values
func lookupAttrs(r *http.Request) []slog.Attr {
	var attrs []slog.Attr
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if region := rctx.URLParam("region"); region != "" {
			attrs = append(attrs, slog.String("region", region))
		}
	}

	q := r.URL.Query()
	if name := q.Get("name"); name != "" {
		attrs = append(attrs, slog.String("hospital", name))
	}
	if code := q.Get("code"); code != "" {
		attrs = append(attrs, slog.String("code", code))
	}
	return attrs
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.bytes += n
	return n, err
}
