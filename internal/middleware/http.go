package middleware

import (
	"expvar"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

var (
	totalActiveHTTPReq = expvar.NewInt("total_active_http_requests")
)

// RequestID propagates X-Request-Id (or X-Trace-Id) and generates one when
// the client sent neither. The ID is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = r.Header.Get(headerTraceID)
		}
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// RateLimit rejects requests with 429 once l has no tokens left.
// A nil limiter disables limiting.
func RateLimit(l *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				httpRateLimitedTotal.Inc()
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Telemetry logs every request and records its latency and status.
func Telemetry(logger *slog.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			route := routeTemplate(r)

			totalActiveHTTPReq.Add(1)
			defer totalActiveHTTPReq.Add(-1)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			duration := time.Since(startTime)
			httpRequestDuration.WithLabelValues(route, r.Method).Observe(duration.Seconds())
			httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "[HTTP] Request Completed",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"client_ip", getClientIP(r),
				"duration", humanizeDuration(duration),
				reqIDKey, GetRequestID(r.Context()),
			)
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
