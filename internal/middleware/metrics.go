package middleware

import "github.com/prometheus/client_golang/prometheus"

const (
	promNamespace = "xlogview"
	promSubsystem = "http"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)

	httpRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: promSubsystem,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)

// RegisterMetrics registers the HTTP middleware collectors with the default registry.
func RegisterMetrics() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpRateLimitedTotal)
}
