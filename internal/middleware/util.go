package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/common/helpers/templates"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
)

const (
	HeaderRequestID = "X-Request-Id"
	headerTraceID   = "X-Trace-Id"
	reqIDKey        = "request_id"
)

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// maskClientPort removes the port from IP addresses.
func maskClientPort(address string) string {
	if idx := strings.LastIndex(address, ":"); idx != -1 {
		return address[:idx]
	}
	return address
}

func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return maskClientPort(r.RemoteAddr)
}

func humanizeDuration(d time.Duration) string {
	s, err := templates.HumanizeDuration(d)
	if err != nil {
		return d.String()
	}
	return s
}
