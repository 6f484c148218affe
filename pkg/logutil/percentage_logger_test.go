package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHandler(buf *bytes.Buffer, percent map[slog.Level]float64, min slog.Level) *PercentLogger {
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewPercentHandler(percent, handler, min)
}

// cycle returns a sampler that walks 0.00, 0.01 ... 0.99 and wraps.
func cycle() func() float64 {
	i := 0
	return func() float64 {
		v := float64(i%100) / 100
		i++
		return v
	}
}

func TestMinLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTestHandler(&buf, nil, slog.LevelInfo))

	logger.Debug("should not log")
	logger.Info("should log")

	assert.NotContains(t, buf.String(), "should not log")
	assert.Contains(t, buf.String(), "should log")
}

func TestUnderlyingHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := NewPercentLogger(nil, inner, slog.LevelDebug)

	logger.Info("below handler level")
	logger.Warn("at handler level")

	assert.NotContains(t, buf.String(), "below handler level")
	assert.Contains(t, buf.String(), "at handler level")
}

func TestSampling100Percent(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, map[slog.Level]float64{slog.LevelInfo: 100.0}, slog.LevelDebug)
	logger := slog.New(h)

	for range 10 {
		logger.Info("always log")
	}
	assert.Equal(t, 10, bytes.Count(buf.Bytes(), []byte("always log")))
	assert.Zero(t, h.Dropped(slog.LevelInfo))
}

func TestSampling25Percent(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, map[slog.Level]float64{slog.LevelWarn: 25.0}, slog.LevelDebug)
	h.sample = cycle()
	logger := slog.New(h)

	for range 100 {
		logger.Warn("partial record", "segment", "000000010000000000000001")
	}

	assert.Equal(t, 25, bytes.Count(buf.Bytes(), []byte("partial record")))
	assert.Equal(t, uint64(75), h.Dropped(slog.LevelWarn))
	assert.Zero(t, h.Dropped(slog.LevelInfo))
}

func TestLogWithoutSamplingRule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTestHandler(&buf, map[slog.Level]float64{}, slog.LevelDebug))

	logger.Warn("no rule but still log")
	assert.Contains(t, buf.String(), "no rule but still log")
}

func TestWithAttrsSharesDropCount(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, map[slog.Level]float64{slog.LevelInfo: 0}, slog.LevelDebug)
	base := slog.New(h)

	base.With("scope", "test").Info("dropped")
	base.Info("dropped too")
	base.With("scope", "test").Warn("attribute log")

	assert.Equal(t, uint64(2), h.Dropped(slog.LevelInfo))
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "scope=test")
}

func TestWithGroupPreservesSamplingAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTestHandler(&buf, map[slog.Level]float64{slog.LevelInfo: 100.0}, slog.LevelDebug))

	grouped := logger.WithGroup("http")
	grouped.Info("grouped log", "method", "GET", "status", 200)

	logs := buf.String()
	assert.Contains(t, logs, "grouped log")
	assert.Contains(t, logs, "http.method=GET")
	assert.Contains(t, logs, "http.status=200")
}
