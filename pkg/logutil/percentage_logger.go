package logutil

import (
	"context"
	"log/slog"
	"maps"
	"math/rand/v2"
	"sync/atomic"
)

// PercentLogger is a slog.Handler that keeps only a percentage of the records
// at each configured level. Levels without a percentage are always kept.
type PercentLogger struct {
	handler       slog.Handler
	levelPercents map[slog.Level]float64
	minLevel      slog.Level
	sample        func() float64
	dropped       *dropCounters
}

type dropCounters struct {
	debug, info, warn, error atomic.Uint64
}

func (d *dropCounters) counter(level slog.Level) *atomic.Uint64 {
	switch {
	case level < slog.LevelInfo:
		return &d.debug
	case level < slog.LevelWarn:
		return &d.info
	case level < slog.LevelError:
		return &d.warn
	default:
		return &d.error
	}
}

// NewPercentLogger wraps handler in a PercentLogger and returns a logger for it.
func NewPercentLogger(levelPercents map[slog.Level]float64, handler slog.Handler, minLevel slog.Level) *slog.Logger {
	return slog.New(NewPercentHandler(levelPercents, handler, minLevel))
}

func NewPercentHandler(levelPercents map[slog.Level]float64, handler slog.Handler, minLevel slog.Level) *PercentLogger {
	return &PercentLogger{
		handler:       handler,
		levelPercents: maps.Clone(levelPercents),
		minLevel:      minLevel,
		sample:        rand.Float64,
		dropped:       &dropCounters{},
	}
}

func (pl *PercentLogger) Enabled(ctx context.Context, level slog.Level) bool {
	if level < pl.minLevel || !pl.handler.Enabled(ctx, level) {
		return false
	}

	percent, ok := pl.levelPercents[level]
	if !ok {
		return true
	}
	if pl.sample()*100 < percent {
		return true
	}
	pl.dropped.counter(level).Add(1)
	return false
}

func (pl *PercentLogger) Handle(ctx context.Context, r slog.Record) error {
	return pl.handler.Handle(ctx, r)
}

func (pl *PercentLogger) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *pl
	clone.handler = pl.handler.WithAttrs(attrs)
	return &clone
}

func (pl *PercentLogger) WithGroup(name string) slog.Handler {
	clone := *pl
	clone.handler = pl.handler.WithGroup(name)
	return &clone
}

// Dropped returns how many records at level were sampled out. Loggers derived
// with With or WithGroup share the count.
func (pl *PercentLogger) Dropped(level slog.Level) uint64 {
	return pl.dropped.counter(level).Load()
}
