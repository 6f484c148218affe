package cliapp

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ankur-anand/xlogview/cmd/xlogctl/config"
	"github.com/ankur-anand/xlogview/pkg/logutil"
)

// ParseLogLevel accepts debug, info, warn, warning and error. Empty means info.
func ParseLogLevel(levelStr string) (slog.Level, error) {
	levelStr = strings.TrimSpace(levelStr)
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "":
		return slog.LevelInfo, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", levelStr)
	}
}

// NewLogger builds the sampling stderr logger described by cfg.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	percents, err := config.ParseLevelPercents(cfg)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return logutil.NewPercentLogger(percents, handler, level), nil
}

// isValidPort checks if a given integer is a valid port number (1-65535).
func isValidPort(port int) bool {
	return port >= 1 && port <= 65535
}
