package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/bits"
	"os"
	"strings"
	"time"

	"github.com/ankur-anand/xlogview/internal/xlogctl/filter"
	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultPath     = "./xlogview.toml"
	DefaultHTTPPort = 4790

	minSegmentSize = 1 << 20
	maxSegmentSize = 1 << 30
)

// Config : top-level configuration.
type Config struct {
	WalDir      string         `toml:"wal_dir"`
	SegmentSize string         `toml:"segment_size"`
	CatalogPath string         `toml:"catalog_path"`
	LogConfig   LogConfig      `toml:"log_config"`
	Filter      filter.Config  `toml:"filter"`
	HTTP        HTTPConfig     `toml:"http"`
	Tail        TailConfig     `toml:"tail"`
	PProfConfig PProfConfig    `toml:"pprof"`
	Reporter    ReporterConfig `toml:"reporter"`
}

type LogConfig struct {
	MinLevelPercents map[string]float64 `toml:"min_level_percents"`
	LogLevel         string             `toml:"log_level"`
}

type HTTPConfig struct {
	ListenIP    string  `toml:"listen_ip"`
	Port        int     `toml:"port"`
	RecordLimit int     `toml:"record_limit"`
	Limiter     Limiter `toml:"limiter"`
}

type Limiter struct {
	Interval string `toml:"interval"`
	Burst    int    `toml:"burst"`
}

type TailConfig struct {
	InitialInterval string `toml:"initial_interval"`
	MaxInterval     string `toml:"max_interval"`
}

type PProfConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type ReporterConfig struct {
	Interval string `toml:"interval"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		SegmentSize: "16MiB",
		LogConfig:   LogConfig{LogLevel: "info"},
		HTTP: HTTPConfig{
			ListenIP:    "127.0.0.1",
			Port:        DefaultHTTPPort,
			RecordLimit: 1000,
			Limiter:     Limiter{Interval: "50ms", Burst: 20},
		},
		Tail:        TailConfig{InitialInterval: "200ms", MaxInterval: "5s"},
		PProfConfig: PProfConfig{Port: 6060},
		Reporter:    ReporterConfig{Interval: "1m"},
	}
}

// Load reads path over the defaults. A missing file is only an error when
// the path was given explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SegmentBytes parses SegmentSize. Segments are a power of two between
// 1MiB and 1GiB; an empty value is 16MiB.
func (c Config) SegmentBytes() (uint64, error) {
	if c.SegmentSize == "" {
		return 16 << 20, nil
	}
	n, err := humanize.ParseBytes(c.SegmentSize)
	if err != nil {
		return 0, fmt.Errorf("invalid segment_size %q: %w", c.SegmentSize, err)
	}
	if n < minSegmentSize || n > maxSegmentSize || bits.OnesCount64(n) != 1 {
		return 0, fmt.Errorf("invalid segment_size %q: must be a power of two between 1MiB and 1GiB", c.SegmentSize)
	}
	return n, nil
}

// Intervals returns the tail polling bounds.
func (t TailConfig) Intervals() (initial, ceiling time.Duration, err error) {
	initial, err = parseDuration("tail.initial_interval", t.InitialInterval, 200*time.Millisecond)
	if err != nil {
		return 0, 0, err
	}
	ceiling, err = parseDuration("tail.max_interval", t.MaxInterval, 5*time.Second)
	if err != nil {
		return 0, 0, err
	}
	if ceiling < initial {
		return 0, 0, fmt.Errorf("tail.max_interval %s is below initial_interval %s", ceiling, initial)
	}
	return initial, ceiling, nil
}

func (r ReporterConfig) Duration() (time.Duration, error) {
	return parseDuration("reporter.interval", r.Interval, time.Minute)
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", field)
	}
	return d, nil
}

func ParseLevelPercents(cfg LogConfig) (map[slog.Level]float64, error) {
	out := map[slog.Level]float64{
		slog.LevelDebug: 100.0,
		slog.LevelInfo:  100.0,
		slog.LevelWarn:  100.0,
		slog.LevelError: 100.0,
	}

	for k, v := range cfg.MinLevelPercents {
		switch strings.ToLower(k) {
		case "debug":
			out[slog.LevelDebug] = v
		case "info":
			out[slog.LevelInfo] = v
		case "warn":
			out[slog.LevelWarn] = v
		case "error":
			out[slog.LevelError] = v
		default:
			return nil, fmt.Errorf("unknown log level: %s", k)
		}
	}
	return out, nil
}

func BuildLimiter(cfg Limiter) (*rate.Limiter, error) {
	interval := 1 * time.Second
	burst := 3

	if cfg.Interval != "" {
		parsed, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid limiter interval: %w", err)
		}
		interval = parsed
	}
	if cfg.Burst > 0 {
		burst = cfg.Burst
	}

	return rate.NewLimiter(rate.Every(interval), burst), nil
}
