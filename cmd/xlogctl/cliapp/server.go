package cliapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ankur-anand/xlogview/cmd/xlogctl/config"
	xmetrics "github.com/ankur-anand/xlogview/internal/metrics"
	"github.com/ankur-anand/xlogview/internal/middleware"
	"github.com/ankur-anand/xlogview/internal/xlogctl/catalog"
	"github.com/ankur-anand/xlogview/internal/xlogctl/filter"
	"github.com/hashicorp/go-metrics"
	hashiprom "github.com/hashicorp/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg      config.Config
	segSize  uint64
	filter   filter.Filter
	resolver catalog.Resolver
	logger   *slog.Logger

	services []Service
	deps     *Dependencies

	// callbacks when shutdown.
	DeferCallback []func(ctx context.Context)
}

func NewServer(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Init validates the configuration and loads the relation catalog.
func (ms *Server) Init(ctx context.Context) error {
	if ms.cfg.WalDir == "" {
		return errors.New("wal_dir is not set")
	}

	segSize, err := ms.cfg.SegmentBytes()
	if err != nil {
		return err
	}
	ms.segSize = segSize

	flt, err := filter.FromConfig(ms.cfg.Filter)
	if err != nil {
		return err
	}
	ms.filter = flt

	if ms.cfg.CatalogPath == "" {
		return nil
	}
	store, err := catalog.OpenStore(ms.cfg.CatalogPath, true)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	names, err := store.Names()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	databases, relations := names.Len()
	ms.logger.Info("[xlogview.cliapp] Catalog loaded",
		"path", ms.cfg.CatalogPath,
		"databases", databases,
		"relations", relations,
	)
	ms.resolver = names
	return nil
}

func (ms *Server) InitTelemetry(ctx context.Context) error {
	prometheus.Unregister(collectors.NewGoCollector())
	err := prometheus.Register(collectors.NewBuildInfoCollector())
	if err != nil {
		return err
	}

	proc, err := xmetrics.NewProcessCollector()
	if err != nil {
		return err
	}
	if err := prometheus.Register(proc); err != nil {
		return err
	}

	sink, err := hashiprom.NewPrometheusSink()
	if err != nil {
		return err
	}

	defaultConfig := metrics.DefaultConfig("xlogview")
	defaultConfig.EnableHostname = false
	_, err = metrics.NewGlobal(defaultConfig, sink)
	if err != nil {
		return err
	}
	middleware.RegisterMetrics()
	return nil
}

// Run serves the WAL directory until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ms := NewServer(cfg, logger)

	setupFunc := []func(context.Context) error{
		ms.Init,
		ms.InitTelemetry,
	}
	for _, fn := range setupFunc {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	interval, err := cfg.Reporter.Duration()
	if err != nil {
		return err
	}

	reporter := NewWalReporterService(interval)
	ms.Register(&HTTPService{})
	ms.Register(reporter)
	ms.Register(NewDebugService(reporter))
	ms.BuildDeps()

	if err := ms.SetupServices(ctx); err != nil {
		return err
	}

	runErr := ms.RunServices(ctx)
	ms.logger.Info("[xlogview.cliapp] server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	ms.CloseServices(shutdownCtx)
	for _, fn := range ms.DeferCallback {
		fn(shutdownCtx)
	}
	return runErr
}
