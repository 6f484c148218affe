package cliapp

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
)

// DebugService serves profiling, expvar and WAL directory state on a
// loopback port when [pprof] is enabled.
type DebugService struct {
	reporter *WalReporterService
	walDir   string
	segSize  uint64
	logger   *slog.Logger

	enabled   bool
	addr      string
	server    *http.Server
	boundAddr string
	ready     chan struct{}
}

// NewDebugService returns a debug service that reads the last snapshot of
// reporter. A nil reporter makes every request scan the directory.
func NewDebugService(reporter *WalReporterService) *DebugService {
	return &DebugService{reporter: reporter}
}

func (d *DebugService) Name() string {
	return "debug"
}

func (d *DebugService) Setup(ctx context.Context, deps *Dependencies) error {
	d.ready = make(chan struct{})
	d.walDir = deps.WalDir
	d.segSize = deps.SegmentSize
	d.logger = deps.Logger
	if d.logger == nil {
		d.logger = slog.Default()
	}

	cfg := deps.Config.PProfConfig
	if !cfg.Enabled {
		close(d.ready)
		return nil
	}
	if cfg.Port != 0 && !isValidPort(cfg.Port) {
		return fmt.Errorf("invalid pprof port %d", cfg.Port)
	}
	d.enabled = true
	d.addr = fmt.Sprintf("localhost:%d", cfg.Port)

	d.server = &http.Server{
		ReadTimeout: 5 * time.Second,
		// profiles stream for up to the requested seconds.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		Handler:      d.router(),
	}
	return nil
}

func (d *DebugService) router() *mux.Router {
	r := mux.NewRouter()
	dbg := r.PathPrefix("/debug").Subrouter()
	dbg.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	dbg.HandleFunc("/pprof/profile", pprof.Profile)
	dbg.HandleFunc("/pprof/symbol", pprof.Symbol)
	dbg.HandleFunc("/pprof/trace", pprof.Trace)
	dbg.PathPrefix("/pprof/").HandlerFunc(pprof.Index)
	dbg.Handle("/vars", expvar.Handler()).Methods(http.MethodGet)
	dbg.HandleFunc("/waldir", d.handleWalDir).Methods(http.MethodGet)
	return r
}

func (d *DebugService) handleWalDir(w http.ResponseWriter, r *http.Request) {
	snap, ok := WalDirSnapshot{}, false
	if d.reporter != nil {
		snap, ok = d.reporter.Last()
	}
	if !ok {
		var err error
		snap, err = scanWalDir(d.walDir, d.segSize)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (d *DebugService) Run(ctx context.Context) error {
	if !d.enabled {
		return nil
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", d.addr)
	if err != nil {
		return fmt.Errorf("debug listen error: %w", err)
	}
	d.boundAddr = l.Addr().String()
	close(d.ready)

	d.logger.Info("[xlogview.cliapp]",
		slog.String("event_type", "debug.server.started"),
		slog.String("addr", d.boundAddr),
		slog.String("wal_dir", d.walDir),
	)

	// profiles in flight are cut off on shutdown.
	stop := context.AfterFunc(ctx, func() { d.server.Close() })
	defer stop()

	err = d.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (d *DebugService) Close(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	if err := d.server.Shutdown(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("debug shutdown error: %w", err)
	}
	return nil
}

func (d *DebugService) Enabled() bool {
	return d.enabled
}

func (d *DebugService) BoundAddr() string {
	return d.boundAddr
}

func (d *DebugService) Ready() <-chan struct{} {
	return d.ready
}
