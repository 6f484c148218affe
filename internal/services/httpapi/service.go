package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ankur-anand/xlogview/internal/xlogctl/catalog"
	"github.com/ankur-anand/xlogview/internal/xlogctl/filter"
	"github.com/ankur-anand/xlogview/internal/xlogctl/inspect"
	"github.com/ankur-anand/xlogview/internal/xlogctl/segment"
	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/gorilla/mux"
)

const (
	defaultRecordLimit = 1000
	maxRecordLimit     = 100000
)

// Config configures the read-only WAL API.
type Config struct {
	WalDir      string
	SegmentSize uint64
	// Filter is applied when a request carries no filter parameters.
	Filter   filter.Filter
	Resolver catalog.Resolver
	// Limit is the default record limit per response.
	Limit  int
	Logger *slog.Logger
}

// Service implements the HTTP handlers over a WAL directory.
type Service struct {
	cfg            Config
	logger         *slog.Logger
	healthResponse []byte
}

// NewService creates a new HTTP API service.
func NewService(cfg Config) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultRecordLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	healthJSON, _ := json.Marshal(HealthResponse{
		Status: "ok",
		WalDir: cfg.WalDir,
	})

	return &Service{
		cfg:            cfg,
		logger:         logger,
		healthResponse: healthJSON,
	}
}

// RegisterRoutes registers all HTTP API routes with the given router.
// mws wrap the /api/v1 routes only.
func (s *Service) RegisterRoutes(router *mux.Router, mws ...mux.MiddlewareFunc) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(mws...)

	api.HandleFunc("/segments", s.handleListSegments).Methods(http.MethodGet)
	api.HandleFunc("/segments/{name}/records", s.handleRecords).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		err := json.NewEncoder(w).Encode(data)
		if err != nil {
			slog.Error("[httpapi]: error encoding response", "err", err)
		}
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

func (s *Service) options() inspect.Options {
	return inspect.Options{
		Filter:      s.cfg.Filter,
		Resolver:    s.cfg.Resolver,
		SegmentSize: s.cfg.SegmentSize,
		Limit:       s.cfg.Limit,
		Logger:      s.logger,
	}
}

func (s *Service) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := inspect.ListSegments(s.cfg.WalDir, s.cfg.SegmentSize)
	if err != nil {
		s.logger.Error("[httpapi] list segments failed", "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, segments)
}

func (s *Service) handleRecords(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, err := xlog.ParseSegmentName(strings.TrimSuffix(name, ".partial")); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts, err := s.parseRecordOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := segment.Find(s.cfg.WalDir, name)
	if errors.Is(err, segment.ErrSegmentNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report, err := inspect.InspectFile(entry.Path, opts)
	switch {
	case errors.Is(err, inspect.ErrInvalidOffset):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("[httpapi] inspect failed", "segment", name, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	opts := s.options()
	if hasFilterParams(r) {
		flt, err := parseFilter(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Filter = flt
	}

	stats, err := inspect.GetStats(r.Context(), s.cfg.WalDir, opts)
	if err != nil {
		s.logger.Error("[httpapi] stats failed", "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

var filterParams = []string{"text", "rmgr", "interesting", "upto"}

func hasFilterParams(r *http.Request) bool {
	q := r.URL.Query()
	for _, p := range filterParams {
		if q.Has(p) {
			return true
		}
	}
	return false
}

// parseFilter builds a filter from ?text=&rmgr=&interesting=&upto=.
// rmgr may repeat or hold a comma separated list.
func parseFilter(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()
	cfg := filter.Config{
		Text:    q.Get("text"),
		UptoLSN: q.Get("upto"),
	}
	for _, v := range q["rmgr"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Rmgrs = append(cfg.Rmgrs, name)
			}
		}
	}
	if v := q.Get("interesting"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter.Filter{}, fmt.Errorf("invalid interesting %q", v)
		}
		cfg.InterestingOnly = b
	}
	return filter.FromConfig(cfg)
}

func (s *Service) parseRecordOptions(r *http.Request) (inspect.Options, error) {
	opts := s.options()
	q := r.URL.Query()

	if hasFilterParams(r) {
		flt, err := parseFilter(r)
		if err != nil {
			return opts, err
		}
		opts.Filter = flt
	}

	if v := q.Get("offset"); v != "" {
		off, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid offset %q", v)
		}
		opts.StartOffset = off
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRecordLimit {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = n
	}

	for _, p := range []struct {
		name string
		dst  *bool
	}{
		{"raw", &opts.RawIDs},
		{"reassemble", &opts.Reassemble},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid %s %q", p.name, v)
		}
		*p.dst = b
	}
	return opts, nil
}

type HealthResponse struct {
	Status string `json:"status"`
	WalDir string `json:"wal_dir"`
}

// HandleHealth handles the /health endpoint for server health checks.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(s.healthResponse); err != nil {
		slog.Error("[httpapi]: error writing health response", "err", err)
	}
}
