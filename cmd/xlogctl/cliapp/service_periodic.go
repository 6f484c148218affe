package cliapp

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ankur-anand/xlogview/internal/xlogctl/segment"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-metrics"
)

var (
	packageKey = []string{"xlogview", "waldir"}

	mKeySegments  = append(packageKey, "segments")
	mKeyTotalSize = append(packageKey, "size", "bytes")
	mKeyNewest    = append(packageKey, "newest", "segno")
)

// WalDirSnapshot is the state of a WAL directory at one point in time.
type WalDirSnapshot struct {
	WalDir     string         `json:"wal_dir"`
	Segments   int            `json:"segments"`
	TotalBytes int64          `json:"total_bytes"`
	TotalSize  string         `json:"total_size"`
	Newest     *NewestSegment `json:"newest,omitempty"`
	TakenAt    time.Time      `json:"taken_at"`
}

type NewestSegment struct {
	Name     string `json:"name"`
	StartLSN string `json:"start_lsn"`
	SegNo    uint32 `json:"segno"`
	Partial  bool   `json:"partial"`
}

func scanWalDir(dir string, segSize uint64) (WalDirSnapshot, error) {
	entries, err := segment.List(dir)
	if err != nil {
		return WalDirSnapshot{}, err
	}

	snap := WalDirSnapshot{WalDir: dir, Segments: len(entries), TakenAt: time.Now()}
	for _, e := range entries {
		snap.TotalBytes += e.Size
	}
	snap.TotalSize = humanize.IBytes(uint64(snap.TotalBytes))
	if len(entries) > 0 {
		newest := entries[len(entries)-1]
		snap.Newest = &NewestSegment{
			Name:     newest.Name,
			StartLSN: newest.Segment.StartLSN(segSize).String(),
			SegNo:    newest.Segment.SegNo,
			Partial:  newest.Partial,
		}
	}
	return snap, nil
}

// WalReporterService periodically logs and gauges the state of the WAL
// directory. The last snapshot is kept for the debug endpoint.
type WalReporterService struct {
	walDir   string
	segSize  uint64
	interval time.Duration
	logger   *slog.Logger
	last     atomic.Pointer[WalDirSnapshot]
}

func NewWalReporterService(interval time.Duration) *WalReporterService {
	return &WalReporterService{interval: interval}
}

func (w *WalReporterService) Name() string {
	return "wal-reporter"
}

func (w *WalReporterService) Setup(ctx context.Context, deps *Dependencies) error {
	w.walDir = deps.WalDir
	w.segSize = deps.SegmentSize
	w.logger = deps.Logger
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.interval == 0 {
		w.interval = 1 * time.Minute
	}
	return nil
}

func (w *WalReporterService) Run(ctx context.Context) error {
	w.report()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.report()
		case <-ctx.Done():
			return nil
		}
	}
}

// Last returns the most recent successful snapshot.
func (w *WalReporterService) Last() (WalDirSnapshot, bool) {
	snap := w.last.Load()
	if snap == nil {
		return WalDirSnapshot{}, false
	}
	return *snap, true
}

func (w *WalReporterService) report() {
	snap, err := scanWalDir(w.walDir, w.segSize)
	if err != nil {
		w.logger.Warn("[xlogview.cliapp]",
			slog.String("event_type", "wal.dir.report.failed"),
			slog.String("wal_dir", w.walDir),
			slog.Any("error", err))
		return
	}
	w.last.Store(&snap)

	metrics.SetGauge(mKeySegments, float32(snap.Segments))
	metrics.SetGauge(mKeyTotalSize, float32(snap.TotalBytes))

	attrs := []any{
		slog.String("event_type", "wal.dir.report"),
		slog.Int("segments", snap.Segments),
		slog.String("size", snap.TotalSize),
	}
	if n := snap.Newest; n != nil {
		metrics.SetGauge(mKeyNewest, float32(n.SegNo))
		attrs = append(attrs, slog.Group("newest",
			slog.String("name", n.Name),
			slog.String("start_lsn", n.StartLSN),
			slog.Bool("partial", n.Partial),
		))
	}
	w.logger.Info("[xlogview.cliapp]", attrs...)
}

func (w *WalReporterService) Close(ctx context.Context) error {
	return nil
}
