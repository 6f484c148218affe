package inspect

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/ankur-anand/xlogview/internal/xlogctl/output"
	"github.com/ankur-anand/xlogview/internal/xlogctl/segment"
	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

type segmentStats struct {
	ok       bool
	records  int64
	partial  int64
	first    xlog.LSN
	last     xlog.LSN
	perRmgr  map[xlog.RmgrID]int64
	perBytes map[xlog.RmgrID]int64
}

// GetStats decodes every segment of dir concurrently and aggregates the
// records that pass opts.Filter. Unreadable segments are counted, not fatal.
func GetStats(ctx context.Context, dir string, opts Options) (*output.WalStats, error) {
	entries, err := segment.List(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list WAL directory: %w", err)
	}

	results := make([]segmentStats, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			segOpts := opts
			segOpts.StartOffset = 0
			d, err := decodeFile(e.Path, segOpts)
			if err != nil {
				opts.logger().Warn("[xlogview.inspect] Skipping unreadable segment",
					"segment", e.Name, "error", err)
				return nil
			}
			results[i] = collect(d, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sizes := make([]int64, len(entries))
	for i, e := range entries {
		sizes[i] = e.Size
	}
	return aggregate(sizes, results), nil
}

// aggregate merges per-segment results. sizes[i] is the file size of the
// segment that produced results[i].
func aggregate(sizes []int64, results []segmentStats) *output.WalStats {
	stats := &output.WalStats{TotalSegments: len(results), ByRmgr: []output.RmgrCount{}}
	counts := make(map[xlog.RmgrID]int64)
	bytes := make(map[xlog.RmgrID]int64)
	var first, last xlog.LSN
	seen := false

	for i, r := range results {
		stats.TotalSize += sizes[i]
		if !r.ok {
			stats.BadSegments++
			continue
		}
		stats.TotalRecords += r.records
		stats.PartialRecords += r.partial
		for id, n := range r.perRmgr {
			counts[id] += n
			bytes[id] += r.perBytes[id]
		}
		if r.records == 0 {
			continue
		}
		if !seen || r.first < first {
			first = r.first
		}
		if !seen || r.last > last {
			last = r.last
		}
		seen = true
	}

	stats.TotalSizeHuman = humanize.IBytes(uint64(stats.TotalSize))
	if seen {
		stats.FirstLSN = first.String()
		stats.LastLSN = last.String()
	}

	for id, n := range counts {
		stats.ByRmgr = append(stats.ByRmgr, output.RmgrCount{
			Rmgr:    xlog.NameOf(id),
			Records: n,
			Bytes:   bytes[id],
		})
	}
	sort.Slice(stats.ByRmgr, func(i, j int) bool {
		a, b := stats.ByRmgr[i], stats.ByRmgr[j]
		if a.Records != b.Records {
			return a.Records > b.Records
		}
		return a.Rmgr < b.Rmgr
	})
	return stats
}

func collect(d *decoded, opts Options) segmentStats {
	flt := opts.Filter.InSegment(d.base, opts.segmentSize())
	s := segmentStats{
		ok:       true,
		perRmgr:  make(map[xlog.RmgrID]int64),
		perBytes: make(map[xlog.RmgrID]int64),
	}
	for _, rec := range d.scan.Records {
		if !flt.Match(rec) {
			continue
		}
		if s.records == 0 || rec.LSN < s.first {
			s.first = rec.LSN
		}
		if rec.LSN > s.last {
			s.last = rec.LSN
		}
		s.records++
		if rec.Partial {
			s.partial++
		}
		s.perRmgr[rec.Rmgr]++
		s.perBytes[rec.Rmgr] += int64(rec.TotalLen)
	}
	return s
}
