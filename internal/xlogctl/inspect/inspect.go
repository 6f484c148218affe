package inspect

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ankur-anand/xlogview/internal/xlogctl/catalog"
	"github.com/ankur-anand/xlogview/internal/xlogctl/filter"
	"github.com/ankur-anand/xlogview/internal/xlogctl/output"
	"github.com/ankur-anand/xlogview/internal/xlogctl/segment"
	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-metrics"
)

var ErrInvalidOffset = errors.New("offset outside file")

var (
	packageKey = []string{"xlogview", "inspect"}

	mKeyRecordsTotal   = append(packageKey, "records", "total")
	mKeyPartialTotal   = append(packageKey, "partial", "total")
	mKeyBadMagicTotal  = append(packageKey, "bad", "magic", "total")
	mKeyDecodeDuration = append(packageKey, "decode", "duration")
)

// Options controls how a file is decoded and rendered.
type Options struct {
	// StartOffset is rounded down to a page boundary.
	StartOffset int64
	Filter      filter.Filter
	Reassemble  bool
	// Resolver labels relations. Nil renders numbers only.
	Resolver catalog.Resolver
	RawIDs   bool
	// SegmentSize defaults to xlog.SegmentSize.
	SegmentSize uint64
	// Limit caps the number of rendered records when positive.
	Limit  int
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) resolver() catalog.Resolver {
	if o.Resolver != nil {
		return o.Resolver
	}
	return (*catalog.Names)(nil)
}

func (o Options) segmentSize() uint64 {
	if o.SegmentSize == 0 {
		return xlog.SegmentSize
	}
	return o.SegmentSize
}

// decoded is the outcome of scanning one file.
type decoded struct {
	name  string
	base  xlog.LSN
	size  int64
	start int64
	scan  xlog.ScanResult
}

func (d *decoded) partial() int {
	n := 0
	for _, rec := range d.scan.Records {
		if rec.Partial {
			n++
		}
	}
	return n
}

func decodeFile(path string, opts Options) (*decoded, error) {
	f, err := segment.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment: %w", err)
	}
	defer f.Close()

	start := opts.StartOffset
	if start < 0 || (start > 0 && start >= f.Size()) {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrInvalidOffset, start, f.Size())
	}
	start -= start % xlog.PageSize

	decodeOpts := []xlog.Option{xlog.WithBaseOffset(int(start))}
	if opts.Reassemble {
		decodeOpts = append(decodeOpts, xlog.WithReassembly())
	}

	labels := []metrics.Label{{Name: "segment", Value: f.Name()}}
	startTime := time.Now()
	d := &decoded{
		name:  f.Name(),
		base:  f.BaseLSN(opts.segmentSize()),
		size:  f.Size(),
		start: start,
		scan:  xlog.Scan(f.Bytes()[start:], decodeOpts...),
	}
	metrics.MeasureSinceWithLabels(mKeyDecodeDuration, startTime, labels)
	metrics.IncrCounterWithLabels(mKeyRecordsTotal, float32(len(d.scan.Records)), labels)

	logger := opts.logger()
	if n := d.partial(); n > 0 {
		metrics.IncrCounterWithLabels(mKeyPartialTotal, float32(n), labels)
		logger.Debug("[xlogview.inspect] Partial records at end of file",
			"segment", d.name, "count", n)
	}
	if d.scan.Stop == xlog.StopBadMagic {
		metrics.IncrCounterWithLabels(mKeyBadMagicTotal, 1, labels)
		logger.Warn("[xlogview.inspect] Stopped at invalid page header",
			"segment", d.name,
			"offset", start+int64(d.scan.StopOffset),
			"pages", d.scan.Pages,
		)
	}
	return d, nil
}

// InspectFile decodes the WAL file at path and renders the records that pass
// the filter. Records outside the segment named by the file are dropped when
// the name carries a position.
func InspectFile(path string, opts Options) (*output.RecordReport, error) {
	d, err := decodeFile(path, opts)
	if err != nil {
		return nil, err
	}

	flt := opts.Filter.InSegment(d.base, opts.segmentSize())
	resolver := opts.resolver()

	report := &output.RecordReport{
		File:       d.name,
		Size:       d.size,
		StartAt:    d.start,
		Pages:      d.scan.Pages,
		Stop:       d.scan.Stop.String(),
		StopOffset: d.start + int64(d.scan.StopOffset),
		Decoded:    len(d.scan.Records),
		Partial:    d.partial(),
		Records:    make([]output.RecordInfo, 0),
	}
	if d.base != 0 {
		report.BaseLSN = d.base.String()
	}

	for _, rec := range d.scan.Records {
		if !flt.Match(rec) {
			continue
		}
		if opts.Limit > 0 && len(report.Records) == opts.Limit {
			report.Truncated = true
			break
		}
		report.Records = append(report.Records, recordInfo(rec, resolver, opts.RawIDs))
	}
	return report, nil
}

func recordInfo(rec xlog.Record, resolver catalog.Resolver, raw bool) output.RecordInfo {
	info := output.RecordInfo{
		LSN:         rec.LSN.String(),
		Offset:      rec.Offset,
		Rmgr:        xlog.NameOf(rec.Rmgr),
		RmgrID:      uint8(rec.Rmgr),
		Info:        rec.Info,
		Length:      rec.TotalLen,
		XID:         rec.XID,
		Description: rec.Description,
		Partial:     rec.Partial,
	}
	for _, node := range rec.Relations {
		info.Relations = append(info.Relations, resolver.Label(node, raw))
	}
	return info
}

// ListSegments describes the segment files of dir.
func ListSegments(dir string, segSize uint64) ([]output.SegmentInfo, error) {
	entries, err := segment.List(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list WAL directory: %w", err)
	}

	result := make([]output.SegmentInfo, 0, len(entries))
	for _, e := range entries {
		result = append(result, output.SegmentInfo{
			Name:         e.Name,
			TimeLineID:   e.Segment.TimeLineID,
			StartLSN:     e.Segment.StartLSN(segSize).String(),
			Size:         e.Size,
			SizeHuman:    humanize.IBytes(uint64(e.Size)),
			Partial:      e.Partial,
			LastModified: e.ModTime,
		})
	}
	return result, nil
}
