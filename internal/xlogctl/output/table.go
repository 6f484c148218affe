package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	warnColor    = color.New(color.FgYellow)
	partialColor = color.New(color.FgRed)
)

// TableFormatter outputs data in human-readable table format.
type TableFormatter struct{}

// WriteSegmentList writes segment list as a table.
func (f *TableFormatter) WriteSegmentList(w io.Writer, segments []SegmentInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIMELINE\tSTART_LSN\tSIZE\tLAST_MODIFIED")

	for _, seg := range segments {
		name := seg.Name
		if seg.Partial {
			name += " (partial)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			name,
			seg.TimeLineID,
			seg.StartLSN,
			seg.SizeHuman,
			formatTime(seg.LastModified),
		)
	}

	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// WriteRecordReport writes the file summary followed by the record table.
func (f *TableFormatter) WriteRecordReport(w io.Writer, report RecordReport) error {
	fmt.Fprintf(w, "File:       %s\n", report.File)
	if report.BaseLSN != "" {
		fmt.Fprintf(w, "Base LSN:   %s\n", report.BaseLSN)
	}
	fmt.Fprintf(w, "Size:       %s (%s bytes)\n", humanize.IBytes(uint64(report.Size)), humanize.Comma(report.Size))
	fmt.Fprintf(w, "Pages:      %s\n", humanize.Comma(int64(report.Pages)))
	fmt.Fprintf(w, "Records:    %s decoded, %s shown\n",
		humanize.Comma(int64(report.Decoded)),
		humanize.Comma(int64(len(report.Records))),
	)
	if report.Partial > 0 {
		partialColor.Fprintf(w, "Partial:    %d record(s) run past the end of the file\n", report.Partial)
	}
	if report.Stop != "" && report.Stop != xlog.StopEndOfBuffer.String() {
		warnColor.Fprintf(w, "Stopped:    %s at offset %X\n", report.Stop, report.StopOffset)
	}
	fmt.Fprintln(w)

	if err := f.WriteRecords(w, report.Records); err != nil {
		return err
	}
	if report.Truncated {
		fmt.Fprintln(w, "...")
	}
	return nil
}

// WriteRecords writes records as a table.
func (f *TableFormatter) WriteRecords(w io.Writer, records []RecordInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LSN\tOFFSET\tRMGR\tINFO\tLEN\tXID\tRELATIONS\tDESCRIPTION")

	for _, rec := range records {
		rels := "-"
		if len(rec.Relations) > 0 {
			rels = strings.Join(rec.Relations, ",")
		}
		desc := rec.Description
		if rec.Partial {
			desc += " (partial)"
		}
		fmt.Fprintf(tw, "%s\t%X\t%s (%d)\t%02X\t%d\t%d\t%s\t%s\n",
			rec.LSN,
			rec.Offset,
			rec.Rmgr,
			rec.RmgrID,
			rec.Info,
			rec.Length,
			rec.XID,
			rels,
			desc,
		)
	}

	return tw.Flush()
}

// WriteWalStats writes aggregate WAL statistics.
func (f *TableFormatter) WriteWalStats(w io.Writer, stats WalStats) error {
	fmt.Fprintln(w, "WAL Statistics")
	fmt.Fprintln(w, "==============")
	fmt.Fprintf(w, "Total Segments:    %d\n", stats.TotalSegments)
	if stats.BadSegments > 0 {
		warnColor.Fprintf(w, "  Unreadable:      %d\n", stats.BadSegments)
	}
	fmt.Fprintf(w, "Total Size:        %s\n", stats.TotalSizeHuman)
	fmt.Fprintf(w, "Total Records:     %s\n", humanize.Comma(stats.TotalRecords))
	fmt.Fprintf(w, "Partial Records:   %s\n", humanize.Comma(stats.PartialRecords))
	if stats.TotalRecords > 0 {
		fmt.Fprintf(w, "LSN Range:         %s - %s\n", stats.FirstLSN, stats.LastLSN)
	}

	if len(stats.ByRmgr) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RMGR\tRECORDS\tBYTES")
	for _, c := range stats.ByRmgr {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			c.Rmgr,
			humanize.Comma(c.Records),
			humanize.IBytes(uint64(c.Bytes)),
		)
	}
	return tw.Flush()
}

// WriteCatalogSummary writes what a catalog store holds.
func (f *TableFormatter) WriteCatalogSummary(w io.Writer, summary CatalogSummary) error {
	fmt.Fprintf(w, "Catalog:     %s\n", summary.Path)
	fmt.Fprintf(w, "Databases:   %s\n", humanize.Comma(int64(summary.Databases)))
	fmt.Fprintf(w, "Relations:   %s\n", humanize.Comma(int64(summary.Relations)))
	if summary.ImportedAt.IsZero() {
		fmt.Fprintln(w, "Imported:    never")
		return nil
	}
	fmt.Fprintf(w, "Imported:    %s (%s)\n", formatTime(summary.ImportedAt), humanize.Time(summary.ImportedAt))
	return nil
}
