package cliapp

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// BannerInfo is what serve prints under the logo.
type BannerInfo struct {
	WalDir      string
	SegmentSize uint64
	Addr        string
}

// PrintBanner writes the logo followed by a summary of the WAL directory.
func PrintBanner(w io.Writer, info BannerInfo) {
	logo := figure.NewFigure("xlogview", "small", true).String()
	width := 0
	for _, line := range strings.Split(logo, "\n") {
		width = max(width, len(line))
	}

	color.New(color.FgCyan, color.Bold).Fprintln(w, logo)

	dim := color.New(color.FgHiBlack)
	lines := []string{
		"PostgreSQL WAL segment viewer",
		info.WalDir,
	}
	if snap, err := scanWalDir(info.WalDir, info.SegmentSize); err == nil {
		summary := fmt.Sprintf("%d segments of %s, %s", snap.Segments,
			humanize.IBytes(segmentSizeOrDefault(info.SegmentSize)), snap.TotalSize)
		if snap.Newest != nil {
			summary += ", newest starts at " + snap.Newest.StartLSN
		}
		lines = append(lines, summary)
	} else {
		lines = append(lines, color.YellowString("unreadable: %v", err))
	}
	lines = append(lines, "http://"+info.Addr)

	for _, line := range lines {
		pad := max((width-len(line))/2, 0)
		dim.Fprintln(w, strings.Repeat(" ", pad)+line)
	}
	fmt.Fprintln(w)
}

func segmentSizeOrDefault(n uint64) uint64 {
	if n == 0 {
		return 16 << 20
	}
	return n
}
