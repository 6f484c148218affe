package output

import (
	"io"
	"time"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// SegmentInfo describes a segment file of a WAL directory.
type SegmentInfo struct {
	Name         string    `json:"name"`
	TimeLineID   uint32    `json:"timeline"`
	StartLSN     string    `json:"start_lsn"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	Partial      bool      `json:"partial,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// RecordInfo is the display form of one WAL record.
type RecordInfo struct {
	LSN         string   `json:"lsn"`
	Offset      int      `json:"offset"`
	Rmgr        string   `json:"rmgr"`
	RmgrID      uint8    `json:"rmgr_id"`
	Info        uint8    `json:"info"`
	Length      uint32   `json:"length"`
	XID         uint32   `json:"xid"`
	Relations   []string `json:"relations,omitempty"`
	Description string   `json:"description"`
	Partial     bool     `json:"partial,omitempty"`
}

// RecordReport is the result of decoding one file.
type RecordReport struct {
	File       string       `json:"file"`
	BaseLSN    string       `json:"base_lsn,omitempty"`
	Size       int64        `json:"size"`
	StartAt    int64        `json:"start_offset"`
	Pages      int          `json:"pages"`
	Stop       string       `json:"stop"`
	StopOffset int64        `json:"stop_offset"`
	Decoded    int          `json:"decoded"`
	Partial    int          `json:"partial"`
	Truncated  bool         `json:"truncated,omitempty"`
	Records    []RecordInfo `json:"records"`
}

// RmgrCount aggregates the records of one resource manager.
type RmgrCount struct {
	Rmgr    string `json:"rmgr"`
	Records int64  `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// WalStats contains aggregate statistics over a WAL directory.
type WalStats struct {
	TotalSegments  int         `json:"total_segments"`
	TotalSize      int64       `json:"total_size"`
	TotalSizeHuman string      `json:"total_size_human"`
	TotalRecords   int64       `json:"total_records"`
	PartialRecords int64       `json:"partial_records"`
	BadSegments    int         `json:"bad_segments"`
	FirstLSN       string      `json:"first_lsn,omitempty"`
	LastLSN        string      `json:"last_lsn,omitempty"`
	ByRmgr         []RmgrCount `json:"by_rmgr"`
}

// CatalogSummary describes an imported relation catalog.
type CatalogSummary struct {
	Path       string    `json:"path"`
	Databases  int       `json:"databases"`
	Relations  int       `json:"relations"`
	ImportedAt time.Time `json:"imported_at"`
}

// Formatter is the interface for output formatting.
type Formatter interface {
	WriteSegmentList(w io.Writer, segments []SegmentInfo) error
	WriteRecordReport(w io.Writer, report RecordReport) error
	// WriteRecords writes a batch of records without a report, as tail does.
	WriteRecords(w io.Writer, records []RecordInfo) error
	WriteWalStats(w io.Writer, stats WalStats) error
	WriteCatalogSummary(w io.Writer, summary CatalogSummary) error
}

// NewFormatter creates a new formatter for the given format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &TableFormatter{}
	}
}
