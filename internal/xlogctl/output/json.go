package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter outputs data in JSON format.
type JSONFormatter struct{}

// WriteSegmentList writes segment list as JSON.
func (f *JSONFormatter) WriteSegmentList(w io.Writer, segments []SegmentInfo) error {
	return writeJSON(w, segments)
}

// WriteRecordReport writes a decoded file as JSON.
func (f *JSONFormatter) WriteRecordReport(w io.Writer, report RecordReport) error {
	if report.Records == nil {
		report.Records = []RecordInfo{}
	}
	return writeJSON(w, report)
}

// WriteRecords writes one JSON object per line.
func (f *JSONFormatter) WriteRecords(w io.Writer, records []RecordInfo) error {
	encoder := json.NewEncoder(w)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteWalStats writes aggregate WAL statistics as JSON.
func (f *JSONFormatter) WriteWalStats(w io.Writer, stats WalStats) error {
	return writeJSON(w, stats)
}

func (f *JSONFormatter) WriteCatalogSummary(w io.Writer, summary CatalogSummary) error {
	return writeJSON(w, summary)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
