package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []RecordInfo {
	return []RecordInfo{
		{
			LSN:         "A/3F000018",
			Offset:      0x18,
			Rmgr:        "Heap",
			RmgrID:      10,
			Info:        0x40,
			Length:      69,
			XID:         901,
			Relations:   []string{"postgres:accounts", "postgres:orders*"},
			Description: "Heap: HOT_UPDATE",
		},
		{
			LSN:         "A/3F000060",
			Offset:      0x60,
			Rmgr:        "Transaction",
			RmgrID:      1,
			Length:      34,
			XID:         901,
			Description: "Transaction: COMMIT",
			Partial:     true,
		},
	}
}

func TestNewFormatter(t *testing.T) {
	t.Run("returns TableFormatter for table format", func(t *testing.T) {
		f := NewFormatter(FormatTable)
		_, ok := f.(*TableFormatter)
		assert.True(t, ok)
	})

	t.Run("returns JSONFormatter for json format", func(t *testing.T) {
		f := NewFormatter(FormatJSON)
		_, ok := f.(*JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("returns TableFormatter for unknown format", func(t *testing.T) {
		f := NewFormatter("unknown")
		_, ok := f.(*TableFormatter)
		assert.True(t, ok)
	})
}

func TestTableFormatter_WriteSegmentList(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	segments := []SegmentInfo{
		{Name: "000000010000000A0000003F", TimeLineID: 1, StartLSN: "A/3F000000", SizeHuman: "16 MiB", LastModified: time.Now()},
		{Name: "000000010000000A00000040.partial", TimeLineID: 1, StartLSN: "A/40000000", SizeHuman: "16 MiB", Partial: true},
	}

	err := f.WriteSegmentList(&buf, segments)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "START_LSN")
	assert.Contains(t, output, "000000010000000A0000003F")
	assert.Contains(t, output, "A/3F000000")
	assert.Contains(t, output, "(partial)")
}

func TestTableFormatter_WriteRecordReport(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	report := RecordReport{
		File:       "000000010000000A0000003F",
		BaseLSN:    "A/3F000000",
		Size:       16 * 1024 * 1024,
		Pages:      2048,
		Stop:       "bad page magic",
		StopOffset: 0x4000,
		Decoded:    12345,
		Partial:    1,
		Truncated:  true,
		Records:    sampleRecords(),
	}

	err := f.WriteRecordReport(&buf, report)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Base LSN:   A/3F000000")
	assert.Contains(t, output, "16 MiB")
	assert.Contains(t, output, "12,345 decoded, 2 shown")
	assert.Contains(t, output, "bad page magic at offset 4000")
	assert.Contains(t, output, "DESCRIPTION")
	assert.Contains(t, output, "Heap (10)")
	assert.Contains(t, output, "40")
	assert.Contains(t, output, "postgres:accounts,postgres:orders*")
	assert.Contains(t, output, "Heap: HOT_UPDATE")
	assert.Contains(t, output, "Transaction: COMMIT (partial)")
	assert.True(t, strings.HasSuffix(output, "...\n"))
}

func TestTableFormatter_WriteRecordReport_CleanStop(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	err := f.WriteRecordReport(&buf, RecordReport{File: "x", Stop: "end of buffer"})
	require.NoError(t, err)

	output := buf.String()
	assert.NotContains(t, output, "Stopped")
	assert.NotContains(t, output, "Partial")
	assert.NotContains(t, output, "Base LSN")
}

func TestTableFormatter_WriteRecords(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	err := f.WriteRecords(&buf, sampleRecords()[1:])
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "A/3F000060")
	assert.Contains(t, lines[1], " - ")
}

func TestTableFormatter_WriteWalStats(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	stats := WalStats{
		TotalSegments:  3,
		BadSegments:    1,
		TotalSize:      48 * 1024 * 1024,
		TotalSizeHuman: "48 MiB",
		TotalRecords:   129443,
		PartialRecords: 2,
		FirstLSN:       "A/3F000028",
		LastLSN:        "A/41FFFF80",
		ByRmgr: []RmgrCount{
			{Rmgr: "Heap", Records: 100000, Bytes: 10 * 1024 * 1024},
			{Rmgr: "Transaction", Records: 29443, Bytes: 1024},
		},
	}

	err := f.WriteWalStats(&buf, stats)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "WAL Statistics")
	assert.Contains(t, output, "Total Segments:    3")
	assert.Contains(t, output, "Unreadable:      1")
	assert.Contains(t, output, "129,443")
	assert.Contains(t, output, "48 MiB")
	assert.Contains(t, output, "A/3F000028 - A/41FFFF80")
	assert.Contains(t, output, "100,000")
	assert.Contains(t, output, "10 MiB")
}

func TestTableFormatter_WriteCatalogSummary(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	require.NoError(t, f.WriteCatalogSummary(&buf, CatalogSummary{Path: "catalog.db", Databases: 2, Relations: 1500}))
	assert.Contains(t, buf.String(), "1,500")
	assert.Contains(t, buf.String(), "never")

	buf.Reset()
	require.NoError(t, f.WriteCatalogSummary(&buf, CatalogSummary{Path: "catalog.db", ImportedAt: time.Now().Add(-2 * time.Hour)}))
	assert.Contains(t, buf.String(), "2 hours ago")
}

func TestJSONFormatter_WriteSegmentList(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}

	now := time.Now().Truncate(time.Second)
	segments := []SegmentInfo{
		{Name: "000000010000000A0000003F", TimeLineID: 1, StartLSN: "A/3F000000", Size: 64, LastModified: now},
	}

	err := f.WriteSegmentList(&buf, segments)
	require.NoError(t, err)

	var result []SegmentInfo
	err = json.Unmarshal(buf.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result, 1)
	assert.Equal(t, "000000010000000A0000003F", result[0].Name)
	assert.Equal(t, "A/3F000000", result[0].StartLSN)
	assert.True(t, now.Equal(result[0].LastModified))
}

func TestJSONFormatter_WriteRecordReport(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}

	err := f.WriteRecordReport(&buf, RecordReport{File: "x", Stop: "end of buffer"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"records": []`)

	buf.Reset()
	err = f.WriteRecordReport(&buf, RecordReport{File: "x", Decoded: 2, Records: sampleRecords()})
	require.NoError(t, err)

	var result RecordReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Heap: HOT_UPDATE", result.Records[0].Description)
	assert.Equal(t, []string{"postgres:accounts", "postgres:orders*"}, result.Records[0].Relations)
	assert.True(t, result.Records[1].Partial)
}

func TestJSONFormatter_WriteRecords(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}

	require.NoError(t, f.WriteRecords(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec RecordInfo
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "A/3F000060", rec.LSN)
}

func TestJSONFormatter_WriteWalStats(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}

	stats := WalStats{
		TotalSegments: 3,
		TotalRecords:  1000,
		TotalSize:     1024,
		ByRmgr:        []RmgrCount{{Rmgr: "Heap", Records: 1000, Bytes: 1024}},
	}

	err := f.WriteWalStats(&buf, stats)
	require.NoError(t, err)

	var result WalStats
	err = json.Unmarshal(buf.Bytes(), &result)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalSegments)
	assert.Equal(t, int64(1000), result.TotalRecords)
	assert.Equal(t, stats.ByRmgr, result.ByRmgr)
}
