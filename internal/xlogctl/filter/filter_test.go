package filter

import (
	"testing"

	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(lsn xlog.LSN, rmgr xlog.RmgrID, info uint8) xlog.Record {
	return xlog.Record{LSN: lsn, Rmgr: rmgr, Info: info, Description: xlog.Describe(rmgr, info)}
}

func TestFilter_Match(t *testing.T) {
	base := xlog.SegmentBaseLSN("000000010000000A0000003F")
	heap := rec(base+100, xlog.RmgrHeap, 0x40)
	btree := rec(base+200, xlog.RmgrBtree, 0x00)
	commit := rec(base+300, xlog.RmgrXact, 0x00)

	t.Run("zero value keeps everything", func(t *testing.T) {
		var f Filter
		assert.True(t, f.Match(heap))
		assert.True(t, f.Match(btree))
	})

	t.Run("text is a case sensitive substring", func(t *testing.T) {
		f := Filter{Text: "HOT_"}
		assert.True(t, f.Match(heap))
		assert.False(t, f.Match(commit))
		assert.False(t, Filter{Text: "hot_"}.Match(heap))
	})

	t.Run("interesting only", func(t *testing.T) {
		f := Filter{InterestingOnly: true}
		assert.True(t, f.Match(heap))
		assert.True(t, f.Match(commit))
		assert.False(t, f.Match(btree))
	})

	t.Run("manager set overrides interesting only", func(t *testing.T) {
		f := Filter{InterestingOnly: true, Rmgrs: []xlog.RmgrID{xlog.RmgrBtree}}
		assert.True(t, f.Match(btree))
		assert.False(t, f.Match(heap))
	})

	t.Run("manager set is exact", func(t *testing.T) {
		f := Filter{Rmgrs: []xlog.RmgrID{xlog.RmgrHeap}}
		assert.True(t, f.Match(heap))
		assert.False(t, f.Match(rec(base, xlog.RmgrHeap2, 0x00)))
	})

	t.Run("records past upto are hidden", func(t *testing.T) {
		f := Filter{UptoLSN: base + 200}
		assert.True(t, f.Match(heap))
		assert.True(t, f.Match(btree))
		assert.False(t, f.Match(commit))
	})

	t.Run("records outside the segment are hidden", func(t *testing.T) {
		f := Filter{}.InSegment(base, 0)
		assert.True(t, f.Match(heap))
		assert.False(t, f.Match(rec(base-8, xlog.RmgrHeap, 0x00)))
		assert.False(t, f.Match(rec(base+xlog.SegmentSize, xlog.RmgrHeap, 0x00)))
	})

	t.Run("unknown segment base disables the range check", func(t *testing.T) {
		f := Filter{}.InSegment(0, 0)
		assert.True(t, f.Match(rec(42, xlog.RmgrHeap, 0x00)))
	})
}

func TestFilter_Apply(t *testing.T) {
	records := []xlog.Record{
		rec(10, xlog.RmgrHeap, 0x00),
		rec(20, xlog.RmgrBtree, 0x00),
		rec(30, xlog.RmgrXact, 0x10),
	}

	got := Filter{InterestingOnly: true}.Apply(records)
	require.Len(t, got, 2)
	assert.Equal(t, xlog.LSN(10), got[0].LSN)
	assert.Equal(t, "Transaction: ABORT", got[1].Description)
	assert.Len(t, records, 3)
}

func TestFromConfig(t *testing.T) {
	f, err := FromConfig(Config{
		InterestingOnly: true,
		Rmgrs:           []string{"heap", "Btree"},
		Text:            "INSERT",
		UptoLSN:         "A/3F000100",
	})
	require.NoError(t, err)
	assert.Equal(t, []xlog.RmgrID{xlog.RmgrHeap, xlog.RmgrBtree}, f.Rmgrs)
	assert.Equal(t, xlog.LSN(0xA3F000100), f.UptoLSN)
	assert.True(t, f.InterestingOnly)

	_, err = FromConfig(Config{Rmgrs: []string{"nope"}})
	assert.ErrorContains(t, err, "unknown resource manager")

	_, err = FromConfig(Config{UptoLSN: "garbage"})
	assert.ErrorContains(t, err, "invalid upto_lsn")
}
