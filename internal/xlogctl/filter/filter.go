package filter

import (
	"fmt"
	"strings"

	"github.com/ankur-anand/xlogview/pkg/xlog"
)

// Interesting is the manager set shown when InterestingOnly is on.
var Interesting = []xlog.RmgrID{xlog.RmgrHeap, xlog.RmgrHeap2, xlog.RmgrXact}

// Filter selects the records worth showing. The zero value keeps everything.
type Filter struct {
	// Text is a case-sensitive substring of the description.
	Text string
	// Rmgrs keeps only these managers when non-empty.
	Rmgrs []xlog.RmgrID
	// InterestingOnly keeps heap, heap2 and transaction records. It is ignored
	// when Rmgrs is set.
	InterestingOnly bool
	// UptoLSN hides records past the current insert position when non-zero.
	UptoLSN xlog.LSN
	// SegmentBase hides records outside [SegmentBase, SegmentBase+SegmentSize)
	// when non-zero. Those come from a recycled file.
	SegmentBase xlog.LSN
	SegmentSize uint64
}

// Config is the [filter] section of the config file.
type Config struct {
	InterestingOnly bool     `toml:"interesting_only"`
	Rmgrs           []string `toml:"rmgrs"`
	Text            string   `toml:"text"`
	UptoLSN         string   `toml:"upto_lsn"`
}

// FromConfig resolves manager names and the LSN of cfg.
func FromConfig(cfg Config) (Filter, error) {
	f := Filter{
		Text:            cfg.Text,
		InterestingOnly: cfg.InterestingOnly,
	}

	rmgrs, err := ParseRmgrs(cfg.Rmgrs)
	if err != nil {
		return Filter{}, err
	}
	f.Rmgrs = rmgrs

	if cfg.UptoLSN != "" {
		lsn, err := xlog.ParseLSN(cfg.UptoLSN)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid upto_lsn %q: %w", cfg.UptoLSN, err)
		}
		f.UptoLSN = lsn
	}
	return f, nil
}

// ParseRmgrs maps manager names to ids.
func ParseRmgrs(names []string) ([]xlog.RmgrID, error) {
	var ids []xlog.RmgrID
	for _, name := range names {
		id, ok := xlog.RmgrByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown resource manager %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InSegment pins the segment range check to the segment starting at base.
func (f Filter) InSegment(base xlog.LSN, segSize uint64) Filter {
	f.SegmentBase = base
	f.SegmentSize = segSize
	return f
}

func (f Filter) Match(rec xlog.Record) bool {
	if f.Text != "" && !strings.Contains(rec.Description, f.Text) {
		return false
	}

	switch {
	case len(f.Rmgrs) > 0:
		if !containsRmgr(f.Rmgrs, rec.Rmgr) {
			return false
		}
	case f.InterestingOnly:
		if !containsRmgr(Interesting, rec.Rmgr) {
			return false
		}
	}

	if f.UptoLSN != 0 && rec.LSN > f.UptoLSN {
		return false
	}
	if f.SegmentBase != 0 && !xlog.InSegment(rec.LSN, f.SegmentBase, f.SegmentSize) {
		return false
	}
	return true
}

// Apply returns the matching records, in order. records is not modified.
func (f Filter) Apply(records []xlog.Record) []xlog.Record {
	out := make([]xlog.Record, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func containsRmgr(set []xlog.RmgrID, id xlog.RmgrID) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}
