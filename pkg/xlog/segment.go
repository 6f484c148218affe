package xlog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
)

// SegmentNameLen is the length of a segment file name: timeline, log id and
// segment index, each as 8 hex digits.
const SegmentNameLen = 24

var ErrInvalidSegmentName = errors.New("invalid WAL segment name")

// SegmentName is the decoded form of a segment file name such as
// 000000010000000A0000003F.
type SegmentName struct {
	TimeLineID uint32
	LogID      uint32
	SegNo      uint32
}

// ParseSegmentName decodes a segment file name. Directory components of name
// are ignored.
func ParseSegmentName(name string) (SegmentName, error) {
	base := filepath.Base(name)
	if len(base) != SegmentNameLen {
		return SegmentName{}, fmt.Errorf("%w: %q", ErrInvalidSegmentName, base)
	}

	var fields [3]uint32
	for i := range fields {
		v, err := strconv.ParseUint(base[i*8:(i+1)*8], 16, 32)
		if err != nil {
			return SegmentName{}, fmt.Errorf("%w: %q: %v", ErrInvalidSegmentName, base, err)
		}
		fields[i] = uint32(v)
	}
	return SegmentName{TimeLineID: fields[0], LogID: fields[1], SegNo: fields[2]}, nil
}

// SegmentNameFor returns the name of the segment holding lsn. segSize is
// clamped to MaxSegmentSize and zero means SegmentSize.
func SegmentNameFor(tli uint32, lsn LSN, segSize uint64) SegmentName {
	segSize = clampSegmentSize(segSize)
	perLog := uint64(1<<32) / segSize
	segNo := uint64(lsn) / segSize
	return SegmentName{
		TimeLineID: tli,
		LogID:      uint32(segNo / perLog),
		SegNo:      uint32(segNo % perLog),
	}
}

func (s SegmentName) String() string {
	return fmt.Sprintf("%08X%08X%08X", s.TimeLineID, s.LogID, s.SegNo)
}

// StartLSN returns the position of the segment's first byte.
func (s SegmentName) StartLSN(segSize uint64) LSN {
	segSize = clampSegmentSize(segSize)
	return LSN(uint64(s.LogID)<<32 | uint64(s.SegNo)*segSize)
}

// SegmentBaseLSN returns the start LSN of a default-sized segment from its
// file name. Malformed names yield 0, which callers must read as "unknown".
func SegmentBaseLSN(name string) LSN {
	seg, err := ParseSegmentName(name)
	if err != nil {
		return 0
	}
	return seg.StartLSN(SegmentSize)
}

// InSegment reports whether lsn falls within the segment starting at base.
func InSegment(lsn, base LSN, segSize uint64) bool {
	segSize = clampSegmentSize(segSize)
	return lsn >= base && uint64(lsn) < uint64(base)+segSize
}

func clampSegmentSize(segSize uint64) uint64 {
	switch {
	case segSize == 0:
		return SegmentSize
	case segSize > MaxSegmentSize:
		return MaxSegmentSize
	}
	return segSize
}
