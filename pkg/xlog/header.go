package xlog

import "encoding/binary"

// PageHeader is XLogPageHeaderData, plus the XLogLongPageHeaderData fields
// when the page carries the long form.
type PageHeader struct {
	// at 0
	Magic uint16
	// at 2
	Info uint16
	// at 4
	TimeLineID uint32
	// at 8
	PageAddr LSN
	// at 16 - bytes of a record continued from the previous page.
	RemLen uint32

	// long form only, at 24, 32 and 36.
	SystemID    uint64
	SegmentSize uint32
	BlockSize   uint32
}

// IsLong reports whether the page carries the long header form.
func (h PageHeader) IsLong() bool {
	return h.Info&PageLongHeader != 0
}

// IsContinuation reports whether the page starts with the tail of a record.
func (h PageHeader) IsContinuation() bool {
	return h.Info&PageFirstIsContRecord != 0
}

// Size returns the number of bytes the header occupies on the page.
func (h PageHeader) Size() int {
	if h.IsLong() {
		return LongPageHeaderSize
	}
	return ShortPageHeaderSize
}

// Valid reports whether the magic matches the supported format.
func (h PageHeader) Valid() bool {
	return h.Magic == PageMagic
}

// DecodePageHeader reads a page header at off. It returns false when the
// short form does not fit in buf. The long-form fields are filled only when
// they fit too.
func DecodePageHeader(buf []byte, off int) (PageHeader, bool) {
	if off < 0 || off+ShortPageHeaderSize > len(buf) {
		return PageHeader{}, false
	}
	b := buf[off:]
	h := PageHeader{
		Magic:      binary.LittleEndian.Uint16(b[0:2]),
		Info:       binary.LittleEndian.Uint16(b[2:4]),
		TimeLineID: binary.LittleEndian.Uint32(b[4:8]),
		PageAddr:   LSN(binary.LittleEndian.Uint64(b[8:16])),
		RemLen:     binary.LittleEndian.Uint32(b[16:20]),
	}
	if h.IsLong() && off+LongPageHeaderSize <= len(buf) {
		h.SystemID = binary.LittleEndian.Uint64(b[24:32])
		h.SegmentSize = binary.LittleEndian.Uint32(b[32:36])
		h.BlockSize = binary.LittleEndian.Uint32(b[36:40])
	}
	return h, true
}

// RecordHeader is the fixed XLogRecord header.
type RecordHeader struct {
	// at 0
	TotalLen uint32
	// at 4
	XID uint32
	// at 8 - not used by the decoder.
	Prev LSN
	// at 16
	Info uint8
	// at 17
	Rmgr RmgrID
	// at 18-19 padding, at 20 - never verified.
	CRC uint32
}

// DecodeRecordHeader reads a record header at off. It returns false when the
// header does not fit in buf.
func DecodeRecordHeader(buf []byte, off int) (RecordHeader, bool) {
	if off < 0 || off+RecordHeaderSize > len(buf) {
		return RecordHeader{}, false
	}
	b := buf[off:]
	return RecordHeader{
		TotalLen: binary.LittleEndian.Uint32(b[0:4]),
		XID:      binary.LittleEndian.Uint32(b[4:8]),
		Prev:     LSN(binary.LittleEndian.Uint64(b[8:16])),
		Info:     b[16],
		Rmgr:     RmgrID(b[17]),
		CRC:      binary.LittleEndian.Uint32(b[20:24]),
	}, true
}
