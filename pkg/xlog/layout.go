package xlog

// Geometry of the WAL page format.
const (
	// PageSize is XLOG_BLCKSZ, the unit the decoder scans.
	PageSize = 8192
	// SegmentSize is the default wal_segment_size.
	SegmentSize = 16 * 1024 * 1024
	// MaxSegmentSize is the largest wal_segment_size the server accepts.
	MaxSegmentSize = 1024 * 1024 * 1024

	// PageMagic is the xlp_magic value of the supported format version.
	PageMagic uint16 = 0xD113

	ShortPageHeaderSize = 24
	LongPageHeaderSize  = 40
	RecordHeaderSize    = 24

	alignment = 8
)

// xlp_info bits.
const (
	// PageFirstIsContRecord is set when the page starts with the tail of a record
	// begun on a previous page.
	PageFirstIsContRecord uint16 = 0x0001
	// PageLongHeader marks the first page of a segment.
	PageLongHeader uint16 = 0x0002
	// PageBkpRemovable marks backup blocks starting on this page as optional.
	PageBkpRemovable uint16 = 0x0004
)

// Block reference tags found at the start of a record payload.
const (
	maxBlockID         = 32
	blockIDDataShort   = 255
	blockIDDataLong    = 254
	blockIDOrigin      = 253
	blockIDTopLevelXID = 252
)

// fork_flags bits of a block header.
const (
	bkpBlockHasImage uint8 = 0x10
	bkpBlockSameRel  uint8 = 0x80
)

// bimg_info bits of a block image header.
const (
	bkpImageHasHole      uint8 = 0x01
	bkpImageCompressPGLZ uint8 = 0x04
	bkpImageCompressLZ4  uint8 = 0x08
	bkpImageCompressZSTD uint8 = 0x10

	bkpImageCompressed = bkpImageCompressPGLZ | bkpImageCompressLZ4 | bkpImageCompressZSTD
)

// Fixed sizes of the tagged payload structures.
const (
	blockHeaderSize    = 4 // id, fork_flags, data_length(2)
	imageHeaderSize    = 5 // length(2), hole_offset(2), bimg_info
	compressHeaderSize = 2 // hole_length(2)
	relFileNodeSize    = 12
	blockNumberSize    = 4
	originSize         = 2
	topLevelXIDSize    = 4
)

// alignUp rounds n up to the next multiple of the format alignment.
func alignUp(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}
