package xlogtest

import (
	"encoding/binary"

	"github.com/ankur-anand/xlogview/pkg/xlog"
)

// Image compression bits for Image.Compression.
const (
	CompressPGLZ uint8 = 0x04
	CompressLZ4  uint8 = 0x08
	CompressZSTD uint8 = 0x10
)

// Image describes the block image header that follows a block header.
type Image struct {
	Length      uint16
	HoleOffset  uint16
	HasHole     bool
	Compression uint8
	HoleLength  uint16
}

// Block describes one block reference of a record payload.
type Block struct {
	ID       uint8
	Fork     uint8
	SameRel  bool
	Rel      xlog.RelFileNode
	Image    *Image
	DataLen  uint16
	BlockNum uint32
}

// Payload builds the tagged part of a record payload.
type Payload struct {
	buf []byte
}

func NewPayload() *Payload {
	return &Payload{}
}

func (p *Payload) Block(b Block) *Payload {
	flags := b.Fork & 0x0F
	if b.Image != nil {
		flags |= 0x10
	}
	if b.SameRel {
		flags |= 0x80
	}
	p.buf = append(p.buf, b.ID, flags)
	p.buf = binary.LittleEndian.AppendUint16(p.buf, b.DataLen)

	if img := b.Image; img != nil {
		info := img.Compression
		if img.HasHole {
			info |= 0x01
		}
		p.buf = binary.LittleEndian.AppendUint16(p.buf, img.Length)
		p.buf = binary.LittleEndian.AppendUint16(p.buf, img.HoleOffset)
		p.buf = append(p.buf, info)
		if img.HasHole && img.Compression != 0 {
			p.buf = binary.LittleEndian.AppendUint16(p.buf, img.HoleLength)
		}
	}

	if !b.SameRel {
		p.buf = binary.LittleEndian.AppendUint32(p.buf, b.Rel.SpcNode)
		p.buf = binary.LittleEndian.AppendUint32(p.buf, b.Rel.DBNode)
		p.buf = binary.LittleEndian.AppendUint32(p.buf, b.Rel.RelNode)
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, b.BlockNum)
	return p
}

func (p *Payload) Origin(id uint16) *Payload {
	p.buf = append(p.buf, 253)
	p.buf = binary.LittleEndian.AppendUint16(p.buf, id)
	return p
}

func (p *Payload) TopLevelXID(xid uint32) *Payload {
	p.buf = append(p.buf, 252)
	p.buf = binary.LittleEndian.AppendUint32(p.buf, xid)
	return p
}

// MainData appends the short main-data tag followed by data.
func (p *Payload) MainData(data []byte) *Payload {
	p.buf = append(p.buf, 255, byte(len(data)))
	p.buf = append(p.buf, data...)
	return p
}

// Raw appends bytes verbatim.
func (p *Payload) Raw(b ...byte) *Payload {
	p.buf = append(p.buf, b...)
	return p
}

func (p *Payload) Bytes() []byte {
	return p.buf
}

// Record is a WAL record to encode.
type Record struct {
	XID     uint32
	Prev    xlog.LSN
	Rmgr    xlog.RmgrID
	Info    uint8
	Payload []byte
	// TotalLen overrides the encoded xl_tot_len when non-zero.
	TotalLen uint32
}

// Len returns the number of bytes Encode produces.
func (r Record) Len() int {
	return xlog.RecordHeaderSize + len(r.Payload)
}

// Encode returns the fixed header followed by the payload.
func (r Record) Encode() []byte {
	total := r.TotalLen
	if total == 0 {
		total = uint32(r.Len())
	}
	b := make([]byte, xlog.RecordHeaderSize, r.Len())
	binary.LittleEndian.PutUint32(b[0:4], total)
	binary.LittleEndian.PutUint32(b[4:8], r.XID)
	binary.LittleEndian.PutUint64(b[8:16], uint64(r.Prev))
	b[16] = r.Info
	b[17] = byte(r.Rmgr)
	return append(b, r.Payload...)
}

// Builder lays records out on WAL pages, splitting records that cross a page
// boundary the way the server does: the next page header announces the
// remaining length and carries the continuation flag.
type Builder struct {
	TimeLineID uint32
	SystemID   uint64

	start xlog.LSN
	buf   []byte
}

// NewBuilder returns a builder whose first page sits at start, which must be
// page aligned.
func NewBuilder(start xlog.LSN) *Builder {
	return &Builder{TimeLineID: 1, SystemID: 7000000000000000001, start: start}
}

// Append writes r and returns the buffer offset of its first byte.
func (b *Builder) Append(r Record) int {
	b.pad(alignUp(len(b.buf)))
	if len(b.buf)%xlog.PageSize == 0 {
		b.pageHeader(0)
	}
	if xlog.PageSize-len(b.buf)%xlog.PageSize < xlog.RecordHeaderSize {
		b.pad(b.nextPage())
		b.pageHeader(0)
	}

	offset := len(b.buf)
	data := r.Encode()
	for len(data) > 0 {
		room := b.nextPage() - len(b.buf)
		n := min(room, len(data))
		b.buf = append(b.buf, data[:n]...)
		data = data[n:]
		if len(data) > 0 {
			b.pageHeader(uint32(len(data)))
		}
	}
	return offset
}

// Bytes returns the pages written so far, the last one zero filled.
func (b *Builder) Bytes() []byte {
	out := make([]byte, b.nextPage())
	copy(out, b.buf)
	return out
}

// LSNAt returns the position of a buffer offset.
func (b *Builder) LSNAt(offset int) xlog.LSN {
	return b.start + xlog.LSN(offset)
}

func (b *Builder) nextPage() int {
	return (len(b.buf)/xlog.PageSize + 1) * xlog.PageSize
}

func (b *Builder) pad(to int) {
	for len(b.buf) < to {
		b.buf = append(b.buf, 0)
	}
}

func (b *Builder) pageHeader(remLen uint32) {
	addr := b.LSNAt(len(b.buf))
	long := uint64(addr)%xlog.SegmentSize == 0

	var info uint16
	if remLen > 0 {
		info |= xlog.PageFirstIsContRecord
	}
	if long {
		info |= xlog.PageLongHeader
	}

	hdr := make([]byte, xlog.ShortPageHeaderSize)
	binary.LittleEndian.PutUint16(hdr[0:2], xlog.PageMagic)
	binary.LittleEndian.PutUint16(hdr[2:4], info)
	binary.LittleEndian.PutUint32(hdr[4:8], b.TimeLineID)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(addr))
	binary.LittleEndian.PutUint32(hdr[16:20], remLen)
	if long {
		hdr = binary.LittleEndian.AppendUint64(hdr, b.SystemID)
		hdr = binary.LittleEndian.AppendUint32(hdr, xlog.SegmentSize)
		hdr = binary.LittleEndian.AppendUint32(hdr, xlog.PageSize)
	}
	// both header forms are already MAXALIGNed.
	b.buf = append(b.buf, hdr...)
}

// CorruptMagic overwrites the magic of the page at index page.
func CorruptMagic(buf []byte, page int) {
	off := page * xlog.PageSize
	binary.LittleEndian.PutUint16(buf[off:off+2], 0xBEEF)
}

func alignUp(n int) int {
	return (n + 7) &^ 7
}
