package xlog

// Record describes one decoded WAL record.
type Record struct {
	// Offset of the record's first byte in the decoded buffer.
	Offset int `json:"offset"`
	// LSN is derived from the enclosing page address, it is not stored in the
	// record itself.
	LSN         LSN           `json:"lsn"`
	TotalLen    uint32        `json:"total_len"`
	XID         uint32        `json:"xid"`
	Rmgr        RmgrID        `json:"rmgr"`
	Info        uint8         `json:"info"`
	Description string        `json:"description"`
	Relations   []RelFileNode `json:"relations,omitempty"`
	// Partial is set when the declared length runs past the end of the buffer
	// and the payload was left unparsed.
	Partial bool `json:"partial,omitempty"`
}

// End returns the offset one past the record's declared extent.
func (r Record) End() int {
	return r.Offset + int(r.TotalLen)
}

// StopReason tells why a scan ended.
type StopReason int

const (
	// StopEndOfBuffer means every page of the buffer was walked.
	StopEndOfBuffer StopReason = iota
	// StopBadMagic means a page header did not carry PageMagic. The rest of the
	// buffer is treated as not being part of the log.
	StopBadMagic
	// StopShortBuffer means the buffer is smaller than a page header.
	StopShortBuffer
)

func (s StopReason) String() string {
	switch s {
	case StopEndOfBuffer:
		return "end of buffer"
	case StopBadMagic:
		return "bad page magic"
	case StopShortBuffer:
		return "short buffer"
	default:
		return "unknown"
	}
}

// ScanResult is the outcome of Scan.
type ScanResult struct {
	Records []Record
	// Pages is the number of pages whose header was accepted.
	Pages int
	Stop  StopReason
	// StopOffset is the buffer offset of the page that ended the scan.
	StopOffset int
}

type decodeOptions struct {
	reassemble bool
	baseOffset int
}

// Option configures Decode and Scan.
type Option func(*decodeOptions)

// WithReassembly builds the payload of a record that crosses a page boundary
// from the bytes following each continuation page header, instead of the raw
// byte range. Only relation extraction is affected.
func WithReassembly() Option {
	return func(o *decodeOptions) {
		o.reassemble = true
	}
}

// WithBaseOffset adds base to every emitted Offset. Use it when buf is a
// window into a larger file.
func WithBaseOffset(base int) Option {
	return func(o *decodeOptions) {
		o.baseOffset = base
	}
}

// Decode appends the records found in buf to out and reports whether any
// record was produced. Malformed or short data truncates the output, it is
// never an error.
func Decode(buf []byte, out []Record, opts ...Option) ([]Record, bool) {
	res := scan(buf, out, opts)
	return res.Records, len(res.Records) > len(out)
}

// Scan decodes buf like Decode and also reports how far the walk went.
func Scan(buf []byte, opts ...Option) ScanResult {
	return scan(buf, nil, opts)
}

// Rebase adds base to the Offset of every record.
func Rebase(records []Record, base int) {
	for i := range records {
		records[i].Offset += base
	}
}

func scan(buf []byte, out []Record, opts []Option) ScanResult {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	res := ScanResult{Records: out}
	if len(buf) < ShortPageHeaderSize {
		res.Stop = StopShortBuffer
		return res
	}

	for pageStart := 0; pageStart+ShortPageHeaderSize <= len(buf); pageStart += PageSize {
		hdr, _ := DecodePageHeader(buf, pageStart)
		if !hdr.Valid() {
			res.Stop = StopBadMagic
			res.StopOffset = pageStart
			return res
		}
		res.Pages++
		res.Records = walkPage(buf, pageStart, hdr, res.Records, o)
	}

	res.Stop = StopEndOfBuffer
	res.StopOffset = len(buf)
	return res
}

// walkPage appends the records starting on the page at pageStart.
func walkPage(buf []byte, pageStart int, hdr PageHeader, out []Record, o decodeOptions) []Record {
	pageEnd := pageStart + PageSize
	// the continued tail of the previous record is skipped, not parsed.
	pos := alignUp(pageStart + hdr.Size() + int(hdr.RemLen))

	for pos+RecordHeaderSize <= len(buf) && pos+RecordHeaderSize <= pageEnd {
		rh, _ := DecodeRecordHeader(buf, pos)
		if rh.TotalLen == 0 {
			break
		}

		rec := Record{
			Offset:      pos + o.baseOffset,
			LSN:         hdr.PageAddr + LSN(pos-pageStart),
			TotalLen:    rh.TotalLen,
			XID:         rh.XID,
			Rmgr:        rh.Rmgr,
			Info:        rh.Info,
			Description: Describe(rh.Rmgr, rh.Info),
		}

		end := uint64(pos) + uint64(rh.TotalLen)
		switch {
		case end > uint64(len(buf)):
			rec.Partial = true
		case rh.TotalLen > RecordHeaderSize:
			rec.Relations = UnpackRelations(recordPayload(buf, pos, int(rh.TotalLen), pageEnd, o), nil)
		}

		out = append(out, rec)

		// a bogus length can only push pos past the page, which ends the loop.
		if end > uint64(len(buf)) {
			break
		}
		pos = alignUp(int(end))
	}
	return out
}

// recordPayload returns the payload bytes of the record at pos, whose whole
// declared extent is known to fit in buf.
func recordPayload(buf []byte, pos, totalLen, pageEnd int, o decodeOptions) []byte {
	if !o.reassemble || pos+totalLen <= pageEnd {
		return buf[pos+RecordHeaderSize : pos+totalLen]
	}
	return spliceRecord(buf, pos, totalLen, pageEnd)[RecordHeaderSize:]
}

// spliceRecord copies a record that continues on later pages, skipping the
// page header of every continuation page. It stops early when a continuation
// page is missing or invalid; the caller then sees a shorter payload.
func spliceRecord(buf []byte, pos, totalLen, pageEnd int) []byte {
	rec := make([]byte, 0, totalLen)
	rec = append(rec, buf[pos:pageEnd]...)

	for page := pageEnd; len(rec) < totalLen; page += PageSize {
		hdr, ok := DecodePageHeader(buf, page)
		if !ok || !hdr.Valid() || !hdr.IsContinuation() {
			break
		}
		from := page + hdr.Size()
		to := min(from+totalLen-len(rec), page+PageSize, len(buf))
		if from >= to {
			break
		}
		rec = append(rec, buf[from:to]...)
	}
	return rec
}
