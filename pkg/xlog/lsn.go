package xlog

import "github.com/jackc/pglogrepl"

// LSN is a byte position in the write-ahead log. Its text form is the
// server's "%X/%X" notation.
type LSN = pglogrepl.LSN

// ParseLSN parses the "%X/%X" notation, for example "16/B374D848".
func ParseLSN(s string) (LSN, error) {
	return pglogrepl.ParseLSN(s)
}
