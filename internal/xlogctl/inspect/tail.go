package inspect

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ankur-anand/xlogview/internal/xlogctl/output"
	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/cenkalti/backoff/v5"
)

// TailOptions configures Tail.
type TailOptions struct {
	Options
	// FromStart emits the records already in the file on the first poll.
	FromStart       bool
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Tail follows a segment that is still being written. Every poll re-maps the
// file and emits the complete records positioned after the last one seen.
// Polling backs off while the file does not grow. Tail returns nil when ctx
// is cancelled and the error of emit when it fails.
func Tail(ctx context.Context, path string, opts TailOptions, emit func([]output.RecordInfo) error) error {
	bo := backoff.NewExponentialBackOff()
	if opts.InitialInterval > 0 {
		bo.InitialInterval = opts.InitialInterval
	}
	if opts.MaxInterval > 0 {
		bo.MaxInterval = opts.MaxInterval
	}
	logger := opts.logger()
	resolver := opts.resolver()

	var last xlog.LSN
	seen := false
	first := true

	for {
		advanced := false

		d, err := decodeFile(path, opts.Options)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("[xlogview.inspect] Waiting for segment", "path", path)
		case err != nil:
			return err
		default:
			flt := opts.Filter.InSegment(d.base, opts.segmentSize())
			var batch []output.RecordInfo
			for _, rec := range d.scan.Records {
				// a partial record is emitted once it is complete.
				if rec.Partial {
					break
				}
				if seen && rec.LSN <= last {
					continue
				}
				last, seen, advanced = rec.LSN, true, true
				if first && !opts.FromStart {
					continue
				}
				if flt.Match(rec) {
					batch = append(batch, recordInfo(rec, resolver, opts.RawIDs))
				}
			}

			if len(batch) > 0 {
				if err := emit(batch); err != nil {
					return err
				}
			}
		}
		first = false

		var wait time.Duration
		if advanced {
			bo.Reset()
			wait = bo.InitialInterval
		} else {
			wait = bo.NextBackOff()
		}

		select {
		case <-ctx.Done():
			logger.Debug("[xlogview.inspect] Tail cancelled", "path", path, "last_lsn", last.String())
			return nil
		case <-time.After(wait):
		}
	}
}
