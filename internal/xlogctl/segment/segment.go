package segment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ankur-anand/xlogview/pkg/xlog"
	"github.com/edsrzf/mmap-go"
)

const partialSuffix = ".partial"

var (
	ErrSegmentNotFound = errors.New("segment not found")
	ErrClosed          = errors.New("segment file closed")
)

// File is a WAL segment file mapped read-only into memory.
type File struct {
	path   string
	fd     *os.File
	data   mmap.MMap
	size   int64
	closed atomic.Bool
}

// Open maps the file at path. Empty files are allowed and yield no bytes.
func Open(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("stat error: %w", err)
	}
	if st.IsDir() {
		fd.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f := &File{path: path, fd: fd, size: st.Size()}
	if f.size == 0 {
		return f, nil
	}

	data, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("mmap error: %w", err)
	}
	f.data = data
	return f, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (f *File) Bytes() []byte {
	return f.data
}

func (f *File) Size() int64 {
	return f.size
}

func (f *File) Path() string {
	return f.path
}

// Name returns the file name without directory or ".partial" suffix.
func (f *File) Name() string {
	return strings.TrimSuffix(filepath.Base(f.path), partialSuffix)
}

// BaseLSN returns the start of the segment named by the file for segments of
// segSize bytes, or 0 when the name is not a segment name. A zero segSize
// means xlog.SegmentSize.
func (f *File) BaseLSN(segSize uint64) xlog.LSN {
	seg, err := xlog.ParseSegmentName(f.Name())
	if err != nil {
		return 0
	}
	return seg.StartLSN(segSize)
}

func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if f.data != nil {
		if err := f.data.Unmap(); err != nil {
			f.fd.Close()
			return fmt.Errorf("munmap error: %w", err)
		}
	}
	return f.fd.Close()
}

// Entry is a segment file found in a WAL directory.
type Entry struct {
	Name    string
	Path    string
	Segment xlog.SegmentName
	Size    int64
	ModTime time.Time
	// Partial marks a ".partial" file left by an interrupted archive or a
	// timeline switch.
	Partial bool
}

// List returns the segment files in dir ordered by timeline and position.
// Files whose name is not a segment name are skipped.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		partial := strings.HasSuffix(name, partialSuffix)
		seg, err := xlog.ParseSegmentName(strings.TrimSuffix(name, partialSuffix))
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		entries = append(entries, Entry{
			Name:    name,
			Path:    filepath.Join(dir, name),
			Segment: seg,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Partial: partial,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Segment, entries[j].Segment
		if a.TimeLineID != b.TimeLineID {
			return a.TimeLineID < b.TimeLineID
		}
		if a.LogID != b.LogID {
			return a.LogID < b.LogID
		}
		if a.SegNo != b.SegNo {
			return a.SegNo < b.SegNo
		}
		return !entries[i].Partial && entries[j].Partial
	})
	return entries, nil
}

// Latest returns the last segment of the newest timeline in dir.
func Latest(dir string) (Entry, error) {
	entries, err := List(dir)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%w in %s", ErrSegmentNotFound, dir)
	}
	return entries[len(entries)-1], nil
}

// Find returns the entry called name in dir. name may omit the ".partial"
// suffix.
func Find(dir, name string) (Entry, error) {
	entries, err := List(dir)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name || e.Segment.String() == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrSegmentNotFound, name)
}
