package composition

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okelo/stele/internal/filestore"
)

// DirName is the log's directory under the data root. Each file is one
// segment; lexicographic segment-name order equals chronological order.
const DirName = "composition-log"

// ErrTornSegment indicates a segment whose last record was not fully
// written (missing the line terminator). Appending over it would corrupt
// the chain.
var ErrTornSegment = errors.New("composition segment ends mid-record")

// Log is the append-only, hash-chained composition log. Exactly one writer
// may append at a time; the mutex makes that structural.
type Log struct {
	files filestore.Store

	mu          sync.Mutex
	headHash    string
	headSegment string

	// now derives segment names; overridable in tests.
	now func() time.Time
}

// OpenLog scans existing segments to establish the chain head and returns
// a Log ready to append.
func OpenLog(files filestore.Store) (*Log, error) {
	l := &Log{files: files, headHash: GenesisParentHashBase16, now: time.Now}

	segments, err := listSegments(files)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return l, nil
	}
	newest := segments[len(segments)-1]
	content, err := files.Get(filestore.Path{DirName, newest})
	if err != nil {
		return nil, fmt.Errorf("read segment %s: %w", newest, err)
	}
	if len(content) > 0 && content[len(content)-1] != '\n' {
		return nil, fmt.Errorf("%w: segment %s", ErrTornSegment, newest)
	}
	lines := splitLines(content)
	l.headSegment = newest
	if len(lines) > 0 {
		l.headHash = HashOfLine(lines[len(lines)-1])
	}
	return l, nil
}

// Head returns the hash of the newest record, or the genesis sentinel for
// an empty log.
func (l *Log) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headHash
}

// HeadSegment returns the name of the segment holding the newest record,
// or "" for an empty log.
func (l *Log) HeadSegment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headSegment
}

// Append serializes the event into a record chained onto the current head,
// writes it durably, and returns the record hash.
func (l *Log) Append(ev Event) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{ParentHashBase16: l.headHash, Event: ev}
	line, err := rec.MarshalLine()
	if err != nil {
		return "", err
	}
	segment := l.segmentForAppend()
	if err := l.files.Append(filestore.Path{DirName, segment}, append(line, '\n')); err != nil {
		return "", err
	}
	l.headSegment = segment
	l.headHash = HashOfLine(line)
	return l.headHash, nil
}

// segmentForAppend picks the segment for the next record. The wall-clock
// name is adopted only when it sorts after every existing segment;
// otherwise appending continues in the newest one, so segment order always
// matches chain order even when clock-derived names arrive out of order.
func (l *Log) segmentForAppend() string {
	candidate := l.now().UTC().Format("2006-01-02")
	if l.headSegment == "" || candidate > l.headSegment {
		return candidate
	}
	return l.headSegment
}

// RawRecord is one serialized record as read from a segment, newest-first.
type RawRecord struct {
	Segment string
	Line    []byte
}

// ReverseIterator walks records newest-first, loading one segment at a
// time.
type ReverseIterator struct {
	files    filestore.Store
	segments []string // unread segments, oldest..newest
	pending  [][]byte // lines of the segment being drained, oldest..newest
	current  string
	err      error
}

// EnumerateReverse returns an iterator over all records, newest first. It
// reads directly from the file store, so it works against projections as
// well as the live store.
func EnumerateReverse(files filestore.Store) *ReverseIterator {
	it := &ReverseIterator{files: files}
	it.segments, it.err = listSegments(files)
	return it
}

// Next returns the next raw record. The bool is false when the sequence is
// exhausted or an error occurred; check Err afterwards.
func (it *ReverseIterator) Next() (RawRecord, bool) {
	if it.err != nil {
		return RawRecord{}, false
	}
	for len(it.pending) == 0 {
		if len(it.segments) == 0 {
			return RawRecord{}, false
		}
		it.current = it.segments[len(it.segments)-1]
		it.segments = it.segments[:len(it.segments)-1]
		content, err := it.files.Get(filestore.Path{DirName, it.current})
		if err != nil {
			it.err = fmt.Errorf("read segment %s: %w", it.current, err)
			return RawRecord{}, false
		}
		it.pending = splitLines(content)
	}
	line := it.pending[len(it.pending)-1]
	it.pending = it.pending[:len(it.pending)-1]
	return RawRecord{Segment: it.current, Line: line}, true
}

// Err returns the first error the iterator encountered, if any.
func (it *ReverseIterator) Err() error { return it.err }

func listSegments(files filestore.Store) ([]string, error) {
	paths, err := files.List(filestore.Path{DirName})
	if err != nil {
		return nil, err
	}
	segments := make([]string, 0, len(paths))
	for _, p := range paths {
		// Only direct children are segments.
		if len(p) == 2 {
			segments = append(segments, p[1])
		}
	}
	return segments, nil
}

func splitLines(content []byte) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(content, []byte{'\n'}) {
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out
}
