package inspect

import (
	"encoding/json"

	"github.com/okelo/stele/internal/composition"
	"github.com/okelo/stele/internal/filestore"
)

// Entry is one composition record prepared for display, newest-first.
type Entry struct {
	Segment          string          `json:"segment"`
	HashBase16       string          `json:"hashBase16"`
	ParentHashBase16 string          `json:"parentHashBase16"`
	// Kind is the event variant name, or "unparsable" when the record
	// does not decode.
	Kind   string          `json:"kind"`
	Record json.RawMessage `json:"record"`
}

// Scan enumerates records newest-first, applying the filter. A limit of
// zero means unbounded. Unparsable records are reported rather than
// skipped, with Kind "unparsable" and an empty parent hash.
func Scan(files filestore.Store, f Filter, limit int) ([]Entry, error) {
	var out []Entry
	it := composition.EnumerateReverse(files)
	for raw, ok := it.Next(); ok; raw, ok = it.Next() {
		e := Entry{
			Segment:    raw.Segment,
			HashBase16: composition.HashOfLine(raw.Line),
			Kind:       "unparsable",
			Record:     json.RawMessage(raw.Line),
		}
		if rec, err := composition.ParseRecordLine(raw.Line); err == nil {
			e.ParentHashBase16 = rec.ParentHashBase16
			e.Kind = composition.EventName(rec.Event)
		}
		if !f.Eval(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, it.Err()
}
