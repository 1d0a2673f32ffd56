package composition

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/okelo/stele/internal/component"
)

// GenesisParentHashBase16 is the parent sentinel of the first record: a
// value SHA-256 cannot produce for any record line.
const GenesisParentHashBase16 = "0000000000000000000000000000000000000000000000000000000000000000"

// Record is one composition-log entry: the parent's record hash and one
// state-affecting event. Its identity is the hash of its full serialized
// line, so every record cryptographically commits to its entire history.
type Record struct {
	ParentHashBase16 string
	Event            Event
}

// recordJSON is the wire form of a record line.
type recordJSON struct {
	ParentHashBase16 string        `json:"parentHashBase16"`
	Event            eventEnvelope `json:"event"`
}

// MarshalLine serializes the record to its canonical single-line JSON form
// (no trailing newline). The bytes returned are exactly the bytes whose
// SHA-256 is the record's identity.
func (r Record) MarshalLine() ([]byte, error) {
	if r.ParentHashBase16 != GenesisParentHashBase16 && !component.ValidHashBase16(r.ParentHashBase16) {
		return nil, fmt.Errorf("malformed parent hash %q", r.ParentHashBase16)
	}
	env, err := envelopeOf(r.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{ParentHashBase16: r.ParentHashBase16, Event: env})
}

// ParseRecordLine parses one serialized record line.
func ParseRecordLine(line []byte) (Record, error) {
	var rj recordJSON
	if err := json.Unmarshal(line, &rj); err != nil {
		return Record{}, fmt.Errorf("unparsable composition record: %w", err)
	}
	if rj.ParentHashBase16 != GenesisParentHashBase16 && !component.ValidHashBase16(rj.ParentHashBase16) {
		return Record{}, fmt.Errorf("malformed parent hash %q", rj.ParentHashBase16)
	}
	ev, err := rj.Event.event()
	if err != nil {
		return Record{}, err
	}
	return Record{ParentHashBase16: rj.ParentHashBase16, Event: ev}, nil
}

// HashOfLine returns the record identity for a serialized line.
func HashOfLine(line []byte) string {
	sum := sha256.Sum256(line)
	return hex.EncodeToString(sum[:])
}
