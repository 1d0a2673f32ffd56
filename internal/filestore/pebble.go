package filestore

import (
	"errors"
	"sort"
	"strings"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/okelo/stele/internal/storage/pebble"
)

// Keyspace: f/{path}, one key per logical file, path components joined
// with '/'. Lexicographic key order matches Path.String() order, so prefix
// scans enumerate files in the same order as the filesystem backend.
var pebbleKeyPrefix = []byte("f/")

// Pebble is a Store backed by a Pebble database. It keeps the same logical
// namespace as the filesystem backend inside a single LSM directory; the
// filesystem backend remains the interoperable layout.
type Pebble struct {
	db *pebblestore.DB
}

// NewPebble returns a Pebble-backed store over db.
func NewPebble(db *pebblestore.DB) *Pebble {
	return &Pebble{db: db}
}

func pebbleKey(p Path) []byte {
	k := make([]byte, 0, len(pebbleKeyPrefix)+len(p.String()))
	k = append(k, pebbleKeyPrefix...)
	k = append(k, p.String()...)
	return k
}

// Set writes content at p.
func (s *Pebble) Set(p Path, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.db.Set(pebbleKey(p), content)
}

// Append appends content at p, creating the file when absent.
func (s *Pebble) Append(p Path, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	key := pebbleKey(p)
	prev, err := s.db.Get(key)
	if err != nil && !errors.Is(err, pebblestore.ErrNotFound) {
		return err
	}
	return s.db.Set(key, append(prev, content...))
}

// Get returns the content at p, or ErrNotFound.
func (s *Pebble) Get(p Path) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := s.db.Get(pebbleKey(p))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns paths at or below prefix, sorted.
func (s *Pebble) List(prefix Path) ([]Path, error) {
	low := append([]byte(nil), pebbleKeyPrefix...)
	if len(prefix) > 0 {
		if err := prefix.Validate(); err != nil {
			return nil, err
		}
		low = append(low, prefix.String()...)
	}
	hi := append(append([]byte(nil), low...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	pfx := ""
	if len(prefix) > 0 {
		pfx = prefix.String()
	}
	var out []Path
	for ok := iter.First(); ok; ok = iter.Next() {
		rel := string(iter.Key()[len(pebbleKeyPrefix):])
		// Bound scan over-matches sibling names sharing the prefix string;
		// keep only exact path-component prefixes.
		if pfx != "" && rel != pfx && !strings.HasPrefix(rel, pfx+"/") {
			continue
		}
		out = append(out, splitKey(rel))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Delete removes the file at p. Absent files are a no-op.
func (s *Pebble) Delete(p Path) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.db.Delete(pebbleKey(p))
}
