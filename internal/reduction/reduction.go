package reduction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/filestore"
)

// DirName is the reduction directory under the data root: one pointer file
// per reduced composition hash.
const DirName = "reductions"

// Record is a full-state checkpoint: at the log position named by
// ReducedCompositionHashBase16, the application's config and serialized
// state equal the referenced components. Records are strictly derivable
// from the log; deleting them changes replay cost, never behavior.
type Record struct {
	ReducedCompositionHashBase16 string `json:"reducedCompositionHashBase16"`
	AppConfigHashBase16          string `json:"appConfigHashBase16"`
	AppStateHashBase16           string `json:"appStateHashBase16"`
}

// Validate checks the three hash fields.
func (r Record) Validate() error {
	for name, h := range map[string]string{
		"reducedCompositionHashBase16": r.ReducedCompositionHashBase16,
		"appConfigHashBase16":          r.AppConfigHashBase16,
		"appStateHashBase16":           r.AppStateHashBase16,
	} {
		if !component.ValidHashBase16(h) {
			return fmt.Errorf("reduction record: malformed %s %q", name, h)
		}
	}
	return nil
}

// Store persists reduction records next to a component store.
type Store struct {
	files      filestore.Store
	components *component.Store
}

// NewStore returns a reduction store over files, writing referenced
// components through components.
func NewStore(files filestore.Store, components *component.Store) *Store {
	return &Store{files: files, components: components}
}

// StoreReduction stores the config and state components first, then the
// pointer record. Ordering matters: a reduction file must never reference
// components that are not yet durable.
func (s *Store) StoreReduction(compositionHash string, config component.Component, state []byte) (Record, error) {
	if !component.ValidHashBase16(compositionHash) {
		return Record{}, fmt.Errorf("malformed composition hash %q", compositionHash)
	}
	configRef, err := s.components.StoreComponent(config)
	if err != nil {
		return Record{}, fmt.Errorf("store reduction config: %w", err)
	}
	stateHash, err := s.components.StoreBlob(state)
	if err != nil {
		return Record{}, fmt.Errorf("store reduction state: %w", err)
	}
	rec := Record{
		ReducedCompositionHashBase16: compositionHash,
		AppConfigHashBase16:          configRef.HashBase16,
		AppStateHashBase16:           stateHash,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}
	if err := s.files.Set(filestore.Path{DirName, compositionHash}, b); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// GetReduction returns the record reducing the given composition hash, or
// (zero, false) when none exists. An unparsable record is an error, not
// absence: the caller decides whether that is fatal.
func (s *Store) GetReduction(compositionHash string) (Record, bool, error) {
	b, err := s.files.Get(filestore.Path{DirName, compositionHash})
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, fmt.Errorf("unparsable reduction %s: %w", compositionHash, err)
	}
	if err := rec.Validate(); err != nil {
		return Record{}, false, err
	}
	if rec.ReducedCompositionHashBase16 != compositionHash {
		return Record{}, false, fmt.Errorf("reduction %s names position %s", compositionHash, rec.ReducedCompositionHashBase16)
	}
	return rec, true, nil
}

// List returns the composition hashes that currently have reductions.
func (s *Store) List() ([]string, error) {
	paths, err := s.files.List(filestore.Path{DirName})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if len(p) == 2 {
			out = append(out, p[1])
		}
	}
	return out, nil
}
