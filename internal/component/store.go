package component

import (
	"errors"
	"fmt"

	"github.com/okelo/stele/internal/filestore"
)

// DirName is the store's directory under the data root: one file per hash.
const DirName = "components"

// ErrNotFound is returned by loads of unknown hashes. Callers probing for
// optional components treat it as absence; the restore path treats it as
// store corruption.
var ErrNotFound = errors.New("component not found")

// Store is the content-addressed component store over an abstract file
// store. Writes are idempotent: the bytes under a hash are always the
// same, so storing existing content rewrites the identical file.
type Store struct {
	files filestore.Store
}

// NewStore returns a component store persisting under DirName in files.
func NewStore(files filestore.Store) *Store {
	return &Store{files: files}
}

func (s *Store) path(hashBase16 string) filestore.Path {
	return filestore.Path{DirName, hashBase16}
}

// write is unconditional. Deduplicating against an existing file would
// let a concurrent truncation delete the file after the check, leaving a
// record that references a component nobody stored.
func (s *Store) write(hashBase16 string, body []byte) error {
	return s.files.Set(s.path(hashBase16), body)
}

// StoreBlob stores a blob and returns its hash.
func (s *Store) StoreBlob(content []byte) (string, error) {
	hash := HashBlob(content)
	if err := s.write(hash, content); err != nil {
		return "", err
	}
	return hash, nil
}

// StoreTree stores a tree from already-stored child references and returns
// its hash.
func (s *Store) StoreTree(entries []TreeEntry) (string, error) {
	body, err := TreeBody(entries)
	if err != nil {
		return "", err
	}
	hash := HashTreeBody(body)
	if err := s.write(hash, body); err != nil {
		return "", err
	}
	return hash, nil
}

// StoreComponent stores an in-memory component recursively (children first)
// and returns its reference.
func (s *Store) StoreComponent(c Component) (Ref, error) {
	switch v := c.(type) {
	case Blob:
		hash, err := s.StoreBlob(v)
		if err != nil {
			return Ref{}, err
		}
		return BlobRef(hash), nil
	case Tree:
		entries := make([]TreeEntry, 0, len(v))
		for _, child := range v {
			ref, err := s.StoreComponent(child.Value)
			if err != nil {
				return Ref{}, err
			}
			entries = append(entries, TreeEntry{Name: child.Name, Ref: ref})
		}
		hash, err := s.StoreTree(entries)
		if err != nil {
			return Ref{}, err
		}
		return TreeRef(hash), nil
	default:
		return Ref{}, fmt.Errorf("unknown component type %T", c)
	}
}

// LoadBlob returns the raw content of a stored blob.
func (s *Store) LoadBlob(hashBase16 string) ([]byte, error) {
	b, err := s.files.Get(s.path(hashBase16))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s", ErrNotFound, hashBase16)
		}
		return nil, err
	}
	return b, nil
}

// LoadTree returns the entries of a stored tree.
func (s *Store) LoadTree(hashBase16 string) ([]TreeEntry, error) {
	body, err := s.files.Get(s.path(hashBase16))
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: tree %s", ErrNotFound, hashBase16)
		}
		return nil, err
	}
	entries, err := ParseTreeBody(body)
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", hashBase16, err)
	}
	return entries, nil
}

// LoadComponent materializes the full component referenced by ref, loading
// tree children recursively.
func (s *Store) LoadComponent(ref Ref) (Component, error) {
	if ref.Kind == KindBlob {
		b, err := s.LoadBlob(ref.HashBase16)
		if err != nil {
			return nil, err
		}
		return Blob(b), nil
	}
	entries, err := s.LoadTree(ref.HashBase16)
	if err != nil {
		return nil, err
	}
	tree := make(Tree, 0, len(entries))
	for _, e := range entries {
		child, err := s.LoadComponent(e.Ref)
		if err != nil {
			return nil, err
		}
		tree = append(tree, Named{Name: e.Name, Value: child})
	}
	return tree, nil
}

// Exists reports whether a component with the given hash is stored.
func (s *Store) Exists(hashBase16 string) (bool, error) {
	_, err := s.files.Get(s.path(hashBase16))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, filestore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ReachableHashes returns the transitive closure of component hashes needed
// to load every root: the roots themselves plus, for tree roots, every
// descendant.
func (s *Store) ReachableHashes(roots []Ref) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	var walk func(ref Ref) error
	walk = func(ref Ref) error {
		if _, seen := out[ref.HashBase16]; seen {
			return nil
		}
		out[ref.HashBase16] = struct{}{}
		if ref.Kind != KindTree {
			return nil
		}
		entries, err := s.LoadTree(ref.HashBase16)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := walk(e.Ref); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
