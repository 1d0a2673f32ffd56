package filestore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for paths with no stored content.
var ErrNotFound = errors.New("file not found")

// ErrReadOnly is returned by mutating operations on read-only projections.
var ErrReadOnly = errors.New("file store is read-only")

// Path identifies a file as a sequence of name components relative to the
// store root. Components never contain separators.
type Path []string

// String joins the components with '/'.
func (p Path) String() string { return strings.Join(p, "/") }

// Child returns p extended by one component.
func (p Path) Child(name string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, name)
}

// HasPrefix reports whether p is equal to or below prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, c := range prefix {
		if p[i] != c {
			return false
		}
	}
	return true
}

// Equal reports component-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate rejects empty paths and components that would escape the store
// root or embed separators.
func (p Path) Validate() error {
	if len(p) == 0 {
		return errors.New("empty path")
	}
	for _, c := range p {
		if c == "" || c == "." || c == ".." || strings.ContainsAny(c, "/\\") {
			return fmt.Errorf("invalid path component %q", c)
		}
	}
	return nil
}

// Store is the abstract file store the persistence layers are built on. The
// filesystem backend realizes the interoperable on-disk layout; the memory
// and Pebble backends share the same logical namespace.
type Store interface {
	// Set writes content at p, replacing any previous content.
	Set(p Path, content []byte) error
	// Append appends content at p, creating the file when absent.
	Append(p Path, content []byte) error
	// Get returns the content at p, or ErrNotFound.
	Get(p Path) ([]byte, error)
	// List returns the paths of all files at or below prefix, sorted
	// lexicographically. A nil prefix lists the whole store.
	List(prefix Path) ([]Path, error)
	// Delete removes the file at p. Deleting an absent file is a no-op.
	Delete(p Path) error
}
