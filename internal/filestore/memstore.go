package filestore

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Store used by tests and as the overlay half of
// recording projections.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}}
}

// Set writes content at p.
func (s *Memory) Set(p Path, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p.String()] = append([]byte(nil), content...)
	return nil
}

// Append appends content at p, creating the file when absent.
func (s *Memory) Append(p Path, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.String()
	s.files[key] = append(s.files[key], content...)
	return nil
}

// Get returns the content at p, or ErrNotFound.
func (s *Memory) Get(p Path) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[p.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// List returns paths at or below prefix, sorted.
func (s *Memory) List(prefix Path) ([]Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	pfx := ""
	if len(prefix) > 0 {
		if err := prefix.Validate(); err != nil {
			return nil, err
		}
		pfx = prefix.String() + "/"
	}
	for k := range s.files {
		if pfx == "" || k+"/" == pfx || hasStringPrefix(k, pfx) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Path, 0, len(keys))
	for _, k := range keys {
		out = append(out, splitKey(k))
	}
	return out, nil
}

// Delete removes the file at p. Absent files are a no-op.
func (s *Memory) Delete(p Path) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, p.String())
	return nil
}

func hasStringPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func splitKey(k string) Path {
	return Path(strings.Split(k, "/"))
}
