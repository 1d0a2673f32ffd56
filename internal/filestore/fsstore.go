package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS is the filesystem-backed Store. Each Path maps to a file under the root
// directory; this backend realizes the documented on-disk layout consumed by
// external tooling.
type FS struct {
	root string
}

// NewFS returns a filesystem store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.New("filestore: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FS{root: dir}, nil
}

// Root returns the root directory.
func (s *FS) Root() string { return s.root }

func (s *FS) abs(p Path) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{s.root}, p...)...), nil
}

// Set writes content at p, replacing any previous content.
func (s *FS) Set(p Path, content []byte) error {
	abs, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, content, 0o644)
}

// Append appends content at p, creating the file when absent.
func (s *FS) Append(p Path, content []byte) error {
	abs, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Get returns the content at p, or ErrNotFound.
func (s *FS) Get(p Path) ([]byte, error) {
	abs, err := s.abs(p)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns the paths of all files at or below prefix, sorted.
func (s *FS) List(prefix Path) ([]Path, error) {
	base := s.root
	if len(prefix) > 0 {
		if err := prefix.Validate(); err != nil {
			return nil, err
		}
		base = filepath.Join(append([]string{s.root}, prefix...)...)
	}
	var out []Path
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, Path(strings.Split(filepath.ToSlash(rel), "/")))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Delete removes the file at p. Absent files are a no-op.
func (s *FS) Delete(p Path) error {
	abs, err := s.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
