package filestore

import "sort"

// Readonly wraps a Store, rejecting every mutation. Used to hand the restore
// path a view that structurally cannot write.
type Readonly struct {
	base Store
}

// NewReadonly returns a read-only view of base.
func NewReadonly(base Store) *Readonly { return &Readonly{base: base} }

// Set always returns ErrReadOnly.
func (s *Readonly) Set(Path, []byte) error { return ErrReadOnly }

// Append always returns ErrReadOnly.
func (s *Readonly) Append(Path, []byte) error { return ErrReadOnly }

// Delete always returns ErrReadOnly.
func (s *Readonly) Delete(Path) error { return ErrReadOnly }

// Get reads through to the base store.
func (s *Readonly) Get(p Path) ([]byte, error) { return s.base.Get(p) }

// List reads through to the base store.
func (s *Readonly) List(prefix Path) ([]Path, error) { return s.base.List(prefix) }

// recordedOp is one buffered mutation, replayed in order on Apply.
type recordedOp struct {
	kind    opKind
	path    Path
	content []byte
}

type opKind int

const (
	opSet opKind = iota
	opAppend
	opDelete
)

// Recording is an overlay projection: mutations are buffered in memory on
// top of a read-only base, and reads observe base-plus-overlay. It backs the
// test-then-commit flow: run a full restore against the projection, and only
// if that succeeds Apply the buffered mutations to the real store.
type Recording struct {
	base    Store
	overlay *Memory
	deleted map[string]bool
	ops     []recordedOp
}

// NewRecording returns an empty recording projection over base.
func NewRecording(base Store) *Recording {
	return &Recording{base: base, overlay: NewMemory(), deleted: map[string]bool{}}
}

// Set buffers a replace-write.
func (s *Recording) Set(p Path, content []byte) error {
	if err := s.overlay.Set(p, content); err != nil {
		return err
	}
	delete(s.deleted, p.String())
	s.ops = append(s.ops, recordedOp{kind: opSet, path: p, content: append([]byte(nil), content...)})
	return nil
}

// Append buffers an append. The overlay materializes base content first so
// subsequent reads see the full file.
func (s *Recording) Append(p Path, content []byte) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := s.overlay.Get(p); err != nil && !s.deleted[p.String()] {
		if baseContent, baseErr := s.base.Get(p); baseErr == nil {
			if err := s.overlay.Set(p, baseContent); err != nil {
				return err
			}
		}
	}
	if err := s.overlay.Append(p, content); err != nil {
		return err
	}
	delete(s.deleted, p.String())
	s.ops = append(s.ops, recordedOp{kind: opAppend, path: p, content: append([]byte(nil), content...)})
	return nil
}

// Get returns overlay content when present, otherwise reads through.
func (s *Recording) Get(p Path) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s.deleted[p.String()] {
		return nil, ErrNotFound
	}
	if b, err := s.overlay.Get(p); err == nil {
		return b, nil
	}
	return s.base.Get(p)
}

// List merges base and overlay paths, honoring buffered deletes.
func (s *Recording) List(prefix Path) ([]Path, error) {
	baseList, err := s.base.List(prefix)
	if err != nil {
		return nil, err
	}
	overlayList, err := s.overlay.List(prefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []Path
	for _, lists := range [][]Path{overlayList, baseList} {
		for _, p := range lists {
			key := p.String()
			if seen[key] || s.deleted[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	sortPaths(out)
	return out, nil
}

// Delete buffers a delete.
func (s *Recording) Delete(p Path) error {
	if err := s.overlay.Delete(p); err != nil {
		return err
	}
	s.deleted[p.String()] = true
	s.ops = append(s.ops, recordedOp{kind: opDelete, path: p})
	return nil
}

// Apply replays the buffered mutations, in recorded order, onto dst.
func (s *Recording) Apply(dst Store) error {
	for _, op := range s.ops {
		var err error
		switch op.kind {
		case opSet:
			err = dst.Set(op.path, op.content)
		case opAppend:
			err = dst.Append(op.path, op.content)
		case opDelete:
			err = dst.Delete(op.path)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sortPaths(paths []Path) {
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
}
