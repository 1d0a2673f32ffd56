package filestore

import (
	"errors"
	"testing"

	pebblestore "github.com/okelo/stele/internal/storage/pebble"
)

// backends returns one constructor per Store implementation so the shared
// contract is exercised uniformly.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"fs": func(t *testing.T) Store {
			s, err := NewFS(t.TempDir())
			if err != nil {
				t.Fatalf("new fs store: %v", err)
			}
			return s
		},
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"pebble": func(t *testing.T) Store {
			db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
			if err != nil {
				t.Fatalf("open pebble: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			return NewPebble(db)
		},
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			p := Path{"components", "abc"}
			if err := s.Set(p, []byte("payload")); err != nil {
				t.Fatalf("set: %v", err)
			}
			b, err := s.Get(p)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(b) != "payload" {
				t.Fatalf("got %q", b)
			}
		})
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			if _, err := s.Get(Path{"nope"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestAppendAccumulates(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			p := Path{"composition-log", "2024-01-02"}
			if err := s.Append(p, []byte("one\n")); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := s.Append(p, []byte("two\n")); err != nil {
				t.Fatalf("append: %v", err)
			}
			b, err := s.Get(p)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(b) != "one\ntwo\n" {
				t.Fatalf("got %q", b)
			}
		})
	}
}

func TestListSortedAndScoped(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			for _, p := range []Path{
				{"components", "bb"},
				{"components", "aa"},
				{"reductions", "cc"},
			} {
				if err := s.Set(p, []byte("x")); err != nil {
					t.Fatalf("set %v: %v", p, err)
				}
			}
			got, err := s.List(Path{"components"})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("want 2 paths, got %v", got)
			}
			if got[0].String() != "components/aa" || got[1].String() != "components/bb" {
				t.Fatalf("bad order: %v", got)
			}
			all, err := s.List(nil)
			if err != nil {
				t.Fatalf("list all: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("want 3 paths, got %v", all)
			}
		})
	}
}

func TestListPrefixDoesNotOvermatchSiblings(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			if err := s.Set(Path{"log", "a"}, []byte("x")); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Set(Path{"log-archive", "b"}, []byte("x")); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, err := s.List(Path{"log"})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 1 || got[0].String() != "log/a" {
				t.Fatalf("prefix overmatched: %v", got)
			}
		})
	}
}

func TestDeleteIdempotent(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := mk(t)
			p := Path{"components", "gone"}
			if err := s.Set(p, []byte("x")); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Delete(p); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.Delete(p); err != nil {
				t.Fatalf("second delete: %v", err)
			}
			if _, err := s.Get(p); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestPathValidation(t *testing.T) {
	s := NewMemory()
	for _, p := range []Path{nil, {""}, {".."}, {"a/b"}} {
		if err := s.Set(p, []byte("x")); err == nil {
			t.Fatalf("expected validation error for %v", p)
		}
	}
}
