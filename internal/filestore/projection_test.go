package filestore

import (
	"errors"
	"testing"
)

func TestReadonlyRejectsWrites(t *testing.T) {
	base := NewMemory()
	if err := base.Set(Path{"a"}, []byte("x")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ro := NewReadonly(base)
	if err := ro.Set(Path{"b"}, nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("set: %v", err)
	}
	if err := ro.Append(Path{"a"}, nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("append: %v", err)
	}
	if err := ro.Delete(Path{"a"}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("delete: %v", err)
	}
	b, err := ro.Get(Path{"a"})
	if err != nil || string(b) != "x" {
		t.Fatalf("get through: %q %v", b, err)
	}
}

func TestRecordingOverlayReads(t *testing.T) {
	base := NewMemory()
	_ = base.Set(Path{"log", "seg"}, []byte("r1\n"))
	_ = base.Set(Path{"keep"}, []byte("k"))

	rec := NewRecording(base)
	if err := rec.Append(Path{"log", "seg"}, []byte("r2\n")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := rec.Set(Path{"new"}, []byte("n")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := rec.Delete(Path{"keep"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Projection sees base+overlay.
	b, err := rec.Get(Path{"log", "seg"})
	if err != nil || string(b) != "r1\nr2\n" {
		t.Fatalf("merged read: %q %v", b, err)
	}
	if _, err := rec.Get(Path{"keep"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted file visible: %v", err)
	}
	paths, err := rec.List(nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("want [log/seg new], got %v", paths)
	}

	// Base untouched until Apply.
	b, _ = base.Get(Path{"log", "seg"})
	if string(b) != "r1\n" {
		t.Fatalf("base mutated early: %q", b)
	}
	if _, err := base.Get(Path{"keep"}); err != nil {
		t.Fatalf("base delete leaked: %v", err)
	}
}

func TestRecordingApplyReplaysInOrder(t *testing.T) {
	base := NewMemory()
	_ = base.Set(Path{"log", "seg"}, []byte("r1\n"))

	rec := NewRecording(base)
	_ = rec.Append(Path{"log", "seg"}, []byte("r2\n"))
	_ = rec.Set(Path{"components", "h1"}, []byte("blob"))
	_ = rec.Delete(Path{"log", "old"})

	if err := rec.Apply(base); err != nil {
		t.Fatalf("apply: %v", err)
	}
	b, _ := base.Get(Path{"log", "seg"})
	if string(b) != "r1\nr2\n" {
		t.Fatalf("append not applied: %q", b)
	}
	b, _ = base.Get(Path{"components", "h1"})
	if string(b) != "blob" {
		t.Fatalf("set not applied: %q", b)
	}
}
