package component

import (
	"bytes"
	"errors"
	"testing"

	"github.com/okelo/stele/internal/filestore"
)

func newTestStore(t *testing.T) (*Store, *filestore.Memory) {
	t.Helper()
	files := filestore.NewMemory()
	return NewStore(files), files
}

func TestStoreLoadBlobRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	for _, content := range [][]byte{nil, []byte(""), []byte("state"), bytes.Repeat([]byte{0xab}, 1<<16)} {
		hash, err := s.StoreBlob(content)
		if err != nil {
			t.Fatalf("store: %v", err)
		}
		got, err := s.LoadBlob(hash)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Fatalf("content mismatch for %d bytes", len(content))
		}
	}
}

func TestStoreIdempotent(t *testing.T) {
	s, files := newTestStore(t)
	h1, err := s.StoreBlob([]byte("same"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h2, err := s.StoreBlob([]byte("same"))
	if err != nil {
		t.Fatalf("store again: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ: %s vs %s", h1, h2)
	}
	paths, err := files.List(filestore.Path{DirName})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("duplicated stored bytes: %v", paths)
	}
}

func TestStoreRewritesDeletedFile(t *testing.T) {
	s, files := newTestStore(t)
	hash, err := s.StoreBlob([]byte("payload"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	// A truncation pass may delete the file between two stores of the
	// same content; the second store must put the bytes back.
	if err := files.Delete(filestore.Path{DirName, hash}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.StoreBlob([]byte("payload")); err != nil {
		t.Fatalf("store again: %v", err)
	}
	if _, err := s.LoadBlob(hash); err != nil {
		t.Fatalf("load after rewrite: %v", err)
	}
}

func TestLoadUnknownHashIsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	missing := HashBlob([]byte("never stored"))
	if _, err := s.LoadBlob(missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoadTree(missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreComponentTreeRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	bundle := Tree{
		{Name: "manifest.json", Value: Blob(`{"type":"application"}`)},
		{Name: "src", Value: Tree{
			{Name: "handler", Value: Blob("handler body")},
		}},
	}
	ref, err := s.StoreComponent(bundle)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if ref.Kind != KindTree {
		t.Fatalf("want tree ref, got %v", ref)
	}
	wantHash, err := Hash(bundle)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ref.HashBase16 != wantHash {
		t.Fatalf("stored hash %s != structural hash %s", ref.HashBase16, wantHash)
	}

	loaded, err := s.LoadComponent(ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	gotHash, err := Hash(loaded)
	if err != nil {
		t.Fatalf("rehash: %v", err)
	}
	if gotHash != wantHash {
		t.Fatalf("loaded component differs: %s vs %s", gotHash, wantHash)
	}
}

func TestReachableHashesCoversClosure(t *testing.T) {
	s, _ := newTestStore(t)
	bundle := Tree{
		{Name: "a", Value: Blob("1")},
		{Name: "dir", Value: Tree{{Name: "b", Value: Blob("2")}}},
	}
	ref, err := s.StoreComponent(bundle)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	stateHash, err := s.StoreBlob([]byte("serialized state"))
	if err != nil {
		t.Fatalf("store state: %v", err)
	}

	reach, err := s.ReachableHashes([]Ref{ref, BlobRef(stateHash)})
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}
	// root tree + inner tree + 2 blobs + state blob
	if len(reach) != 5 {
		t.Fatalf("want 5 reachable hashes, got %d: %v", len(reach), reach)
	}
	if _, ok := reach[stateHash]; !ok {
		t.Fatalf("state blob missing from closure")
	}
}

func TestValueRefInlineAndIndirect(t *testing.T) {
	s, _ := newTestStore(t)

	small, err := StoreValue(s, []byte("tiny"), 16)
	if err != nil {
		t.Fatalf("store small: %v", err)
	}
	if small.LiteralBase64 == nil {
		t.Fatalf("small value not inlined: %+v", small)
	}

	big, err := StoreValue(s, bytes.Repeat([]byte("x"), 64), 16)
	if err != nil {
		t.Fatalf("store big: %v", err)
	}
	if big.HashBase16 == "" {
		t.Fatalf("big value not stored as component: %+v", big)
	}

	for _, v := range []ValueRef{small, big} {
		got, err := ResolveValue(s, v)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if len(got) == 0 {
			t.Fatalf("empty resolution for %+v", v)
		}
	}

	empty, err := StoreValue(s, nil, 16)
	if err != nil {
		t.Fatalf("store empty: %v", err)
	}
	got, err := ResolveValue(s, empty)
	if err != nil {
		t.Fatalf("resolve empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty value resolved to %q", got)
	}
}

func TestValueRefValidate(t *testing.T) {
	lit := "eA"
	for _, v := range []ValueRef{
		{},
		{LiteralBase64: &lit, HashBase16: HashBlob(nil)},
		{HashBase16: "zzz"},
	} {
		if err := v.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", v)
		}
	}
}
