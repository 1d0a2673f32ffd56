package component

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// DefaultInlineLimit is the largest value stored literally inside a
// composition record instead of through the component store.
const DefaultInlineLimit = 10 << 10

// ValueRef is a value either inlined literally or referenced by component
// hash. Small, frequent update events carry their payload inline and skip
// the store round-trip. The literal is a pointer so an empty value stays
// representable inline.
type ValueRef struct {
	LiteralBase64 *string `json:"literalBase64,omitempty"`
	HashBase16    string  `json:"hashBase16,omitempty"`
}

// Validate checks that exactly one representation is set.
func (v ValueRef) Validate() error {
	switch {
	case v.LiteralBase64 != nil && v.HashBase16 != "":
		return errors.New("value carries both literal and hash")
	case v.LiteralBase64 == nil && v.HashBase16 == "":
		return errors.New("value carries neither literal nor hash")
	case v.HashBase16 != "" && !ValidHashBase16(v.HashBase16):
		return fmt.Errorf("malformed value hash %q", v.HashBase16)
	}
	return nil
}

// LiteralValue builds an inline ValueRef.
func LiteralValue(content []byte) ValueRef {
	enc := base64.StdEncoding.EncodeToString(content)
	return ValueRef{LiteralBase64: &enc}
}

// HashValue builds a hash-shaped ValueRef.
func HashValue(hashBase16 string) ValueRef {
	return ValueRef{HashBase16: hashBase16}
}

// StoreValue stores content, inlining it when it fits within inlineLimit
// bytes and writing a blob component otherwise. A non-positive inlineLimit
// applies DefaultInlineLimit.
func StoreValue(s *Store, content []byte, inlineLimit int) (ValueRef, error) {
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineLimit
	}
	if len(content) <= inlineLimit {
		return LiteralValue(content), nil
	}
	hash, err := s.StoreBlob(content)
	if err != nil {
		return ValueRef{}, err
	}
	return HashValue(hash), nil
}

// ResolveValue returns the bytes a ValueRef stands for, loading the blob
// for hash-shaped values.
func ResolveValue(s *Store, v ValueRef) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if v.LiteralBase64 != nil {
		b, err := base64.StdEncoding.DecodeString(*v.LiteralBase64)
		if err != nil {
			return nil, fmt.Errorf("bad literal encoding: %w", err)
		}
		return b, nil
	}
	return s.LoadBlob(v.HashBase16)
}
