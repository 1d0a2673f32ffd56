// Package component implements the content-addressed component store:
// immutable blobs and directory-shaped trees identified by the SHA-256 of
// their canonical serialization.
//
// # Layout
//
// One file per hash under components/. Blob files hold raw bytes; tree
// files hold the canonical child list (one line per child, name-sorted).
// Identity hashing prepends a git-style kind+length preamble, so blob and
// tree identities occupy disjoint domains.
//
// # Semantics
//
// Components are write-once and deduplicated: storing the same content
// twice returns the same hash and leaves the stored bytes untouched.
// Loading an unknown hash yields ErrNotFound; whether that is a recoverable
// probe miss or fatal store corruption is the caller's call.
package component
