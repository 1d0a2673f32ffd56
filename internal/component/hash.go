package component

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Canonical serialization, git-style: a kind+length preamble followed by the
// body. The preamble gives blobs and trees disjoint hash domains, so an
// empty blob and an empty tree never share an identity.
//
//	blob:  "blob <decimal len>\x00" + raw bytes
//	tree:  "tree <decimal len>\x00" + body
//
// A tree body is one line per child, sorted bytewise by child name:
//
//	<kind> <hashBase16> <base64url(name)>\n
//
// Stored files carry only the body (raw bytes for blobs, the entry list for
// trees); the preamble exists solely inside the hash computation.

// HashBase16Len is the length of a base16 SHA-256 identity.
const HashBase16Len = sha256.Size * 2

func hashWithPreamble(kind Kind, body []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s %d\x00", kind, len(body))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// HashBlob returns the identity of a blob with the given content.
func HashBlob(content []byte) string {
	return hashWithPreamble(KindBlob, content)
}

// HashTreeBody returns the identity of a tree with the given canonical body.
func HashTreeBody(body []byte) string {
	return hashWithPreamble(KindTree, body)
}

// ValidHashBase16 reports whether s is a well-formed base16 SHA-256 hash.
func ValidHashBase16(s string) bool {
	if len(s) != HashBase16Len {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// TreeBody serializes entries into the canonical tree body. Duplicate names
// are rejected.
func TreeBody(entries []TreeEntry) ([]byte, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	for i, e := range sorted {
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("duplicate tree entry name %q", e.Name)
		}
		if !ValidHashBase16(e.Ref.HashBase16) {
			return nil, fmt.Errorf("tree entry %q: malformed hash %q", e.Name, e.Ref.HashBase16)
		}
		fmt.Fprintf(&buf, "%s %s %s\n", e.Ref.Kind, e.Ref.HashBase16, base64.RawURLEncoding.EncodeToString([]byte(e.Name)))
	}
	return buf.Bytes(), nil
}

// ParseTreeBody parses a canonical tree body back into entries.
func ParseTreeBody(body []byte) ([]TreeEntry, error) {
	if len(body) == 0 {
		return nil, nil
	}
	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	entries := make([]TreeEntry, 0, len(lines))
	for i, line := range lines {
		parts := strings.Split(line, " ")
		if len(parts) != 3 {
			return nil, fmt.Errorf("tree body line %d: want 3 fields, got %d", i+1, len(parts))
		}
		var kind Kind
		switch parts[0] {
		case "blob":
			kind = KindBlob
		case "tree":
			kind = KindTree
		default:
			return nil, fmt.Errorf("tree body line %d: unknown kind %q", i+1, parts[0])
		}
		if !ValidHashBase16(parts[1]) {
			return nil, fmt.Errorf("tree body line %d: malformed hash %q", i+1, parts[1])
		}
		name, err := base64.RawURLEncoding.DecodeString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("tree body line %d: bad name encoding: %w", i+1, err)
		}
		entries = append(entries, TreeEntry{Name: string(name), Ref: Ref{Kind: kind, HashBase16: parts[1]}})
	}
	return entries, nil
}

// Hash computes the identity of an in-memory component, hashing children
// recursively for trees.
func Hash(c Component) (string, error) {
	switch v := c.(type) {
	case Blob:
		return HashBlob(v), nil
	case Tree:
		entries := make([]TreeEntry, 0, len(v))
		for _, child := range v {
			childHash, err := Hash(child.Value)
			if err != nil {
				return "", err
			}
			entries = append(entries, TreeEntry{Name: child.Name, Ref: Ref{Kind: kindOf(child.Value), HashBase16: childHash}})
		}
		body, err := TreeBody(entries)
		if err != nil {
			return "", err
		}
		return HashTreeBody(body), nil
	default:
		return "", fmt.Errorf("unknown component type %T", c)
	}
}

func kindOf(c Component) Kind {
	if _, ok := c.(Tree); ok {
		return KindTree
	}
	return KindBlob
}
