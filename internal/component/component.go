package component

// Kind discriminates the two component shapes.
type Kind byte

const (
	// KindBlob is an opaque byte sequence.
	KindBlob Kind = iota
	// KindTree is an ordered set of named child references.
	KindTree
)

// String returns the serialized kind tag.
func (k Kind) String() string {
	if k == KindTree {
		return "tree"
	}
	return "blob"
}

// Component is the sealed union of Blob and Tree. Components are immutable
// and identified by the hash of their canonical serialization.
type Component interface {
	isComponent()
}

// Blob is an opaque byte sequence.
type Blob []byte

func (Blob) isComponent() {}

// Tree is a directory-shaped component: named children, each itself a
// Component. Child order is irrelevant; serialization canonicalizes by name.
type Tree []Named

func (Tree) isComponent() {}

// Named pairs a child name with its component.
type Named struct {
	Name  string
	Value Component
}

// Ref identifies a stored component by kind and content hash.
type Ref struct {
	Kind       Kind
	HashBase16 string
}

// BlobRef builds a blob reference.
func BlobRef(hashBase16 string) Ref { return Ref{Kind: KindBlob, HashBase16: hashBase16} }

// TreeRef builds a tree reference.
func TreeRef(hashBase16 string) Ref { return Ref{Kind: KindTree, HashBase16: hashBase16} }

// TreeEntry is one serialized child reference inside a stored tree.
type TreeEntry struct {
	Name string
	Ref  Ref
}
