package doctree

import (
	"unicode/utf8"

	"redline-be/pkg/lexical"
)

// Kind is the closed set of node variants the tree understands.
type Kind int

const (
	KindRoot Kind = iota
	// KindElement is a block element (paragraph, heading, list, list item, quote, table parts).
	KindElement
	// KindText is the keyed text leaf. It is the only text kind in the tree.
	KindText
	KindLineBreak
	// KindDeletion is an inline container of text proposed for removal.
	KindDeletion
	// KindInsertion is an inline container of proposed new text.
	KindInsertion
	// KindMark is an inline container anchoring a set of thread ids.
	KindMark
	// KindLink is an inline element that is not a tracked change or a mark.
	KindLink
	// KindDecorator is an opaque leaf (mention, horizontal rule). Inline decides its placement.
	KindDecorator
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindLineBreak:
		return "linebreak"
	case KindDeletion:
		return "deletion"
	case KindInsertion:
		return "insertion"
	case KindMark:
		return "mark"
	case KindLink:
		return "link"
	case KindDecorator:
		return "decorator"
	}
	return "unknown"
}

// Node is one entry of the arena. Parent and Children hold keys, never pointers.
// Fields are read-only outside of Tx mutation methods.
type Node struct {
	Key      string
	Kind     Kind
	Type     string
	Parent   string
	Children []string

	// Text leaves
	Text   string
	Format int
	Style  string
	Mode   string
	Detail int

	// Mark thread ids
	IDs []string

	// Insertion change id
	ChangeID string

	// Decorators only
	Inline bool

	// Attrs keeps the serialized payload of elements, links and decorators
	// (alignment, tag, url, list type...) for a lossless export.
	Attrs lexical.Node
}

// IsElement reports whether the node can hold children.
func (n *Node) IsElement() bool {
	switch n.Kind {
	case KindRoot, KindElement, KindDeletion, KindInsertion, KindMark, KindLink:
		return true
	}
	return false
}

// IsInline reports whether the node lives inside a block.
func (n *Node) IsInline() bool {
	switch n.Kind {
	case KindText, KindLineBreak, KindDeletion, KindInsertion, KindMark, KindLink:
		return true
	case KindDecorator:
		return n.Inline
	}
	return false
}

// IsBlock reports whether the node is a block element or block decorator.
func (n *Node) IsBlock() bool {
	return n.Kind == KindElement || (n.Kind == KindDecorator && !n.Inline)
}

// Size is the number of addressable offsets inside a leaf.
func (n *Node) Size() int {
	switch n.Kind {
	case KindText:
		return utf8.RuneCountInString(n.Text)
	case KindLineBreak, KindDecorator:
		return 1
	}
	return len(n.Children)
}

// HasID reports whether a mark carries id.
func (n *Node) HasID(id string) bool {
	for _, v := range n.IDs {
		if v == id {
			return true
		}
	}
	return false
}

func (n *Node) clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = append([]string(nil), n.Children...)
	}
	if n.IDs != nil {
		c.IDs = append([]string(nil), n.IDs...)
	}
	return &c
}

func (n *Node) indexOf(child string) int {
	for i, k := range n.Children {
		if k == child {
			return i
		}
	}
	return -1
}
