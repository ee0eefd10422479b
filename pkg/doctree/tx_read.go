package doctree

import (
	"strings"
)

// Tx is a handle on the tree for the duration of one Update or Read.
// It must not be retained after the callback returns.
type Tx struct {
	tree             *Tree
	readOnly         bool
	dirty            map[string]struct{}
	touched          map[string]struct{}
	selectionChanged bool
}

func newTx(t *Tree) *Tx {
	return &Tx{
		tree:    t,
		dirty:   map[string]struct{}{},
		touched: map[string]struct{}{},
	}
}

// ReadOnly reports whether mutations are rejected.
func (tx *Tx) ReadOnly() bool { return tx.readOnly }

// Node returns the node for key, attached or not.
func (tx *Tx) Node(key string) (*Node, bool) {
	n, ok := tx.tree.nodes[key]
	return n, ok
}

// Get returns the node for key or ErrStaleKey.
func (tx *Tx) Get(key string) (*Node, error) {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil, ErrStaleKey
	}
	return n, nil
}

// Live returns the node only if it is attached to the root.
func (tx *Tx) Live(key string) (*Node, error) {
	n, ok := tx.tree.nodes[key]
	if !ok || !tx.IsAttached(key) {
		return nil, ErrStaleKey
	}
	return n, nil
}

func (tx *Tx) isLive(key string) bool {
	_, ok := tx.tree.nodes[key]
	return ok && tx.IsAttached(key)
}

// Root returns the root node.
func (tx *Tx) Root() *Node { return tx.tree.nodes[RootKey] }

// IsAttached reports whether key is reachable from the root.
func (tx *Tx) IsAttached(key string) bool {
	for key != "" {
		if key == RootKey {
			return true
		}
		n, ok := tx.tree.nodes[key]
		if !ok {
			return false
		}
		key = n.Parent
	}
	return false
}

// Parent returns the parent of key, or nil for the root and detached nodes.
func (tx *Tx) Parent(key string) *Node {
	n, ok := tx.tree.nodes[key]
	if !ok || n.Parent == "" {
		return nil
	}
	return tx.tree.nodes[n.Parent]
}

// Children returns the child nodes of key in order.
func (tx *Tx) Children(key string) []*Node {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, k := range n.Children {
		out = append(out, tx.tree.nodes[k])
	}
	return out
}

// IndexWithinParent returns the position of key among its siblings, or -1.
func (tx *Tx) IndexWithinParent(key string) int {
	p := tx.Parent(key)
	if p == nil {
		return -1
	}
	return p.indexOf(key)
}

// NextSibling returns the following sibling of key, or nil.
func (tx *Tx) NextSibling(key string) *Node {
	p := tx.Parent(key)
	if p == nil {
		return nil
	}
	i := p.indexOf(key)
	if i < 0 || i+1 >= len(p.Children) {
		return nil
	}
	return tx.tree.nodes[p.Children[i+1]]
}

// PrevSibling returns the preceding sibling of key, or nil.
func (tx *Tx) PrevSibling(key string) *Node {
	p := tx.Parent(key)
	if p == nil {
		return nil
	}
	i := p.indexOf(key)
	if i <= 0 {
		return nil
	}
	return tx.tree.nodes[p.Children[i-1]]
}

// IsParentOf reports whether ancestor is a strict ancestor of key.
func (tx *Tx) IsParentOf(ancestor, key string) bool {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return false
	}
	for p := n.Parent; p != ""; {
		if p == ancestor {
			return true
		}
		pn, ok := tx.tree.nodes[p]
		if !ok {
			return false
		}
		p = pn.Parent
	}
	return false
}

// Ancestor returns the nearest strict ancestor of key with the given kind.
func (tx *Tx) Ancestor(key string, kind Kind) *Node {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil
	}
	for p := n.Parent; p != ""; {
		pn, ok := tx.tree.nodes[p]
		if !ok {
			return nil
		}
		if pn.Kind == kind {
			return pn
		}
		p = pn.Parent
	}
	return nil
}

// Block returns the top-level block that contains key (a direct child of the root).
func (tx *Tx) Block(key string) *Node {
	n, ok := tx.tree.nodes[key]
	for ok && n.Parent != RootKey {
		if n.Parent == "" {
			return nil
		}
		n, ok = tx.tree.nodes[n.Parent]
	}
	if !ok {
		return nil
	}
	return n
}

// Preorder lists every attached key except the root in document order.
func (tx *Tx) Preorder() []string {
	return tx.preorder(RootKey, false)
}

func (tx *Tx) preorder(from string, includeSelf bool) []string {
	var out []string
	var walk func(k string)
	walk = func(k string) {
		n, ok := tx.tree.nodes[k]
		if !ok {
			return
		}
		for _, c := range n.Children {
			out = append(out, c)
			walk(c)
		}
	}
	if includeSelf {
		out = append(out, from)
	}
	walk(from)
	return out
}

// Walk visits the subtree under key (excluding key) in document order.
// Returning false from fn skips the children of that node.
func (tx *Tx) Walk(key string, fn func(n *Node) bool) {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return
	}
	for _, c := range n.Children {
		cn := tx.tree.nodes[c]
		if cn == nil {
			continue
		}
		if fn(cn) {
			tx.Walk(c, fn)
		}
	}
}

// IsBefore reports whether a precedes b in document order. An ancestor
// precedes its descendants.
func (tx *Tx) IsBefore(a, b string) bool {
	if a == b {
		return false
	}
	pa := tx.pathTo(a)
	pb := tx.pathTo(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

// pathTo returns child indexes from the root down to key.
func (tx *Tx) pathTo(key string) []int {
	var rev []int
	for key != RootKey {
		n, ok := tx.tree.nodes[key]
		if !ok || n.Parent == "" {
			return nil
		}
		p := tx.tree.nodes[n.Parent]
		rev = append(rev, p.indexOf(key))
		key = n.Parent
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// TextContent returns the text under key. Blocks are separated by a newline.
func (tx *Tx) TextContent(key string) string {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return ""
	}
	switch n.Kind {
	case KindText:
		return n.Text
	case KindLineBreak:
		return "\n"
	case KindDecorator:
		return ""
	}
	var b strings.Builder
	for i, c := range n.Children {
		b.WriteString(tx.TextContent(c))
		cn := tx.tree.nodes[c]
		if cn != nil && cn.IsBlock() && i < len(n.Children)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FirstLeaf returns the first leaf under key, or key itself when it is a leaf.
func (tx *Tx) FirstLeaf(key string) *Node {
	n, ok := tx.tree.nodes[key]
	for ok && n.IsElement() && len(n.Children) > 0 {
		n, ok = tx.tree.nodes[n.Children[0]]
	}
	if !ok {
		return nil
	}
	return n
}

// LastLeaf returns the last leaf under key, or key itself when it is a leaf.
func (tx *Tx) LastLeaf(key string) *Node {
	n, ok := tx.tree.nodes[key]
	for ok && n.IsElement() && len(n.Children) > 0 {
		n, ok = tx.tree.nodes[n.Children[len(n.Children)-1]]
	}
	if !ok {
		return nil
	}
	return n
}

// TextLeaves lists the text leaves under key in document order.
func (tx *Tx) TextLeaves(key string) []*Node {
	var out []*Node
	tx.Walk(key, func(n *Node) bool {
		if n.Kind == KindText {
			out = append(out, n)
		}
		return true
	})
	return out
}

// NodesOfKind lists attached nodes of a kind in document order.
func (tx *Tx) NodesOfKind(kind Kind) []*Node {
	var out []*Node
	tx.Walk(RootKey, func(n *Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Selection returns the current selection, if any.
func (tx *Tx) Selection() (RangeSelection, bool) {
	if tx.tree.selection == nil {
		return RangeSelection{}, false
	}
	return *tx.tree.selection, true
}
