// Package mark anchors thread ids to ranges of the document tree.
package mark

import (
	"sort"

	"redline-be/pkg/doctree"
)

// Register installs the mark normalization transforms on a tree:
// marks without ids are unwrapped, marks without children are removed,
// a mark nested directly in another mark is lifted out of it, and
// adjacent marks with the same ids are merged.
func Register(tree *doctree.Tree) (unregister func()) {
	return tree.RegisterTransform(doctree.KindMark, normalize)
}

func normalize(tx *doctree.Tx, n *doctree.Node) error {
	if len(n.IDs) == 0 {
		return tx.Unwrap(n.Key)
	}
	if len(n.Children) == 0 {
		return tx.Remove(n.Key)
	}
	if parent := tx.Parent(n.Key); parent != nil && parent.Kind == doctree.KindMark {
		return resolveNested(tx, parent, n)
	}
	if next := tx.NextSibling(n.Key); next != nil && next.Kind == doctree.KindMark && sameIDs(n.IDs, next.IDs) {
		return merge(tx, n, next)
	}
	return nil
}

// resolveNested moves inner out of outer. Inner takes the outer ids, and the
// siblings that followed inner go into a copy of outer placed after it.
func resolveNested(tx *doctree.Tx, outer, inner *doctree.Node) error {
	for _, c := range tx.Children(inner.Key) {
		if c.Kind == doctree.KindMark {
			// innermost first
			return nil
		}
	}

	for _, id := range outer.IDs {
		if err := tx.AddID(inner.Key, id); err != nil {
			return err
		}
	}

	idx := tx.IndexWithinParent(inner.Key)
	following := append([]string(nil), outer.Children[idx+1:]...)

	if err := tx.InsertAfter(outer.Key, inner.Key); err != nil {
		return err
	}
	if len(following) > 0 {
		clone, err := tx.CloneShallow(outer.Key)
		if err != nil {
			return err
		}
		if err := tx.InsertAfter(inner.Key, clone.Key); err != nil {
			return err
		}
		if err := tx.Append(clone.Key, following...); err != nil {
			return err
		}
	}
	if n, ok := tx.Node(outer.Key); ok && len(n.Children) == 0 {
		return tx.Remove(outer.Key)
	}
	return nil
}

func merge(tx *doctree.Tx, into, from *doctree.Node) error {
	if err := tx.Append(into.Key, append([]string(nil), from.Children...)...); err != nil {
		return err
	}
	return tx.Remove(from.Key)
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// Strategy wraps runs of text and inline elements in marks carrying IDs.
// Existing marks are stepped into, never wrapped.
type Strategy struct {
	IDs []string
}

func (s Strategy) Classify(_ *doctree.Tx, n *doctree.Node, _ int) doctree.WrapDecision {
	switch n.Kind {
	case doctree.KindText, doctree.KindLink, doctree.KindDeletion, doctree.KindInsertion:
		return doctree.WrapTarget
	case doctree.KindDecorator:
		if n.Inline {
			return doctree.WrapTarget
		}
	}
	return doctree.WrapSkip
}

func (s Strategy) NewContainer(tx *doctree.Tx, _ *doctree.Node) (*doctree.Node, error) {
	return tx.CreateMark(s.IDs...), nil
}

// Wrap anchors id to the selection and returns the created mark keys.
func Wrap(tx *doctree.Tx, sel doctree.RangeSelection, id string) ([]string, error) {
	return tx.WrapSelection(sel, Strategy{IDs: []string{id}})
}

// GetMarkIDs returns the ids of the innermost mark around a caret. At the end
// of a text leaf, a mark that directly follows the leaf counts.
func GetMarkIDs(tx *doctree.Tx, key string, offset int) []string {
	n, ok := tx.Node(key)
	if !ok {
		return nil
	}
	if n.Kind == doctree.KindText && offset == n.Size() {
		if next := tx.NextSibling(key); next != nil && next.Kind == doctree.KindMark {
			return append([]string(nil), next.IDs...)
		}
	}
	for cur := tx.Parent(key); cur != nil; cur = tx.Parent(cur.Key) {
		if cur.Kind == doctree.KindMark {
			return append([]string(nil), cur.IDs...)
		}
	}
	return nil
}

// RemoveID strips id from every mark that carries it, unwrapping marks left
// without ids.
func RemoveID(tx *doctree.Tx, keys []string, id string) error {
	for _, k := range keys {
		n, ok := tx.Node(k)
		if !ok || n.Kind != doctree.KindMark {
			continue
		}
		if err := tx.DeleteID(k, id); err != nil {
			return err
		}
		if len(n.IDs) == 0 {
			if err := tx.Unwrap(k); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarkText concatenates the text of the given mark instances in document order.
func MarkText(tx *doctree.Tx, keys []string) string {
	live := make([]string, 0, len(keys))
	for _, k := range keys {
		if tx.IsAttached(k) {
			live = append(live, k)
		}
	}
	sort.Slice(live, func(i, j int) bool { return tx.IsBefore(live[i], live[j]) })

	out := ""
	for _, k := range live {
		out += tx.TextContent(k)
	}
	return out
}
