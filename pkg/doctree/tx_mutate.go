package doctree

import (
	"sort"
	"unicode/utf8"

	"redline-be/pkg/lexical"
)

func (tx *Tx) writable() error {
	if tx.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (tx *Tx) markDirty(key string) {
	tx.dirty[key] = struct{}{}
	tx.touchUp(key)
}

func (tx *Tx) touchUp(key string) {
	for key != "" {
		if _, seen := tx.touched[key]; seen {
			return
		}
		tx.touched[key] = struct{}{}
		n, ok := tx.tree.nodes[key]
		if !ok {
			return
		}
		key = n.Parent
	}
}

// dirtyAround marks the siblings at i-1 and i of p dirty, so that merge
// transforms see the new adjacency.
func (tx *Tx) dirtyAround(p *Node, i int) {
	for _, j := range []int{i - 1, i} {
		if j >= 0 && j < len(p.Children) {
			tx.markDirty(p.Children[j])
		}
	}
}

func (tx *Tx) create(n *Node) *Node {
	if tx.readOnly {
		panic(ErrReadOnly)
	}
	if n.Key == "" {
		n.Key = tx.tree.allocKey()
	} else {
		tx.tree.reserveKey(n.Key)
	}
	tx.tree.nodes[n.Key] = n
	tx.markDirty(n.Key)
	return n
}

// CreateText creates a detached keyed-text leaf.
func (tx *Tx) CreateText(text string, format int) *Node {
	return tx.create(&Node{Kind: KindText, Type: lexical.TypeTextWithKey, Text: text, Format: format, Mode: "normal"})
}

// CreateTextLike creates a detached text leaf carrying the format, style,
// mode and detail of src.
func (tx *Tx) CreateTextLike(src *Node, text string) *Node {
	return tx.create(&Node{
		Kind:   KindText,
		Type:   lexical.TypeTextWithKey,
		Text:   text,
		Format: src.Format,
		Style:  src.Style,
		Mode:   src.Mode,
		Detail: src.Detail,
	})
}

// CreateElement creates a detached block element of the given lexical type.
func (tx *Tx) CreateElement(typ string) *Node {
	return tx.create(&Node{
		Kind:  KindElement,
		Type:  typ,
		Attrs: lexical.Node{Type: typ, Version: 1, Direction: "ltr"},
	})
}

func (tx *Tx) CreateDeletion() *Node {
	return tx.create(&Node{Kind: KindDeletion, Type: lexical.TypeDel})
}

func (tx *Tx) CreateInsertion(changeID string) *Node {
	return tx.create(&Node{Kind: KindInsertion, Type: lexical.TypeIns, ChangeID: changeID})
}

func (tx *Tx) CreateMark(ids ...string) *Node {
	return tx.create(&Node{Kind: KindMark, Type: lexical.TypeMark, IDs: uniqueIDs(ids)})
}

func (tx *Tx) CreateLineBreak() *Node {
	return tx.create(&Node{Kind: KindLineBreak, Type: lexical.TypeLineBreak})
}

// CloneShallow creates a detached copy of key without its children.
func (tx *Tx) CloneShallow(key string) (*Node, error) {
	n, err := tx.Get(key)
	if err != nil {
		return nil, err
	}
	c := n.clone()
	c.Key = ""
	c.Parent = ""
	c.Children = nil
	return tx.create(c), nil
}

func (tx *Tx) checkMovable(key, newParent string) (*Node, error) {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil, ErrStaleKey
	}
	if key == RootKey {
		return nil, ErrRoot
	}
	if key == newParent || tx.IsParentOf(key, newParent) {
		return nil, ErrCycle
	}
	return n, nil
}

func (tx *Tx) detach(n *Node) {
	if n.Parent == "" {
		return
	}
	if p, ok := tx.tree.nodes[n.Parent]; ok {
		if i := p.indexOf(n.Key); i >= 0 {
			p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
			tx.markDirty(p.Key)
			tx.dirtyAround(p, i)
		}
	}
	n.Parent = ""
}

func (tx *Tx) attachAt(p *Node, i int, n *Node) {
	if i < 0 {
		i = 0
	}
	if i > len(p.Children) {
		i = len(p.Children)
	}
	p.Children = append(p.Children, "")
	copy(p.Children[i+1:], p.Children[i:])
	p.Children[i] = n.Key
	n.Parent = p.Key
	tx.markDirty(p.Key)
	tx.markDirty(n.Key)
	tx.dirtyAround(p, i)
	tx.dirtyAround(p, i+1)
}

// InsertAt moves key to position index among parent's children.
func (tx *Tx) InsertAt(parentKey string, index int, key string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	p, ok := tx.tree.nodes[parentKey]
	if !ok {
		return ErrStaleKey
	}
	if !p.IsElement() {
		return ErrNotElem
	}
	n, err := tx.checkMovable(key, parentKey)
	if err != nil {
		return err
	}
	tx.detach(n)
	tx.attachAt(p, index, n)
	return nil
}

// Append moves keys to the end of parent's children, in order.
func (tx *Tx) Append(parentKey string, keys ...string) error {
	for _, k := range keys {
		p, ok := tx.tree.nodes[parentKey]
		if !ok {
			return ErrStaleKey
		}
		idx := len(p.Children)
		if n, ok := tx.tree.nodes[k]; ok && n.Parent == parentKey {
			idx--
		}
		if err := tx.InsertAt(parentKey, idx, k); err != nil {
			return err
		}
	}
	return nil
}

// InsertBefore moves key right before ref.
func (tx *Tx) InsertBefore(ref, key string) error {
	return tx.insertRelative(ref, key, false)
}

// InsertAfter moves key right after ref.
func (tx *Tx) InsertAfter(ref, key string) error {
	return tx.insertRelative(ref, key, true)
}

func (tx *Tx) insertRelative(ref, key string, after bool) error {
	if err := tx.writable(); err != nil {
		return err
	}
	r, ok := tx.tree.nodes[ref]
	if !ok {
		return ErrStaleKey
	}
	if r.Parent == "" {
		return ErrRoot
	}
	if key == ref {
		return nil
	}
	n, err := tx.checkMovable(key, r.Parent)
	if err != nil {
		return err
	}
	tx.detach(n)
	p := tx.tree.nodes[r.Parent]
	i := p.indexOf(ref)
	if after {
		i++
	}
	tx.attachAt(p, i, n)
	return nil
}

// Remove detaches key and drops its subtree. An inline container left
// without children is removed as well.
func (tx *Tx) Remove(key string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if key == RootKey {
		return ErrRoot
	}
	n, ok := tx.tree.nodes[key]
	if !ok {
		return ErrStaleKey
	}
	parent := n.Parent
	tx.detach(n)
	tx.dropSubtree(key)

	if p, ok := tx.tree.nodes[parent]; ok && p.IsInline() && p.IsElement() && len(p.Children) == 0 {
		return tx.Remove(parent)
	}
	return nil
}

func (tx *Tx) dropSubtree(key string) {
	n, ok := tx.tree.nodes[key]
	if !ok {
		return
	}
	for _, c := range n.Children {
		tx.dropSubtree(c)
	}
	delete(tx.tree.nodes, key)
	delete(tx.dirty, key)
}

// Replace puts with in the place of old and removes old.
func (tx *Tx) Replace(old, with string) error {
	if err := tx.InsertAfter(old, with); err != nil {
		return err
	}
	return tx.Remove(old)
}

// Unwrap promotes the children of key into its parent and removes key.
func (tx *Tx) Unwrap(key string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	n, ok := tx.tree.nodes[key]
	if !ok {
		return ErrStaleKey
	}
	if !n.IsElement() {
		return ErrNotElem
	}
	for _, c := range append([]string(nil), n.Children...) {
		if err := tx.InsertBefore(key, c); err != nil {
			return err
		}
	}
	return tx.Remove(key)
}

// SplitText cuts a text leaf at the given rune offsets. The first piece keeps
// the original key; the returned keys are in document order. Offsets at 0 or
// at the end of the text are ignored.
func (tx *Tx) SplitText(key string, offsets ...int) ([]string, error) {
	if err := tx.writable(); err != nil {
		return nil, err
	}
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil, ErrStaleKey
	}
	if n.Kind != KindText {
		return nil, ErrNotText
	}
	runes := []rune(n.Text)

	cuts := make([]int, 0, len(offsets))
	seen := map[int]bool{}
	for _, o := range offsets {
		if o < 0 || o > len(runes) {
			return nil, ErrOffsetOutOfRange
		}
		if o > 0 && o < len(runes) && !seen[o] {
			seen[o] = true
			cuts = append(cuts, o)
		}
	}
	if len(cuts) == 0 {
		return []string{key}, nil
	}
	sort.Ints(cuts)

	parts := make([]string, 0, len(cuts)+1)
	prev := 0
	for _, c := range cuts {
		parts = append(parts, string(runes[prev:c]))
		prev = c
	}
	parts = append(parts, string(runes[prev:]))

	n.Text = parts[0]
	tx.markDirty(key)
	keys := []string{key}
	after := key
	for _, text := range parts[1:] {
		c := tx.CreateTextLike(n, text)
		if err := tx.InsertAfter(after, c.Key); err != nil {
			return nil, err
		}
		keys = append(keys, c.Key)
		after = c.Key
	}
	return keys, nil
}

func (tx *Tx) textNode(key string) (*Node, error) {
	if err := tx.writable(); err != nil {
		return nil, err
	}
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil, ErrStaleKey
	}
	if n.Kind != KindText {
		return nil, ErrNotText
	}
	return n, nil
}

func (tx *Tx) SetText(key, text string) error {
	n, err := tx.textNode(key)
	if err != nil {
		return err
	}
	n.Text = text
	tx.markDirty(key)
	return nil
}

func (tx *Tx) SetFormat(key string, format int) error {
	n, err := tx.textNode(key)
	if err != nil {
		return err
	}
	n.Format = format
	tx.markDirty(key)
	return nil
}

func (tx *Tx) SetStyle(key, style string) error {
	n, err := tx.textNode(key)
	if err != nil {
		return err
	}
	n.Style = style
	tx.markDirty(key)
	return nil
}

// InsertText types text into a leaf at a rune offset and moves the caret
// after it. Typing inside a deletion is refused.
func (tx *Tx) InsertText(at Point, text string) error {
	n, err := tx.textNode(at.Key)
	if err != nil {
		return err
	}
	if tx.Ancestor(at.Key, KindDeletion) != nil {
		return ErrInsideDeletion
	}
	runes := []rune(n.Text)
	if at.Offset < 0 || at.Offset > len(runes) {
		return ErrOffsetOutOfRange
	}
	n.Text = string(runes[:at.Offset]) + text + string(runes[at.Offset:])
	tx.markDirty(at.Key)

	caret := Point{Key: at.Key, Offset: at.Offset + utf8.RuneCountInString(text), Type: PointText}
	return tx.SetSelection(&RangeSelection{Anchor: caret, Focus: caret})
}

func (tx *Tx) mark(key string) (*Node, error) {
	if err := tx.writable(); err != nil {
		return nil, err
	}
	n, ok := tx.tree.nodes[key]
	if !ok {
		return nil, ErrStaleKey
	}
	if n.Kind != KindMark {
		return nil, ErrNotMark
	}
	return n, nil
}

// SetIDs replaces the thread ids of a mark.
func (tx *Tx) SetIDs(key string, ids []string) error {
	n, err := tx.mark(key)
	if err != nil {
		return err
	}
	n.IDs = uniqueIDs(ids)
	tx.markDirty(key)
	return nil
}

// AddID adds a thread id to a mark.
func (tx *Tx) AddID(key, id string) error {
	n, err := tx.mark(key)
	if err != nil {
		return err
	}
	if n.HasID(id) {
		return nil
	}
	n.IDs = append(n.IDs, id)
	tx.markDirty(key)
	return nil
}

// DeleteID removes a thread id from a mark. The mark itself stays; callers
// unwrap it when it has no ids left.
func (tx *Tx) DeleteID(key, id string) error {
	n, err := tx.mark(key)
	if err != nil {
		return err
	}
	for i, v := range n.IDs {
		if v == id {
			n.IDs = append(n.IDs[:i:i], n.IDs[i+1:]...)
			tx.markDirty(key)
			return nil
		}
	}
	return nil
}

// SetSelection replaces the selection. nil clears it.
func (tx *Tx) SetSelection(sel *RangeSelection) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if sel != nil {
		if _, ok := tx.tree.nodes[sel.Anchor.Key]; !ok {
			return ErrStaleKey
		}
		if _, ok := tx.tree.nodes[sel.Focus.Key]; !ok {
			return ErrStaleKey
		}
		c := *sel
		sel = &c
	}
	tx.tree.selection = sel
	tx.selectionChanged = true
	return nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
