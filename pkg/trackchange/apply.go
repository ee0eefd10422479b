// Package trackchange turns edit intents into tracked Deletion and Insertion
// nodes and resolves them.
package trackchange

import (
	"errors"

	"github.com/google/uuid"

	"redline-be/pkg/doctree"
)

// DeletionStrategy wraps text runs in Deletion nodes. Proposed insertions in
// the range are dropped outright, and text already proposed for deletion is
// left alone.
type DeletionStrategy struct {
	// SkipFirst leaves the first node alone. It is set when the range started
	// inside an existing deletion.
	SkipFirst bool
}

func (s DeletionStrategy) Classify(tx *doctree.Tx, n *doctree.Node, i int) doctree.WrapDecision {
	switch {
	case n.Kind == doctree.KindInsertion, tx.Ancestor(n.Key, doctree.KindInsertion) != nil:
		return doctree.WrapRemove
	case n.Kind == doctree.KindDeletion, tx.Ancestor(n.Key, doctree.KindDeletion) != nil:
		return doctree.WrapSkip
	case i == 0 && s.SkipFirst:
		return doctree.WrapSkip
	case n.Kind == doctree.KindText:
		return doctree.WrapTarget
	}
	return doctree.WrapSkip
}

func (s DeletionStrategy) NewContainer(tx *doctree.Tx, _ *doctree.Node) (*doctree.Node, error) {
	return tx.CreateDeletion(), nil
}

// ApplyDeletion proposes the selected text for removal and returns the key of
// the last Deletion created, or "" when nothing was wrapped. The selection
// collapses to the start of the anchor leaf. A stale selection is a no-op.
func ApplyDeletion(tx *doctree.Tx, sel doctree.RangeSelection) (string, error) {
	start, _, err := tx.Normalize(sel)
	if err != nil {
		return "", swallowStale(err)
	}
	strategy := DeletionStrategy{SkipFirst: tx.Ancestor(start.Key, doctree.KindDeletion) != nil}

	nodes, err := tx.Extract(sel)
	if err != nil {
		return "", swallowStale(err)
	}
	created, err := tx.WrapNodes(nodes, strategy)
	if err != nil {
		return "", err
	}

	if n, ok := tx.Node(sel.Anchor.Key); ok && n.Kind == doctree.KindText && tx.IsAttached(n.Key) {
		caret := doctree.Caret(n.Key, 0)
		if err := tx.SetSelection(&caret); err != nil {
			return "", err
		}
	}

	if len(created) == 0 {
		return "", nil
	}
	return created[len(created)-1], nil
}

// ApplyInsertion proposes text as a new Insertion placed right after
// afterKey. Empty text creates nothing. Insertions are never merged.
func ApplyInsertion(tx *doctree.Tx, text, afterKey string) (string, error) {
	if text == "" {
		return "", nil
	}
	after, err := tx.Live(afterKey)
	if err != nil {
		return "", swallowStale(err)
	}
	// never inside a deletion
	if del := tx.Ancestor(after.Key, doctree.KindDeletion); del != nil {
		after = del
	}

	return insertRelative(tx, text, after.Key, true)
}

// ApplyInsertionAt proposes text at a text position, splitting the leaf when
// the position falls inside it.
func ApplyInsertionAt(tx *doctree.Tx, text string, at doctree.Point) (string, error) {
	if text == "" {
		return "", nil
	}
	n, err := tx.Live(at.Key)
	if err != nil {
		return "", swallowStale(err)
	}
	if n.Kind != doctree.KindText {
		return "", doctree.ErrNotText
	}
	if at.Offset < 0 || at.Offset > n.Size() {
		return "", doctree.ErrOffsetOutOfRange
	}
	if del := tx.Ancestor(n.Key, doctree.KindDeletion); del != nil {
		return insertRelative(tx, text, del.Key, true)
	}
	if at.Offset == 0 && n.Size() > 0 {
		return insertRelative(tx, text, n.Key, false)
	}
	if _, err := tx.SplitText(n.Key, at.Offset); err != nil {
		return "", err
	}
	return insertRelative(tx, text, n.Key, true)
}

func insertRelative(tx *doctree.Tx, text, ref string, after bool) (string, error) {
	ins := tx.CreateInsertion(NewChangeID())
	leaf := tx.CreateText(text, 0)
	if err := tx.Append(ins.Key, leaf.Key); err != nil {
		return "", err
	}
	place := tx.InsertBefore
	if after {
		place = tx.InsertAfter
	}
	if err := place(ref, ins.Key); err != nil {
		return "", err
	}
	return ins.Key, nil
}

// EraseBackward is a collapsed backspace at p: the character before the caret
// is proposed for deletion and the caret moves in front of it.
func EraseBackward(tx *doctree.Tx, p doctree.Point) (string, error) {
	n, err := tx.Live(p.Key)
	if err != nil || n.Kind != doctree.KindText {
		return "", swallowStale(err)
	}

	key, offset := n.Key, p.Offset
	if offset <= 0 {
		prev := previousLeaf(tx, n.Key)
		if prev == nil {
			return "", nil
		}
		key, offset = prev.Key, prev.Size()
	}
	if offset == 0 {
		return "", nil
	}

	del, err := ApplyDeletion(tx, doctree.TextRange(key, offset-1, key, offset))
	if err != nil {
		return "", err
	}
	if tx.IsAttached(key) {
		caret := doctree.Caret(key, offset-1)
		if err := tx.SetSelection(&caret); err != nil {
			return "", err
		}
	}
	return del, nil
}

// previousLeaf returns the text leaf before key inside the same block.
func previousLeaf(tx *doctree.Tx, key string) *doctree.Node {
	block := tx.Block(key)
	if block == nil {
		return nil
	}
	var prev *doctree.Node
	for _, leaf := range tx.TextLeaves(block.Key) {
		if leaf.Key == key {
			return prev
		}
		if leaf.Size() > 0 {
			prev = leaf
		}
	}
	return nil
}

// NewChangeID returns a random id for an Insertion.
func NewChangeID() string {
	return uuid.NewString()
}

func swallowStale(err error) error {
	if errors.Is(err, doctree.ErrStaleKey) {
		return nil
	}
	return err
}
