package mark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/pkg/doctree"
	"redline-be/pkg/lexical"
)

func setup(t *testing.T, js string) (*doctree.Tree, *Index) {
	t.Helper()
	state, err := lexical.Decode([]byte(js))
	require.NoError(t, err)

	tree := doctree.New()
	Register(tree)
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error { return tx.Import(state) }))

	ix := NewIndex()
	_, err = ix.Attach(tree)
	require.NoError(t, err)
	return tree, ix
}

const single = `{"root":{"type":"root","children":[{"type":"paragraph","children":[
	{"type":"text","text":"hello world","__key":"10"}
]}]}}`

type markView struct {
	Text string
	IDs  []string
}

func marks(t *testing.T, tree *doctree.Tree) []markView {
	t.Helper()
	var out []markView
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		for _, n := range tx.NodesOfKind(doctree.KindMark) {
			out = append(out, markView{Text: tx.TextContent(n.Key), IDs: n.IDs})
		}
		return nil
	}))
	return out
}

func leafWithText(tx *doctree.Tx, text string) string {
	for _, n := range tx.TextLeaves(doctree.RootKey) {
		if n.Text == text {
			return n.Key
		}
	}
	return ""
}

func TestWrap_AdjacentSameIDMerges(t *testing.T) {
	tree, ix := setup(t, single)

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := Wrap(tx, doctree.TextRange("10", 0, "10", 3), "t1")
		return err
	}))
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		rest := leafWithText(tx, "lo world")
		_, err := Wrap(tx, doctree.TextRange(rest, 0, rest, 2), "t1")
		return err
	}))

	assert.Equal(t, []markView{{Text: "hello", IDs: []string{"t1"}}}, marks(t, tree))
	assert.Len(t, ix.Keys("t1"), 1)
}

func TestWrap_NestedMarkIsLifted(t *testing.T) {
	tree, ix := setup(t, single)

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := Wrap(tx, doctree.TextRange("10", 0, "10", 11), "t1")
		return err
	}))
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := Wrap(tx, doctree.TextRange("10", 3, "10", 7), "t2")
		return err
	}))

	got := marks(t, tree)
	require.Len(t, got, 3)
	assert.Equal(t, markView{Text: "hel", IDs: []string{"t1"}}, got[0])
	assert.Equal(t, "lo w", got[1].Text)
	assert.ElementsMatch(t, []string{"t1", "t2"}, got[1].IDs)
	assert.Equal(t, markView{Text: "orld", IDs: []string{"t1"}}, got[2])

	assert.Len(t, ix.Keys("t1"), 3)
	assert.Len(t, ix.Keys("t2"), 1)

	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		inner := leafWithText(tx, "lo w")
		assert.ElementsMatch(t, []string{"t1", "t2"}, GetMarkIDs(tx, inner, 1))
		assert.Equal(t, []string{"t1"}, GetMarkIDs(tx, "10", 3))
		assert.Equal(t, "hello world", MarkText(tx, ix.Keys("t1")))
		return nil
	}))
}

func TestWrap_InlineDecoratorStaysInsideOneMark(t *testing.T) {
	tree, ix := setup(t, `{"root":{"type":"root","children":[{"type":"paragraph","children":[
		{"type":"text","text":"ask ","__key":"10"},
		{"type":"mention","mentionName":"ana"},
		{"type":"text","text":" today","__key":"12"}
	]}]}}`)

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := Wrap(tx, doctree.TextRange("10", 0, "12", 6), "t1")
		return err
	}))

	require.Equal(t, []markView{{Text: "ask  today", IDs: []string{"t1"}}}, marks(t, tree))
	keys := ix.Keys("t1")
	require.Len(t, keys, 1)
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		decorators := tx.NodesOfKind(doctree.KindDecorator)
		require.Len(t, decorators, 1)
		assert.Equal(t, keys[0], decorators[0].Parent)
		assert.Len(t, tx.Children(keys[0]), 3)
		return nil
	}))
}

func TestGetMarkIDs_EndOfLeafSeesFollowingMark(t *testing.T) {
	tree, _ := setup(t, `{"root":{"type":"root","children":[{"type":"paragraph","children":[
		{"type":"text","text":"ab","__key":"10"},
		{"type":"mark","ids":["t1"],"children":[{"type":"text","text":"cd","__key":"11"}]}
	]}]}}`)

	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		assert.Equal(t, []string{"t1"}, GetMarkIDs(tx, "10", 2))
		assert.Nil(t, GetMarkIDs(tx, "10", 1))
		assert.Equal(t, []string{"t1"}, GetMarkIDs(tx, "11", 0))
		return nil
	}))
}

func TestRemoveID_UnwrapsEmptyMarks(t *testing.T) {
	tree, ix := setup(t, single)

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := Wrap(tx, doctree.TextRange("10", 0, "10", 5), "t1")
		return err
	}))
	require.True(t, ix.Has("t1"))

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		return RemoveID(tx, ix.Keys("t1"), "t1")
	}))

	assert.Empty(t, marks(t, tree))
	assert.False(t, ix.Has("t1"))
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		assert.Equal(t, "hello world", tx.TextContent(doctree.RootKey))
		return nil
	}))
}

func TestIndex_SortByAnchorPosition(t *testing.T) {
	tree, ix := setup(t, `{"root":{"type":"root","children":[
		{"type":"paragraph","children":[{"type":"text","text":"one","__key":"1"}]},
		{"type":"paragraph","children":[{"type":"text","text":"two","__key":"2"}]},
		{"type":"paragraph","children":[{"type":"text","text":"three","__key":"3"}]}
	]}}`)

	for _, w := range []struct{ key, id string }{{"3", "T3"}, {"1", "T1"}, {"2", "T2"}} {
		w := w
		require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
			_, err := Wrap(tx, doctree.TextRange(w.key, 0, w.key, 3), w.id)
			return err
		}))
	}

	ids := []string{"T3", "missing", "T1", "T2"}
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		ix.Sort(tx, ids)
		return nil
	}))
	assert.Equal(t, []string{"T1", "T2", "T3", "missing"}, ids)
}
