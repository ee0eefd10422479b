package trackchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/pkg/doctree"
	"redline-be/pkg/lexical"
)

func load(t *testing.T, js string) *doctree.Tree {
	t.Helper()
	state, err := lexical.Decode([]byte(js))
	require.NoError(t, err)
	tree := doctree.New()
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error { return tx.Import(state) }))
	return tree
}

func paragraph(children string) string {
	return `{"root":{"type":"root","children":[{"type":"paragraph","children":[` + children + `]}]}}`
}

// shape renders the first paragraph as kind:text pairs.
func shape(t *testing.T, tree *doctree.Tree) []string {
	t.Helper()
	var out []string
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		para := tx.Root().Children[0]
		for _, c := range tx.Children(para) {
			out = append(out, c.Kind.String()+":"+tx.TextContent(c.Key))
		}
		return nil
	}))
	return out
}

func TestApplyDeletion_CoalescesAdjacentLeaves(t *testing.T) {
	tree := load(t, paragraph(`
		{"type":"text","text":"hello ","__key":"10"},
		{"type":"text","text":"bold","format":1,"__key":"11"},
		{"type":"text","text":" tail","__key":"12"}`))

	var del string
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		var err error
		del, err = ApplyDeletion(tx, doctree.TextRange("10", 2, "11", 4))
		return err
	}))

	require.NotEmpty(t, del)
	assert.Equal(t, []string{"text:he", "deletion:llo bold", "text: tail"}, shape(t, tree))

	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		children := tx.Children(del)
		require.Len(t, children, 2)
		assert.Equal(t, 0, children[0].Format)
		assert.Equal(t, 1, children[1].Format)

		sel, ok := tx.Selection()
		require.True(t, ok)
		assert.Equal(t, doctree.Caret("10", 0), sel)
		return nil
	}))
}

func TestApplyDeletion_DropsInsertionInRange(t *testing.T) {
	tree := load(t, paragraph(`
		{"type":"text","text":"A","__key":"10"},
		{"type":"ins","id":"c1","children":[{"type":"text","text":"B","__key":"11"}]}`))

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := ApplyDeletion(tx, doctree.TextRange("10", 0, "11", 1))
		return err
	}))

	assert.Equal(t, []string{"deletion:A"}, shape(t, tree))
}

func TestApplyDeletion_ExistingDeletionSplitsRuns(t *testing.T) {
	tree := load(t, paragraph(`
		{"type":"text","text":"a","__key":"10"},
		{"type":"del","children":[{"type":"text","text":"b","__key":"11"}]},
		{"type":"text","text":"c","__key":"12"}`))

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := ApplyDeletion(tx, doctree.TextRange("10", 0, "12", 1))
		return err
	}))

	assert.Equal(t, []string{"deletion:a", "deletion:b", "deletion:c"}, shape(t, tree))
}

func TestApplyDeletion_StaleAnchorIsNoop(t *testing.T) {
	tree := load(t, paragraph(`{"type":"text","text":"abc","__key":"10"}`))

	var del string
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		var err error
		del, err = ApplyDeletion(tx, doctree.TextRange("gone", 0, "10", 2))
		return err
	}))
	assert.Empty(t, del)
	assert.Equal(t, []string{"text:abc"}, shape(t, tree))
}

func TestReject_RestoresOriginalLeaf(t *testing.T) {
	tree := load(t, paragraph(`{"type":"text","text":"hello","format":3,"style":"color: red;","__key":"10"}`))

	var del string
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		var err error
		del, err = ApplyDeletion(tx, doctree.TextRange("10", 0, "10", 5))
		return err
	}))
	assert.Equal(t, []string{"deletion:hello"}, shape(t, tree))

	var res Resolution
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		var err error
		res, err = Reject(tx, del)
		return err
	}))
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, []string{"text:hello"}, shape(t, tree))

	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		leaf := tx.FirstLeaf(tx.Root().Key)
		assert.Equal(t, 3, leaf.Format)
		assert.Equal(t, "color: red;", leaf.Style)
		assert.NotEqual(t, "10", leaf.Key)
		return nil
	}))
}

type recordingLogger struct {
	calls []Resolution
}

func (l *recordingLogger) LogResolution(_ context.Context, res Resolution, _ Author) error {
	l.calls = append(l.calls, res)
	return nil
}

func TestResolver_AcceptIsIdempotent(t *testing.T) {
	tree := load(t, paragraph(`
		{"type":"mark","ids":["t1"],"children":[
			{"type":"del","children":[{"type":"text","text":"thirty","__key":"10"}]},
			{"type":"ins","id":"c1","children":[{"type":"text","text":"sixty","__key":"11"}]}
		]},
		{"type":"text","text":" days","__key":"12"}`))

	var markKey string
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		markKey = tx.Parent(tx.Parent("10").Key).Key
		return nil
	}))

	logger := &recordingLogger{}
	r := NewResolver(tree, logger)
	author := Author{ID: "u1", FullName: "Ada"}

	res, err := r.Accept(context.Background(), markKey, author)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Resolved)
	assert.Equal(t, []string{"t1"}, res.ThreadIDs)
	assert.Equal(t, []string{"mark:sixty", "text: days"}, shape(t, tree))

	res, err = r.Accept(context.Background(), markKey, author)
	require.NoError(t, err)
	assert.Zero(t, res.Resolved)
	require.Len(t, logger.calls, 1)
	assert.Equal(t, ActionApprove, logger.calls[0].Action)

	res, err = r.Reject(context.Background(), "missing", author)
	require.NoError(t, err)
	assert.Zero(t, res.Resolved)
}

func TestResolver_RejectMarkGroup(t *testing.T) {
	tree := load(t, paragraph(`
		{"type":"mark","ids":["t1"],"children":[
			{"type":"del","children":[{"type":"text","text":"thirty","__key":"10"}]},
			{"type":"ins","id":"c1","children":[{"type":"text","text":"sixty","__key":"11"}]}
		]}`))

	var markKey string
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		markKey = tx.Parent(tx.Parent("10").Key).Key
		return nil
	}))

	res, err := NewResolver(tree, nil).Reject(context.Background(), markKey, Author{})
	require.NoError(t, err)
	assert.Equal(t, ActionReject, res.Action)
	assert.Equal(t, []string{"mark:thirty"}, shape(t, tree))
}

func TestApplyInsertion(t *testing.T) {
	tree := load(t, paragraph(`
		{"type":"del","children":[{"type":"text","text":"old","__key":"10"}]},
		{"type":"text","text":" end","__key":"11"}`))

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		key, err := ApplyInsertion(tx, "", "10")
		assert.Empty(t, key)
		if err != nil {
			return err
		}
		key, err = ApplyInsertion(tx, "new", "10")
		assert.NotEmpty(t, key)
		return err
	}))

	assert.Equal(t, []string{"deletion:old", "insertion:new", "text: end"}, shape(t, tree))
}

func TestEraseBackward(t *testing.T) {
	tree := load(t, paragraph(`{"type":"text","text":"abc","__key":"10"}`))

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		_, err := EraseBackward(tx, doctree.Point{Key: "10", Offset: 3})
		return err
	}))
	assert.Equal(t, []string{"text:ab", "deletion:c"}, shape(t, tree))

	require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
		sel, ok := tx.Selection()
		require.True(t, ok)
		assert.Equal(t, doctree.Caret("10", 2), sel)
		_, err := EraseBackward(tx, sel.Anchor)
		return err
	}))
	assert.Equal(t, []string{"text:a", "deletion:b", "deletion:c"}, shape(t, tree))
}

func TestApplyInsertionAt(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		want   []string
	}{
		{"start", 0, []string{"insertion:X", "text:hello"}},
		{"middle", 2, []string{"text:he", "insertion:X", "text:llo"}},
		{"end", 5, []string{"text:hello", "insertion:X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := load(t, paragraph(`{"type":"text","text":"hello","__key":"10"}`))
			require.NoError(t, tree.Update(func(tx *doctree.Tx) error {
				_, err := ApplyInsertionAt(tx, "X", doctree.Point{Key: "10", Offset: tt.offset})
				return err
			}))
			assert.Equal(t, tt.want, shape(t, tree))
		})
	}

	t.Run("out of range", func(t *testing.T) {
		tree := load(t, paragraph(`{"type":"text","text":"hello","__key":"10"}`))
		err := tree.Update(func(tx *doctree.Tx) error {
			_, err := ApplyInsertionAt(tx, "X", doctree.Point{Key: "10", Offset: 9})
			return err
		})
		assert.ErrorIs(t, err, doctree.ErrOffsetOutOfRange)
	})
}
