package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/pkg/replica"
)

func TestStore_InsertAtHeadAndComment(t *testing.T) {
	doc := replica.NewDoc()
	store := NewStore(doc)

	events := 0
	store.Observe(func(replica.Event) { events++ })

	first, second := NewThread(""), NewThread("review")
	require.NoError(t, store.Insert(first, 0))
	require.NoError(t, store.Insert(second, 0))

	threads := store.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, second.ID, threads[0].ID)
	assert.Equal(t, LayerBase, threads[1].Layer)

	c := NewComment("looks off", AuthorDetails{ID: "u1", FullName: "Ada"})
	require.NoError(t, store.AppendComment(first.ID, c))

	got, idx, ok := store.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "looks off", got.Comments[0].Content)
	assert.Equal(t, 3, events)

	assert.Equal(t, []string{second.ID}, store.EmptyThreadIDs())

	require.NoError(t, store.DeleteComment(first.ID, c.ID))
	assert.ErrorIs(t, store.DeleteComment(first.ID, c.ID), ErrCommentNotFound)
	assert.ErrorIs(t, store.AppendComment("nope", c), ErrThreadNotFound)

	require.NoError(t, store.Delete(second.ID))
	require.NoError(t, store.Delete(second.ID))
	assert.Len(t, store.Threads(), 1)
}

func TestDisplayComments_MergesPrivateByTimestamp(t *testing.T) {
	th := Thread{ID: "t1", Layer: LayerBase, Comments: []Comment{
		{ID: "a", Timestamp: 10},
		{ID: "c", Timestamp: 30},
	}}
	local := NewLocalComments()
	local.Add("t1", Comment{ID: "b", Timestamp: 20})
	local.Add("t2", Comment{ID: "z", Timestamp: 1})

	merged := DisplayComments(th, local)
	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "b", merged[1].ID)
	assert.True(t, merged[1].Private)
	assert.Equal(t, "c", merged[2].ID)
}

func TestLayerRules(t *testing.T) {
	base := Thread{ID: "t1", Layer: LayerBase}
	review := Thread{ID: "t2", Layer: "review"}

	tests := []struct {
		name     string
		visible  string
		th       Thread
		c        Comment
		private  bool
		disabled bool
	}{
		{name: "base viewer on base thread", visible: LayerBase, th: base},
		{name: "review viewer on base thread", visible: "review", th: base, private: true, disabled: true},
		{name: "review viewer own private comment", visible: "review", th: base, c: Comment{Private: true}, private: true},
		{name: "review viewer on review thread", visible: "review", th: review},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.private, IsPrivate(tt.th, tt.visible))
			assert.Equal(t, tt.disabled, CommentDisabled(tt.visible, tt.th, tt.c))
		})
	}
}
