package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/pkg/doctree"
	"redline-be/pkg/lexical"
)

const twoLeaves = `{"root":{"type":"root","children":[
	{"type":"paragraph","children":[{"type":"text","text":"hello world","__key":"10"}]},
	{"type":"paragraph","children":[{"type":"text","text":"second line","__key":"20"}]}
]}}`

func loadTree(t *testing.T) *doctree.Tree {
	t.Helper()
	state, err := lexical.Decode([]byte(twoLeaves))
	require.NoError(t, err)
	tree := doctree.New()
	require.NoError(t, tree.Update(func(tx *doctree.Tx) error { return tx.Import(state) }))
	return tree
}

func TestParseChanges(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"empty", "  ", 0, false},
		{"plain", `[{"type":"deletion","start_key":"10","start_offset":0,"end_key":"10","end_offset":5}]`, 1, false},
		{"fenced", "```json\n[{\"type\":\"addition\",\"key\":\"10\",\"offset\":0,\"text\":\"x\"}]\n```", 1, false},
		{"not json", "[{", 0, true},
		{"unknown type", `[{"type":"move"}]`, 0, true},
		{"deletion without range", `[{"type":"deletion","start_key":"10"}]`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := ParseChanges(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedProposal)
				return
			}
			require.NoError(t, err)
			assert.Len(t, changes, tt.want)
		})
	}
}

func TestGroupChanges(t *testing.T) {
	del1 := Change{Type: ChangeDeletion, StartKey: "10", EndKey: "10", EndOffset: 5}
	add1 := Change{Type: ChangeAddition, Key: "10", Offset: 5, Text: "hi"}
	add2 := Change{Type: ChangeAddition, Key: "20", Offset: 0, Text: "new "}
	del2 := Change{Type: ChangeDeletion, StartKey: "20", StartOffset: 7, EndKey: "20", EndOffset: 11}

	groups := GroupChanges([]Change{del1, add1, add2, del2})
	require.Len(t, groups, 3)

	assert.Equal(t, &del1, groups[0].Deletion)
	assert.Equal(t, &add1, groups[0].Addition)
	assert.Nil(t, groups[1].Deletion)
	assert.Equal(t, &add2, groups[1].Addition)
	assert.Equal(t, &del2, groups[2].Deletion)
	assert.Nil(t, groups[2].Addition)
}

func TestValidate(t *testing.T) {
	tree := loadTree(t)

	tests := []struct {
		name    string
		changes []Change
		wantErr bool
	}{
		{
			name: "replacement",
			changes: []Change{
				{Type: ChangeDeletion, StartKey: "10", StartOffset: 6, EndKey: "10", EndOffset: 11},
				{Type: ChangeAddition, Text: "there"},
			},
		},
		{
			name: "range across blocks",
			changes: []Change{
				{Type: ChangeDeletion, StartKey: "10", StartOffset: 6, EndKey: "20", EndOffset: 6},
			},
		},
		{
			name:    "unknown key",
			changes: []Change{{Type: ChangeDeletion, StartKey: "99", EndKey: "10", EndOffset: 2}},
			wantErr: true,
		},
		{
			name:    "offset past the end",
			changes: []Change{{Type: ChangeDeletion, StartKey: "10", EndKey: "10", EndOffset: 12}},
			wantErr: true,
		},
		{
			name:    "reversed range",
			changes: []Change{{Type: ChangeDeletion, StartKey: "20", EndKey: "10", EndOffset: 2}},
			wantErr: true,
		},
		{
			name: "overlapping deletions",
			changes: []Change{
				{Type: ChangeDeletion, StartKey: "10", StartOffset: 0, EndKey: "10", EndOffset: 6},
				{Type: ChangeDeletion, StartKey: "10", StartOffset: 4, EndKey: "10", EndOffset: 8},
			},
			wantErr: true,
		},
		{
			name:    "addition without anchor",
			changes: []Change{{Type: ChangeAddition, Text: "x"}},
			wantErr: true,
		},
		{
			name:    "empty addition",
			changes: []Change{{Type: ChangeAddition, Key: "10", Text: ""}},
			wantErr: true,
		},
		{
			name:    "paragraph key",
			changes: []Change{{Type: ChangeAddition, Key: "root", Text: "x"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tree.Read(func(tx *doctree.Tx) error {
				return Validate(tx, GroupChanges(tt.changes))
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedProposal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSortDescending(t *testing.T) {
	tree := loadTree(t)
	groups := GroupChanges([]Change{
		{Type: ChangeDeletion, StartKey: "10", StartOffset: 0, EndKey: "10", EndOffset: 2},
		{Type: ChangeAddition, Key: "20", Offset: 3, Text: "a"},
		{Type: ChangeDeletion, StartKey: "10", StartOffset: 6, EndKey: "10", EndOffset: 8},
	})

	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		SortDescending(tx, groups)
		return nil
	}))

	var got []string
	for _, g := range groups {
		k, o := g.position()
		got = append(got, k+":"+string(rune('0'+o)))
	}
	assert.Equal(t, []string{"20:3", "10:6", "10:0"}, got)
}

func TestDiffParts(t *testing.T) {
	tree := loadTree(t)
	var parts []lexical.DiffPart
	require.NoError(t, tree.Read(func(tx *doctree.Tx) error {
		parts = DiffParts(tx, []Change{
			{Type: ChangeDeletion, StartKey: "10", StartOffset: 6, EndKey: "10", EndOffset: 11},
			{Type: ChangeAddition, Text: "there"},
			{Type: ChangeDeletion, StartKey: "10", StartOffset: 6, EndKey: "20", EndOffset: 2},
			{Type: ChangeDeletion, StartKey: "99"},
		})
		return nil
	}))
	assert.Equal(t, []lexical.DiffPart{
		{Type: lexical.TypeDel, Text: "world"},
		{Type: lexical.TypeIns, Text: "there"},
		{Type: lexical.TypeDel, Text: "world"},
	}, parts)
}
