package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/pkg/llm"
)

func TestBuildMessages(t *testing.T) {
	in := Inbound{
		DocumentID:    "doc-1",
		Message:       "tighten the intro",
		ActiveMarkIDs: MarkIDs{"t1", "t2"},
		ConversationHistory: []HistoryEntry{
			{Content: "what do you think?", AuthorDetails: &HistoryAuthor{FullName: "Ada"}},
			{Content: "it is long", AuthorDetails: &HistoryAuthor{FullName: AuthorAI}},
			{Content: "   "},
		},
	}

	msgs := BuildMessages(in, "⟦10⟧hello")
	require.Len(t, msgs, 6)

	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, JustificationDelimiter)
	assert.Contains(t, msgs[0].Content, ChangesDelimiter)
	assert.Contains(t, msgs[0].Content, "comment threads")

	assert.Equal(t, "FULL DOCUMENT (for reference only):\n\"\"\"\n⟦10⟧hello\n\"\"\"", msgs[1].Content)
	assert.Equal(t, "ACTIVE MARK IDS:\n\"\"\"\nt1, t2\n\"\"\"", msgs[2].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "what do you think?"}, msgs[3])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "it is long"}, msgs[4])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "tighten the intro"}, msgs[5])
}

func TestBuildMessages_NoContext(t *testing.T) {
	msgs := BuildMessages(Inbound{Message: "hi"}, "")
	require.Len(t, msgs, 2)
	assert.NotContains(t, msgs[0].Content, "comment threads")
}

func TestInbound(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		hello     bool
		streaming bool
		marks     MarkIDs
	}{
		{"hello", `{"document_id":"d"}`, true, true, nil},
		{"message", `{"document_id":"d","message":"m","stream":false}`, false, false, nil},
		{"mark list", `{"message":"m","active_mark_ids":["a","b"]}`, false, true, MarkIDs{"a", "b"}},
		{"mark string", `{"message":"m","active_mark_ids":"a, b,"}`, false, true, MarkIDs{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in Inbound
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &in))
			assert.Equal(t, tt.hello, in.IsHello())
			assert.Equal(t, tt.streaming, in.Streaming())
			assert.Equal(t, tt.marks, in.ActiveMarkIDs)
		})
	}
}

func TestFrames(t *testing.T) {
	data, err := json.Marshal(NewFinalFrame(Result{Changes: "[]", Justification: "why"}, "t1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"","sender":"PAIRDRAFT","streaming":false,"changes":"[]","justification":"why","thread_id":"t1"}`, string(data))

	assert.Equal(t, 100, NewProgressFrame(140).Progress)
	assert.Equal(t, 0, NewProgressFrame(-3).Progress)
}

func TestAddMarkText(t *testing.T) {
	msgs := AddMarkText(BuildMessages(Inbound{Message: "shorter?"}, ""), "the marked words")
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[1].Content, "the marked words")
	assert.Equal(t, "shorter?", msgs[2].Content)

	same := BuildMessages(Inbound{Message: "hi"}, "")
	assert.Equal(t, same, AddMarkText(same, "  "))
}
