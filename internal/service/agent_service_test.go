package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/internal/dto"
	"redline-be/internal/pkg/logger"
	"redline-be/pkg/agent"
)

func newAgent(t *testing.T, provider *scriptedLLM) (IAgentService, *fixture, *recordedPayloads) {
	t.Helper()
	f := newFixture(t)
	queue := &recordedPayloads{}
	return NewAgentService(f.svc, provider, "test-model", 0.2, queue, logger.NewNopLogger()), f, queue
}

func collect(frames *[]map[string]interface{}) FrameSender {
	return func(v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*frames = append(*frames, m)
		return nil
	}
}

func TestHandle_HelloIsSilent(t *testing.T) {
	provider := &scriptedLLM{chunks: []string{"never"}}
	svc, _, queue := newAgent(t, provider)

	var frames []map[string]interface{}
	require.NoError(t, svc.Handle(context.Background(), "u1", agent.Inbound{DocumentID: "whatever"}, collect(&frames)))
	assert.Empty(t, frames)
	assert.Nil(t, provider.history)
	assert.Empty(t, queue.payloads)
}

func TestHandle_StreamsAndProposes(t *testing.T) {
	provider := &scriptedLLM{chunks: []string{
		"Try a warmer ",
		"greeting. [[JUSTIFI",
		"CATION]]: Friendlier opening. [[CHANGES]]: ",
		`[{"type":"deletion","start_key":"10","start_offset":6,"end_key":"10","end_offset":11},{"type":"addition","text":"there"}]`,
	}}
	svc, f, queue := newAgent(t, provider)
	id := f.create(t)

	var frames []map[string]interface{}
	err := svc.Handle(context.Background(), "u1", agent.Inbound{
		DocumentID: id.String(),
		Message:    "make it warmer",
		ThreadID:   "t-1",
	}, collect(&frames))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(frames), 4)
	assert.Equal(t, float64(0), frames[0]["progress"])

	var streamed string
	for _, fr := range frames {
		if fr["streaming"] == true {
			assert.Equal(t, agent.Sender, fr["sender"])
			assert.Equal(t, "t-1", fr["thread_id"])
			streamed += fr["message"].(string)
		}
	}
	assert.Equal(t, "Try a warmer greeting. ", streamed)

	assert.Equal(t, float64(100), frames[len(frames)-2]["progress"])
	final := frames[len(frames)-1]
	assert.Equal(t, false, final["streaming"])
	assert.Equal(t, "Friendlier opening.", final["justification"])
	assert.Contains(t, final["changes"], `"deletion"`)
	assert.Contains(t, final["diff"], "world")
	assert.Contains(t, final["diff"], "there")

	// the model saw the document with its keys
	require.NotEmpty(t, provider.history)
	assert.Contains(t, provider.history[1].Content, "hello world")

	require.Len(t, queue.payloads, 1)
	var exchange dto.AgentExchangeMessage
	require.NoError(t, json.Unmarshal(queue.payloads[0], &exchange))
	assert.Equal(t, id, exchange.DocumentId)
	assert.Equal(t, "make it warmer", exchange.Prompt)
	assert.Equal(t, "test-model", exchange.Model)
	assert.False(t, exchange.HasDocumentContent)
}

func TestHandle_NonStreaming(t *testing.T) {
	provider := &scriptedLLM{chunks: []string{"All good."}}
	svc, f, _ := newAgent(t, provider)
	id := f.create(t)
	off := false

	var frames []map[string]interface{}
	require.NoError(t, svc.Handle(context.Background(), "u1", agent.Inbound{
		DocumentID:   id.String(),
		Message:      "review",
		DocumentText: "client text",
		Stream:       &off,
	}, collect(&frames)))

	for _, fr := range frames {
		assert.NotEqual(t, true, fr["streaming"])
	}
	final := frames[len(frames)-1]
	assert.Equal(t, "All good.", final["message"])
	assert.Equal(t, "", final["changes"])
	assert.NotContains(t, final, "diff")
	assert.Contains(t, provider.history[1].Content, "client text")
}

func TestHandle_Errors(t *testing.T) {
	provider := &scriptedLLM{err: errors.New("upstream down")}
	svc, f, queue := newAgent(t, provider)
	id := f.create(t)

	var frames []map[string]interface{}
	err := svc.Handle(context.Background(), "u1", agent.Inbound{DocumentID: "not-a-uuid", Message: "hi"}, collect(&frames))
	assert.ErrorIs(t, err, ErrInvalidDocumentId)

	err = svc.Handle(context.Background(), "u1", agent.Inbound{DocumentID: id.String(), Message: "hi"}, collect(&frames))
	assert.ErrorIs(t, err, ErrAgentFailed)
	assert.Empty(t, queue.payloads)
}
