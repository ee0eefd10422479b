package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redline-be/internal/dto"
	"redline-be/internal/entity"
	"redline-be/internal/pkg/logger"
)

func TestExchangeMessages(t *testing.T) {
	docId := uuid.New()
	asked := time.Now().Add(-time.Second)
	msgs := exchangeMessages(dto.AgentExchangeMessage{
		DocumentId:         docId,
		UserId:             "u1",
		Prompt:             "shorter please",
		Answer:             "Done.",
		Changes:            "[]",
		Justification:      "Tighter.",
		Model:              "m",
		HasDocumentContent: true,
		AskedAt:            asked,
		AnsweredAt:         time.Now(),
	})
	require.Len(t, msgs, 2)

	assert.Equal(t, entity.AgentRoleUser, msgs[0].Role)
	assert.Equal(t, "shorter please", msgs[0].Content)
	assert.Empty(t, msgs[0].Metadata.Model)
	assert.True(t, msgs[0].Metadata.HasDocumentContent)
	assert.Equal(t, asked, msgs[0].CreatedAt)

	assert.Equal(t, entity.AgentRoleAgent, msgs[1].Role)
	assert.Equal(t, "m", msgs[1].Metadata.Model)
	assert.Equal(t, "Tighter.", msgs[1].Metadata.Justification)

	assert.Empty(t, exchangeMessages(dto.AgentExchangeMessage{DocumentId: docId}))
}

func TestConsume_StoresExchange(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })
	db := newStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer := NewConsumerService(pubSub, AgentExchangeTopic, db, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	docId := uuid.New()
	payload, err := json.Marshal(dto.AgentExchangeMessage{DocumentId: docId, UserId: "u1", Prompt: "hi", Answer: "hello"})
	require.NoError(t, err)
	publisher := NewPublisherService(AgentExchangeTopic, pubSub)
	require.NoError(t, publisher.Publish(ctx, []byte("not json")))
	require.NoError(t, publisher.Publish(ctx, payload))

	require.Eventually(t, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		return len(db.messages) == 2 && db.commits == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hi", db.messages[0].Content)
	assert.Equal(t, docId, db.messages[1].DocumentId)
}
