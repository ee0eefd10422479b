package service

import (
	"context"
	"encoding/json"

	"redline-be/internal/dto"
	"redline-be/internal/entity"
	"redline-be/internal/pkg/logger"
	"redline-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// AgentExchangeTopic carries finished agent answers to the consumer.
const AgentExchangeTopic = "agent.exchanges"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage stores the user turn and the agent turn of one exchange.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.AgentExchangeMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal message", map[string]interface{}{"error": err})
		msg.Ack() // redelivery would not help
		return
	}

	messages := exchangeMessages(payload)
	if len(messages) == 0 {
		msg.Ack()
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		cs.logger.Error("ConsumerService", "Failed to begin transaction", map[string]interface{}{"error": err})
		msg.Nack()
		return
	}
	defer uow.Rollback()

	if err := uow.AgentMessageRepository().CreateBulk(ctx, messages); err != nil {
		cs.logger.Error("ConsumerService", "Failed to store agent messages", map[string]interface{}{"document_id": payload.DocumentId, "error": err})
		msg.Nack()
		return
	}
	if err := uow.Commit(); err != nil {
		cs.logger.Error("ConsumerService", "Failed to commit agent messages", map[string]interface{}{"document_id": payload.DocumentId, "error": err})
		msg.Nack()
		return
	}

	cs.logger.Info("ConsumerService", "Agent exchange stored", map[string]interface{}{"document_id": payload.DocumentId, "messages": len(messages)})
	msg.Ack()
}

// exchangeMessages turns one exchange into its history rows. An empty prompt
// or answer produces no row for that side.
func exchangeMessages(p dto.AgentExchangeMessage) []*entity.AgentMessage {
	var out []*entity.AgentMessage
	if p.Prompt != "" {
		out = append(out, &entity.AgentMessage{
			Id:         uuid.New(),
			DocumentId: p.DocumentId,
			UserId:     p.UserId,
			Role:       entity.AgentRoleUser,
			Content:    p.Prompt,
			Metadata: entity.AgentMessageMetadata{
				HasDocumentContent: p.HasDocumentContent,
				ThreadId:           p.ThreadId,
			},
			CreatedAt: p.AskedAt,
		})
	}
	if p.Answer != "" || p.Changes != "" {
		out = append(out, &entity.AgentMessage{
			Id:         uuid.New(),
			DocumentId: p.DocumentId,
			UserId:     p.UserId,
			Role:       entity.AgentRoleAgent,
			Content:    p.Answer,
			Metadata: entity.AgentMessageMetadata{
				Model:              p.Model,
				HasDocumentContent: p.HasDocumentContent,
				ThreadId:           p.ThreadId,
				Changes:            p.Changes,
				Justification:      p.Justification,
			},
			CreatedAt: p.AnsweredAt,
		})
	}
	return out
}
