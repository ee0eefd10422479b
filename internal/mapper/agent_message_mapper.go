package mapper

import (
	"encoding/json"

	"redline-be/internal/entity"
	"redline-be/internal/model"

	"gorm.io/datatypes"
)

type AgentMessageMapper struct{}

func NewAgentMessageMapper() *AgentMessageMapper {
	return &AgentMessageMapper{}
}

func (m *AgentMessageMapper) ToEntity(msg *model.AgentMessage) *entity.AgentMessage {
	if msg == nil {
		return nil
	}

	var meta entity.AgentMessageMetadata
	if len(msg.Metadata) > 0 {
		// a broken metadata blob must not hide the message itself
		_ = json.Unmarshal(msg.Metadata, &meta)
	}

	return &entity.AgentMessage{
		Id:         msg.Id,
		DocumentId: msg.DocumentId,
		UserId:     msg.UserId,
		Role:       msg.Role,
		Content:    msg.Content,
		Metadata:   meta,
		CreatedAt:  msg.CreatedAt,
	}
}

func (m *AgentMessageMapper) ToModel(msg *entity.AgentMessage) (*model.AgentMessage, error) {
	if msg == nil {
		return nil, nil
	}

	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, err
	}

	return &model.AgentMessage{
		Id:         msg.Id,
		DocumentId: msg.DocumentId,
		UserId:     msg.UserId,
		Role:       msg.Role,
		Content:    msg.Content,
		Metadata:   datatypes.JSON(meta),
		CreatedAt:  msg.CreatedAt,
	}, nil
}

func (m *AgentMessageMapper) ToEntities(msgs []*model.AgentMessage) []*entity.AgentMessage {
	entities := make([]*entity.AgentMessage, len(msgs))
	for i, msg := range msgs {
		entities[i] = m.ToEntity(msg)
	}
	return entities
}
