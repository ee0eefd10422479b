package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	AgentRoleUser  = "user"
	AgentRoleAgent = "agent"
)

type AgentMessageMetadata struct {
	Model              string `json:"model,omitempty"`
	HasDocumentContent bool   `json:"has_document_content"`
	ThreadId           string `json:"thread_id,omitempty"`
	Changes            string `json:"changes,omitempty"`
	Justification      string `json:"justification,omitempty"`
}

type AgentMessage struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	UserId     string
	Role       string
	Content    string
	Metadata   AgentMessageMetadata
	CreatedAt  time.Time
}
