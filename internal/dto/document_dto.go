package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	// Content is a serialized editor state. Empty starts a blank document.
	Content json.RawMessage `json:"content"`
}

type CreateDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type ShowDocumentResponse struct {
	Id        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	OwnerId   string          `json:"owner_id"`
	Version   string          `json:"version"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at"`
}

type SocketTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AgentMessageResponse struct {
	Id        uuid.UUID              `json:"id"`
	UserId    string                 `json:"user_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// PatchMessage is broadcast to a room after every committed change.
type PatchMessage struct {
	Type    string          `json:"type"`
	Version string          `json:"version"`
	Parents []string        `json:"parents"`
	Patch   json.RawMessage `json:"patch"`
}

// AgentExchangeMessage is queued once an agent answer is complete.
type AgentExchangeMessage struct {
	DocumentId         uuid.UUID `json:"document_id"`
	UserId             string    `json:"user_id"`
	ThreadId           string    `json:"thread_id"`
	Prompt             string    `json:"prompt"`
	Answer             string    `json:"answer"`
	Justification      string    `json:"justification"`
	Changes            string    `json:"changes"`
	Model              string    `json:"model"`
	HasDocumentContent bool      `json:"has_document_content"`
	AskedAt            time.Time `json:"asked_at"`
	AnsweredAt         time.Time `json:"answered_at"`
}
