package agent

import (
	"encoding/json"
	"strings"
)

// Sender tags every frame the agent produces.
const Sender = "PAIRDRAFT"

// AuthorAI is the full name the client gives agent turns in the history.
const AuthorAI = "ai"

// Inbound is a client message on the agent socket.
type Inbound struct {
	DocumentID          string         `json:"document_id"`
	Message             string         `json:"message"`
	DocumentText        string         `json:"document_text,omitempty"`
	ThreadID            string         `json:"thread_id,omitempty"`
	ActiveMarkIDs       MarkIDs        `json:"active_mark_ids,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversation_history,omitempty"`
	Stream              *bool          `json:"stream,omitempty"`
}

// IsHello reports whether the message only announces the document and must
// not reach the model.
func (in Inbound) IsHello() bool {
	return in.Message == "" && in.DocumentText == "" && len(in.ConversationHistory) == 0
}

// Streaming defaults to true.
func (in Inbound) Streaming() bool {
	return in.Stream == nil || *in.Stream
}

// MarkIDs accepts either a JSON array or a comma separated string.
type MarkIDs []string

func (m *MarkIDs) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = nil
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			*m = append(*m, id)
		}
	}
	return nil
}

type HistoryAuthor struct {
	ID       string `json:"id,omitempty"`
	FullName string `json:"full_name"`
}

// HistoryEntry is a previous turn of the conversation as the client keeps it.
type HistoryEntry struct {
	Content       string         `json:"content"`
	AuthorDetails *HistoryAuthor `json:"authorDetails,omitempty"`
}

// StreamFrame carries a piece of the visible answer.
type StreamFrame struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	Streaming bool   `json:"streaming"`
	ThreadID  string `json:"thread_id"`
}

// FinalFrame closes an answer.
type FinalFrame struct {
	Message       string `json:"message"`
	Sender        string `json:"sender"`
	Streaming     bool   `json:"streaming"`
	Changes       string `json:"changes"`
	Justification string `json:"justification"`
	ThreadID      string `json:"thread_id"`
	Diff          string `json:"diff,omitempty"`
}

type ProgressFrame struct {
	Progress int `json:"progress"`
}

type ErrorFrame struct {
	Error string `json:"error"`
}

func NewStreamFrame(text, threadID string) StreamFrame {
	return StreamFrame{Message: text, Sender: Sender, Streaming: true, ThreadID: threadID}
}

func NewFinalFrame(res Result, threadID string) FinalFrame {
	return FinalFrame{
		Sender:        Sender,
		Changes:       res.Changes,
		Justification: res.Justification,
		ThreadID:      threadID,
	}
}

// NewProgressFrame clamps p to 0..100.
func NewProgressFrame(p int) ProgressFrame {
	return ProgressFrame{Progress: min(100, max(0, p))}
}
