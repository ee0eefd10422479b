package events

import "time"

const (
	TypeThreadCreated   = "THREAD_CREATED"
	TypeChangeAccepted  = "CHANGE_ACCEPTED"
	TypeChangeRejected  = "CHANGE_REJECTED"
	TypeProposalApplied = "PROPOSAL_APPLIED"
)

func NewThreadCreated(documentID, threadID, userID string) BaseEvent {
	return BaseEvent{
		Type: TypeThreadCreated,
		Data: map[string]interface{}{
			"document_id": documentID,
			"thread_id":   threadID,
			"user_id":     userID,
		},
		OccurredAt: time.Now(),
	}
}

// NewChangeResolved builds CHANGE_ACCEPTED or CHANGE_REJECTED depending on
// accepted.
func NewChangeResolved(accepted bool, documentID, containerKey string, threadIDs []string, userID string) BaseEvent {
	typ := TypeChangeRejected
	if accepted {
		typ = TypeChangeAccepted
	}
	if threadIDs == nil {
		threadIDs = []string{}
	}
	return BaseEvent{
		Type: typ,
		Data: map[string]interface{}{
			"document_id":   documentID,
			"container_key": containerKey,
			"thread_ids":    threadIDs,
			"user_id":       userID,
		},
		OccurredAt: time.Now(),
	}
}

func NewProposalApplied(documentID string, threadIDs []string, userID string) BaseEvent {
	if threadIDs == nil {
		threadIDs = []string{}
	}
	return BaseEvent{
		Type: TypeProposalApplied,
		Data: map[string]interface{}{
			"document_id": documentID,
			"thread_ids":  threadIDs,
			"user_id":     userID,
		},
		OccurredAt: time.Now(),
	}
}
