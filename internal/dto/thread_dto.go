package dto

import (
	"redline-be/pkg/agent"
	"redline-be/pkg/layout"
	"redline-be/pkg/thread"
)

type CreateThreadRequest struct {
	Content      string `json:"content"`
	AnchorKey    string `json:"anchor_key" validate:"required"`
	AnchorOffset int    `json:"anchor_offset" validate:"min=0"`
	FocusKey     string `json:"focus_key" validate:"required"`
	FocusOffset  int    `json:"focus_offset" validate:"min=0"`
}

type AddCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

type CommentResponse struct {
	thread.Comment
	Disabled bool `json:"disabled"`
}

type ThreadResponse struct {
	Id       string            `json:"id"`
	Layer    string            `json:"layer"`
	Resolved bool              `json:"resolved"`
	Comments []CommentResponse `json:"comments"`
}

type ListThreadsResponse struct {
	Threads []ThreadResponse `json:"threads"`
	Layout  []layout.Output  `json:"layout"`
}

type ResolveChangeResponse struct {
	ContainerKey string   `json:"container_key"`
	Action       string   `json:"action"`
	Resolved     int      `json:"resolved"`
	ThreadIds    []string `json:"thread_ids"`
}

type ApplyProposalRequest struct {
	Changes       []agent.Change `json:"changes" validate:"required,min=1"`
	Justification string         `json:"justification"`
}

type ApplyProposalResponse struct {
	ThreadIds []string `json:"thread_ids"`
}
