package contract

import (
	"context"

	"redline-be/internal/entity"
	"redline-be/internal/repository/specification"
)

type AgentMessageRepository interface {
	Create(ctx context.Context, msg *entity.AgentMessage) error
	CreateBulk(ctx context.Context, msgs []*entity.AgentMessage) error
	// FindAll returns messages oldest first.
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AgentMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
