package unitofwork

import (
	"context"

	"redline-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentRepository() contract.DocumentRepository
	DocumentUpdateRepository() contract.DocumentUpdateRepository
	AgentMessageRepository() contract.AgentMessageRepository
}
