package contract

import (
	"context"

	"redline-be/internal/entity"
	"redline-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentUpdateRepository interface {
	Append(ctx context.Context, update *entity.DocumentUpdate) error
	// FindAll returns entries in log order.
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentUpdate, error)
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
