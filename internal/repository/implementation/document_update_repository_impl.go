package implementation

import (
	"context"

	"redline-be/internal/entity"
	"redline-be/internal/mapper"
	"redline-be/internal/model"
	"redline-be/internal/repository/contract"
	"redline-be/internal/repository/scope"
	"redline-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentUpdateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentUpdateRepository(db *gorm.DB) contract.DocumentUpdateRepository {
	return &DocumentUpdateRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentUpdateRepositoryImpl) Append(ctx context.Context, update *entity.DocumentUpdate) error {
	m := r.mapper.UpdateToModel(update)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*update = *r.mapper.UpdateToEntity(m)
	return nil
}

func (r *DocumentUpdateRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentUpdate, error) {
	var models []*model.DocumentUpdate
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.InLogOrder), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.UpdatesToEntities(models), nil
}

func (r *DocumentUpdateRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.DocumentUpdate{}).Error
}

func (r *DocumentUpdateRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.DocumentUpdate{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
