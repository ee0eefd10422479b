package implementation

import (
	"context"

	"redline-be/internal/entity"
	"redline-be/internal/mapper"
	"redline-be/internal/model"
	"redline-be/internal/repository/contract"
	"redline-be/internal/repository/scope"
	"redline-be/internal/repository/specification"

	"gorm.io/gorm"
)

type AgentMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AgentMessageMapper
}

func NewAgentMessageRepository(db *gorm.DB) contract.AgentMessageRepository {
	return &AgentMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewAgentMessageMapper(),
	}
}

func (r *AgentMessageRepositoryImpl) Create(ctx context.Context, msg *entity.AgentMessage) error {
	m, err := r.mapper.ToModel(msg)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*msg = *r.mapper.ToEntity(m)
	return nil
}

func (r *AgentMessageRepositoryImpl) CreateBulk(ctx context.Context, msgs []*entity.AgentMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	models := make([]*model.AgentMessage, len(msgs))
	for i, msg := range msgs {
		m, err := r.mapper.ToModel(msg)
		if err != nil {
			return err
		}
		models[i] = m
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *AgentMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AgentMessage, error) {
	var models []*model.AgentMessage
	query := applySpecifications(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *AgentMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.AgentMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
