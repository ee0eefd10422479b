package mapper

import (
	"time"

	"redline-be/internal/entity"
	"redline-be/internal/model"

	"gorm.io/gorm"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var deletedAt *time.Time
	if d.DeletedAt.Valid {
		t := d.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	return &entity.Document{
		Id:          d.Id,
		OwnerId:     d.OwnerId,
		Title:       d.Title,
		SnapshotKey: d.SnapshotKey,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   d.DeletedAt.Valid,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if d.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *d.DeletedAt, Valid: true}
	} else if d.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	return &model.Document{
		Id:          d.Id,
		OwnerId:     d.OwnerId,
		Title:       d.Title,
		SnapshotKey: d.SnapshotKey,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}

func (m *DocumentMapper) UpdateToEntity(u *model.DocumentUpdate) *entity.DocumentUpdate {
	if u == nil {
		return nil
	}
	return &entity.DocumentUpdate{
		Seq:        u.Seq,
		DocumentId: u.DocumentId,
		ClientId:   u.ClientId,
		Data:       u.Data,
		CreatedAt:  u.CreatedAt,
	}
}

func (m *DocumentMapper) UpdateToModel(u *entity.DocumentUpdate) *model.DocumentUpdate {
	if u == nil {
		return nil
	}
	return &model.DocumentUpdate{
		Seq:        u.Seq,
		DocumentId: u.DocumentId,
		ClientId:   u.ClientId,
		Data:       u.Data,
		CreatedAt:  u.CreatedAt,
	}
}

func (m *DocumentMapper) UpdatesToEntities(updates []*model.DocumentUpdate) []*entity.DocumentUpdate {
	entities := make([]*entity.DocumentUpdate, len(updates))
	for i, u := range updates {
		entities[i] = m.UpdateToEntity(u)
	}
	return entities
}
