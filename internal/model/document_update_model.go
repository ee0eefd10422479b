package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentUpdate is one entry of a document's replicated update log.
type DocumentUpdate struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	DocumentId uuid.UUID `gorm:"type:uuid;not null;index:idx_document_updates_doc_seq,priority:1"`
	ClientId   string    `gorm:"type:text"`
	Data       []byte    `gorm:"type:bytea;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_document_updates_doc_seq,priority:2"`
}

func (DocumentUpdate) TableName() string {
	return "document_updates"
}
