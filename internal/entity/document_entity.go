package entity

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id          uuid.UUID
	OwnerId     string
	Title       string
	SnapshotKey string
	Version     string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}

type DocumentUpdate struct {
	Seq        int64
	DocumentId uuid.UUID
	ClientId   string
	Data       []byte
	CreatedAt  time.Time
}
