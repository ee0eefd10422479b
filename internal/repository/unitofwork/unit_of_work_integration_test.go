package unitofwork

import (
	"context"
	"log"
	"os"
	"testing"

	"redline-be/internal/entity"
	"redline-be/internal/model"
	"redline-be/internal/repository/specification"
	"redline-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Document{}, &model.DocumentUpdate{}, &model.AgentMessage{}))
	return db
}

func TestUnitOfWork_DocumentLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	factory := NewRepositoryFactory(db)

	doc := &entity.Document{Id: uuid.New(), OwnerId: "integration", Title: "Integration"}
	uow := factory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.DocumentRepository().Create(ctx, doc))
	require.NoError(t, uow.DocumentUpdateRepository().Append(ctx, &entity.DocumentUpdate{DocumentId: doc.Id, ClientId: "a", Data: []byte{1}}))
	require.NoError(t, uow.DocumentUpdateRepository().Append(ctx, &entity.DocumentUpdate{DocumentId: doc.Id, ClientId: "b", Data: []byte{2}}))
	require.NoError(t, uow.Commit())
	assert.NoError(t, uow.Rollback())

	t.Cleanup(func() {
		cleanup := factory.NewUnitOfWork(ctx)
		_ = cleanup.DocumentUpdateRepository().DeleteByDocumentId(ctx, doc.Id)
		_ = cleanup.DocumentRepository().Delete(ctx, doc.Id)
	})

	read := factory.NewUnitOfWork(ctx)
	found, err := read.DocumentRepository().FindOne(ctx, specification.ByID{ID: doc.Id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Integration", found.Title)

	updates, err := read.DocumentUpdateRepository().FindAll(ctx, specification.ByDocumentID{DocumentID: doc.Id})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "a", updates[0].ClientId)
	assert.Less(t, updates[0].Seq, updates[1].Seq)

	// rolled back work leaves nothing behind
	rolled := factory.NewUnitOfWork(ctx)
	require.NoError(t, rolled.Begin(ctx))
	require.NoError(t, rolled.DocumentUpdateRepository().DeleteByDocumentId(ctx, doc.Id))
	require.NoError(t, rolled.Rollback())

	count, err := read.DocumentUpdateRepository().Count(ctx, specification.ByDocumentID{DocumentID: doc.Id})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	missing, err := read.DocumentRepository().FindOne(ctx, specification.ByID{ID: uuid.New()})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUnitOfWork_CommitWithoutBegin(t *testing.T) {
	uow := NewUnitOfWork(nil)
	assert.ErrorIs(t, uow.Commit(), ErrNoTx)
	assert.NoError(t, uow.Rollback())
}
