package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConfigDSN(t *testing.T) {
	cfg := GormConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "redline", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=redline port=5432 sslmode=disable", cfg.DSN())
}

func TestOpen_RejectsBadDSN(t *testing.T) {
	_, err := Open("", DefaultPool)
	assert.Error(t, err)

	_, err = Open("postgres://%zz", DefaultPool)
	assert.ErrorContains(t, err, "invalid connection string")
}

func TestOpen_Integration(t *testing.T) {
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("DB_CONNECTION_STRING not set")
	}
	db, err := NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
}
