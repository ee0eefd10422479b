package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	cfg := Load()
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, time.Hour, cfg.App.SessionTTL)
	assert.Equal(t, 24.0, cfg.Layout.LineHeight)
	assert.False(t, cfg.MinIO.UseSSL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("LAYOUT_MARGIN", "12.5")
	t.Setenv("LLM_TEMPERATURE", "not-a-number")

	cfg := Load()
	assert.True(t, cfg.App.IsProduction())
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 15*time.Minute, cfg.App.SessionTTL)
	assert.Equal(t, 7, cfg.Database.MaxOpenConns)
	assert.Equal(t, 12.5, cfg.Layout.Margin)
	assert.Equal(t, 0.2, cfg.Ai.Temperature)
}
