package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ixotic27/certifyhub/domains/roster/be/dedup"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/certifyhub")
	t.Setenv("ALLOWED_IMAGE_TYPES", "image/PNG, image/jpeg,")

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "local", cfg.StorageBackend)
	require.Equal(t, int64(5<<20), cfg.MaxUploadSize)
	require.Equal(t, int64(100<<20), cfg.ClubQuotaBytes)
	require.Equal(t, []string{"image/png", "image/jpeg"}, cfg.imageTypes())
	require.True(t, cfg.GlobalLookup)
	require.False(t, cfg.blankCanvasFallback())
	require.Equal(t, "firebase", cfg.AuthProvider)
	require.Equal(t, time.Minute, cfg.ClubSpaceCacheTTL)
	require.Equal(t, int32(10), cfg.DBMaxConns)
	require.Equal(t, 15*time.Second, cfg.statementTimeout())

	scope, err := cfg.dedupScope()
	require.NoError(t, err)
	require.Equal(t, dedup.ScopeClub, scope)
}

func TestBlankCanvasFollowsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/certifyhub")
	t.Setenv("APP_ENV", "development")

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.True(t, cfg.blankCanvasFallback())

	t.Setenv("BLANK_CANVAS_FALLBACK", "false")
	cfg, err = loadConfig()
	require.NoError(t, err)
	require.False(t, cfg.blankCanvasFallback())
}

func TestLoadConfigRejects(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/certifyhub")

	t.Setenv("DEDUP_SCOPE", "galaxy")
	_, err := loadConfig()
	require.Error(t, err)

	t.Setenv("DEDUP_SCOPE", "template")
	t.Setenv("APP_ENV", "staging")
	_, err = loadConfig()
	require.Error(t, err)
}

func TestStatementTimeoutZeroDisables(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/certifyhub")
	t.Setenv("DB_STATEMENT_TIMEOUT", "0s")

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.True(t, cfg.statementTimeout() < 0)
}
