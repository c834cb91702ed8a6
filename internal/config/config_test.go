package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

var allKeys = []string{
	"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_MODELS", "GEMINI_TIMEOUT_SECONDS",
	"DB_DRIVER", "DB_HOST", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_PORT", "DB_PATH", "DB_POOLED",
	"SESSION_SECRET", "SESSION_TTL", "SESSION_BACKEND", "REDIS_ADDRESS", "REDIS_PASSWORD",
	"EXPORT_BUCKET", "SENDGRID_API_KEY", "CORS_ORIGINS", "PORT", "LOG_MODE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_ReportsEveryMissingKey(t *testing.T) {
	clearEnv(t)
	_, err := Load(logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfigMissing))

	var cfgErr *errs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.ElementsMatch(t, []string{"GEMINI_API_KEY", "DB_HOST", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_PORT"}, cfgErr.Missing)
}

func TestLoad_PostgresDefaults(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"GEMINI_API_KEY": "k",
		"DB_HOST":        "localhost",
		"DB_NAME":        "chat",
		"DB_USER":        "u",
		"DB_PASSWORD":    "p",
		"DB_PORT":        "5432",
	})
	cfg, err := Load(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.False(t, cfg.Database.Pooled)
	assert.Equal(t, DefaultModels, cfg.Gemini.Models)
	assert.Zero(t, cfg.Gemini.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 5, cfg.Export.DefaultLimit)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoad_SQLiteNeedsOnlyPath(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"GEMINI_API_KEY":         "k",
		"DB_DRIVER":              "SQLite",
		"DB_PATH":                "/tmp/chat.db",
		"GEMINI_MODELS":          "gemini-2.0-flash, gemini-1.5-pro,,",
		"GEMINI_TIMEOUT_SECONDS": "30",
		"DB_POOLED":              "true",
	})
	cfg, err := Load(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.Database.Pooled)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-pro"}, cfg.Gemini.Models)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
}

func TestLoad_RedisBackendNeedsAddress(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"GEMINI_API_KEY":  "k",
		"DB_DRIVER":       "sqlite",
		"DB_PATH":         "x.db",
		"SESSION_BACKEND": "redis",
	})
	_, err := Load(logger.Nop())
	var cfgErr *errs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"REDIS_ADDRESS"}, cfgErr.Missing)
}

func TestRequireDatabase_IgnoresModelKey(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{"DB_DRIVER": "sqlite", "DB_PATH": "x.db"})
	cfg := Read(logger.Nop())
	assert.NoError(t, cfg.RequireDatabase())
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_API_KEY=from-file\nPORT=9000\n"), 0o600))
	t.Setenv("PORT", "7000")

	require.NoError(t, LoadDotEnv(logger.Nop(), path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("GEMINI_API_KEY"))
	assert.Equal(t, "7000", os.Getenv("PORT"))
}
