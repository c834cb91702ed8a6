package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/gemini-chat/internal/config"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/types"
)

func TestDialector_UnsupportedDriver(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestDialector_SQLiteNeedsPath(t *testing.T) {
	_, err := Dialector(config.DatabaseConfig{Driver: config.DriverSQLite})
	require.Error(t, err)
}

func TestDialector_KnownDrivers(t *testing.T) {
	for _, driver := range []string{config.DriverPostgres, config.DriverMySQL, ""} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Host: "h", Port: "1", User: "u", Password: "p", Name: "n"})
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}
}

func TestDatabaseService_PerOperationConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	svc, err := NewDatabaseService(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, svc.AutoMigrateAll(ctx))

	conn, release, err := svc.Conn(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Create(&types.ChatHistory{UserMessage: "hi", GeminiResponse: "hello"}).Error)
	release()

	// a released handle is closed
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())

	// data written through one connection is visible through the next
	conn2, release2, err := svc.Conn(ctx)
	require.NoError(t, err)
	defer release2()
	var n int64
	require.NoError(t, conn2.Model(&types.ChatHistory{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestDatabaseService_Pooled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pooled.db")
	svc, err := NewDatabaseService(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path, Pooled: true}, logger.Nop())
	require.NoError(t, err)
	defer svc.Close()

	conn, release, err := svc.Conn(context.Background())
	require.NoError(t, err)
	release()

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping(), "shared handle stays open after release")
}
