package repos

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/slotter-org/gemini-chat/internal/config"
	"github.com/slotter-org/gemini-chat/internal/db"
	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

func newTestRepo(t *testing.T) ChatHistoryRepo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	svc, err := db.NewDatabaseService(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, svc.AutoMigrateAll(context.Background()))
	return NewChatHistoryRepo(svc, logger.Nop())
}

type brokenConnector struct{}

func (brokenConnector) Conn(ctx context.Context) (*gorm.DB, func(), error) {
	return nil, nil, errors.New("connection refused")
}

func TestChatHistoryRepo_RecordThenRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	row, err := repo.Record(ctx, "what is go?", "a language")
	require.NoError(t, err)
	assert.NotZero(t, row.ID)

	recent, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "what is go?", recent[0].UserMessage)
	assert.Equal(t, "a language", recent[0].GeminiResponse)
}

func TestChatHistoryRepo_RecentIsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := repo.Record(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		require.NoError(t, err)
	}

	recent, err := repo.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	for i, row := range recent {
		assert.Equal(t, fmt.Sprintf("q%d", 6-i), row.UserMessage)
	}
	for i := 1; i < len(recent); i++ {
		assert.Greater(t, recent[i-1].ID, recent[i].ID)
	}

	all, err := repo.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	none, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChatHistoryRepo_PurgeAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := repo.Record(ctx, "u", "r")
		require.NoError(t, err)
	}

	deleted, err := repo.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	for _, n := range []int{1, 5, 50} {
		recent, err := repo.Recent(ctx, n)
		require.NoError(t, err)
		assert.Empty(t, recent)
	}
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// purging an empty table is fine
	deleted, err = repo.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestChatHistoryRepo_RecordAfterPurge(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	first, err := repo.Record(ctx, "u", "r")
	require.NoError(t, err)
	_, err = repo.PurgeAll(ctx)
	require.NoError(t, err)

	second, err := repo.Record(ctx, "u2", "r2")
	require.NoError(t, err)
	recent, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.NotEqual(t, uint(0), first.ID)
}

func TestChatHistoryRepo_ConnectionFailureIsReported(t *testing.T) {
	repo := NewChatHistoryRepo(brokenConnector{}, logger.Nop())
	ctx := context.Background()

	_, err := repo.Record(ctx, "u", "r")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrStore))
	var se *errs.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "record", se.Op)

	_, err = repo.Recent(ctx, 3)
	assert.True(t, errors.Is(err, errs.ErrStore))

	_, err = repo.PurgeAll(ctx)
	assert.True(t, errors.Is(err, errs.ErrStore))
}
