package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/slotter-org/gemini-chat/internal/db"
	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/types"
)

type ChatHistoryRepo interface {
	// CREATE
	Record(ctx context.Context, userMessage, modelResponse string) (*types.ChatHistory, error)

	// READ
	Recent(ctx context.Context, limit int) ([]*types.ChatHistory, error)
	Count(ctx context.Context) (int64, error)

	// FULL (HARD) DELETE
	PurgeAll(ctx context.Context) (int64, error)
}

type chatHistoryRepo struct {
	connector db.Connector
	log       *logger.Logger
}

// NewChatHistoryRepo builds a repo that asks connector for a fresh handle on
// every call and releases it before returning.
func NewChatHistoryRepo(connector db.Connector, baseLog *logger.Logger) ChatHistoryRepo {
	return &chatHistoryRepo{
		connector: connector,
		log:       baseLog.With("repo", "ChatHistoryRepo"),
	}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (r *chatHistoryRepo) Record(ctx context.Context, userMessage, modelResponse string) (*types.ChatHistory, error) {
	r.log.Info("Starting Record chat history now...")
	conn, release, err := r.connector.Conn(ctx)
	if err != nil {
		r.log.Warn("Failed to open connection for Record", "error", err)
		return nil, errs.NewStoreError("record", err)
	}
	defer release()

	row := &types.ChatHistory{UserMessage: userMessage, GeminiResponse: modelResponse}
	if err := conn.Create(row).Error; err != nil {
		r.log.Error("Failed to record chat history", "error", err)
		return nil, errs.NewStoreError("record", err)
	}
	r.log.Info("Successfully recorded chat history", "id", row.ID)
	return row, nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

func (r *chatHistoryRepo) Recent(ctx context.Context, limit int) ([]*types.ChatHistory, error) {
	r.log.Info("Starting Recent chat history now...", "limit", limit)
	results := []*types.ChatHistory{}
	if limit <= 0 {
		r.log.Debug("Non-positive limit provided, returning empty slice")
		return results, nil
	}
	conn, release, err := r.connector.Conn(ctx)
	if err != nil {
		r.log.Warn("Failed to open connection for Recent", "error", err)
		return nil, errs.NewStoreError("recent", err)
	}
	defer release()

	if err := conn.
		Order("id DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		r.log.Error("Failed to fetch recent chat history", "error", err)
		return nil, errs.NewStoreError("recent", err)
	}
	r.log.Info("Successfully fetched recent chat history", "count", len(results))
	return results, nil
}

func (r *chatHistoryRepo) Count(ctx context.Context) (int64, error) {
	conn, release, err := r.connector.Conn(ctx)
	if err != nil {
		return 0, errs.NewStoreError("count", err)
	}
	defer release()

	var n int64
	if err := conn.Model(&types.ChatHistory{}).Count(&n).Error; err != nil {
		r.log.Error("Failed to count chat history", "error", err)
		return 0, errs.NewStoreError("count", err)
	}
	return n, nil
}

// ----------------------------------------------------------------
// FULL (HARD) DELETE
// ----------------------------------------------------------------

func (r *chatHistoryRepo) PurgeAll(ctx context.Context) (int64, error) {
	r.log.Warn("Starting PurgeAll chat history now...")
	conn, release, err := r.connector.Conn(ctx)
	if err != nil {
		r.log.Warn("Failed to open connection for PurgeAll", "error", err)
		return 0, errs.NewStoreError("purge", err)
	}
	defer release()

	res := conn.
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&types.ChatHistory{})
	if res.Error != nil {
		r.log.Error("Failed to purge chat history", "error", res.Error)
		return 0, errs.NewStoreError("purge", res.Error)
	}
	r.log.Warn("Purged chat history", "deleted", res.RowsAffected)
	return res.RowsAffected, nil
}
