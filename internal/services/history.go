package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/repos"
	"github.com/slotter-org/gemini-chat/internal/types"
)

const (
	ExportFilename    = "chat_history.csv"
	ExportContentType = "text/csv; charset=utf-8"
)

// ExportHeader is the header row of every CSV export.
var ExportHeader = []string{"Usuario", "Gemini"}

type HistoryService interface {
	Recent(ctx context.Context, limit int) ([]*types.ChatHistory, error)
	PurgeAll(ctx context.Context) (int64, error)
	ExportCSV(ctx context.Context, w io.Writer, limit int) (int, error)
	ExportBytes(ctx context.Context, limit int) ([]byte, int, error)
	DefaultExportLimit() int
}

type historyService struct {
	log          *logger.Logger
	historyRepo  repos.ChatHistoryRepo
	notifier     Notifier
	defaultLimit int
}

func NewHistoryService(log *logger.Logger, historyRepo repos.ChatHistoryRepo, notifier Notifier, defaultLimit int) HistoryService {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &historyService{
		log:          log.With("service", "HistoryService"),
		historyRepo:  historyRepo,
		notifier:     notifier,
		defaultLimit: defaultLimit,
	}
}

func (hs *historyService) DefaultExportLimit() int {
	return hs.defaultLimit
}

func (hs *historyService) Recent(ctx context.Context, limit int) ([]*types.ChatHistory, error) {
	return hs.historyRepo.Recent(ctx, limit)
}

func (hs *historyService) PurgeAll(ctx context.Context) (int64, error) {
	deleted, err := hs.historyRepo.PurgeAll(ctx)
	if err != nil {
		return 0, err
	}
	if hs.notifier != nil {
		hs.notifier.Notify(ctx, HistoryChannel, ActionHistoryPurged, map[string]int64{"deleted": deleted})
	}
	return deleted, nil
}

// ExportCSV writes the limit most recent exchanges, newest first, as a two
// column CSV. It returns how many exchanges were written.
func (hs *historyService) ExportCSV(ctx context.Context, w io.Writer, limit int) (int, error) {
	if limit <= 0 {
		limit = hs.defaultLimit
	}
	rows, err := hs.historyRepo.Recent(ctx, limit)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.UserMessage, row.GeminiResponse}); err != nil {
			return 0, fmt.Errorf("write csv row %d: %w", row.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	hs.log.Info("Exported chat history", "rows", len(rows), "limit", limit)
	return len(rows), nil
}

func (hs *historyService) ExportBytes(ctx context.Context, limit int) ([]byte, int, error) {
	var buf bytes.Buffer
	n, err := hs.ExportCSV(ctx, &buf, limit)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}
