package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/reformat"
	"github.com/slotter-org/gemini-chat/internal/repos"
	"github.com/slotter-org/gemini-chat/internal/session"
	"github.com/slotter-org/gemini-chat/internal/types"
)

// Notifier fans chat events out to connected clients. A nil Notifier is
// allowed; events are then simply not sent.
type Notifier interface {
	Notify(ctx context.Context, channel string, action string, payload interface{})
}

const (
	ActionTurnAppended    = "turn_appended"
	ActionHistoryRecorded = "history_recorded"
	ActionHistoryPurged   = "history_purged"

	HistoryChannel = "history"
)

func SessionChannel(id uuid.UUID) string {
	return "session:" + id.String()
}

type ChatService interface {
	Submit(ctx context.Context, sess *session.Session, modelID string, prompt string) (*SubmitResult, error)
}

// SubmitResult is what one submission produced. On a model failure only
// UserTurn is set and Submit also returns the error. A failed history write
// does not fail the submission: Persisted is false and PersistError says why.
type SubmitResult struct {
	Model         string             `json:"model"`
	UserTurn      types.ChatTurn     `json:"user_turn"`
	AssistantTurn *types.ChatTurn    `json:"assistant_turn,omitempty"`
	Exchange      *types.ChatHistory `json:"exchange,omitempty"`
	Persisted     bool               `json:"persisted"`
	PersistError  error              `json:"-"`
}

type chatService struct {
	log         *logger.Logger
	gemini      GeminiService
	historyRepo repos.ChatHistoryRepo
	notifier    Notifier
	locks       *sessionLocks
}

func NewChatService(log *logger.Logger, gemini GeminiService, historyRepo repos.ChatHistoryRepo, notifier Notifier) ChatService {
	return &chatService{
		log:         log.With("service", "ChatService"),
		gemini:      gemini,
		historyRepo: historyRepo,
		notifier:    notifier,
		locks:       newSessionLocks(),
	}
}

func (cs *chatService) Submit(ctx context.Context, sess *session.Session, modelID string, prompt string) (*SubmitResult, error) {
	if sess == nil {
		return nil, errs.ErrSessionNotFound
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errs.ErrEmptyPrompt
	}
	model := cs.pickModel(sess, modelID)
	if !cs.gemini.HasModel(model) {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownModel, model)
	}
	log := cs.log.With("session", sess.ID, "model", model)

	// one submission per session at a time
	unlock := cs.locks.lock(sess.ID)
	defer unlock()

	//1) Record The User Turn
	result := &SubmitResult{Model: model, UserTurn: types.UserTurn(prompt)}
	if err := sess.Append(ctx, result.UserTurn); err != nil {
		log.Warn("Failed to append user turn", "error", err)
		return nil, err
	}
	cs.notify(ctx, SessionChannel(sess.ID), ActionTurnAppended, result.UserTurn)

	//2) Ask The Model
	log.Info("Calling Gemini now...")
	resp, err := cs.gemini.Generate(ctx, model, prompt)
	if err != nil {
		log.Warn("Gemini call failed, turn will not be recorded", "error", err)
		return result, err
	}

	//3) Reformat And Append The Assistant Turn
	assistant := types.AssistantTurn(reformat.CodeBlocks(resp.Text))
	result.AssistantTurn = &assistant
	if err := sess.Append(ctx, assistant); err != nil {
		log.Warn("Failed to append assistant turn", "error", err)
		return result, err
	}
	cs.notify(ctx, SessionChannel(sess.ID), ActionTurnAppended, assistant)

	//4) Record The Raw Exchange
	row, err := cs.historyRepo.Record(ctx, prompt, resp.Text)
	if err != nil {
		log.Warn("Failed to record exchange; reply is still returned", "error", err)
		result.PersistError = err
		return result, nil
	}
	result.Exchange = row
	result.Persisted = true
	cs.notify(ctx, HistoryChannel, ActionHistoryRecorded, row)
	log.Info("Submission complete :)", "exchangeID", row.ID)
	return result, nil
}

func (cs *chatService) pickModel(sess *session.Session, modelID string) string {
	if m := strings.TrimSpace(modelID); m != "" {
		return m
	}
	if sess.Model != "" {
		return sess.Model
	}
	return cs.gemini.DefaultModel()
}

func (cs *chatService) notify(ctx context.Context, channel, action string, payload interface{}) {
	if cs.notifier == nil {
		return
	}
	cs.notifier.Notify(ctx, channel, action, payload)
}

//---------------------------------------------------------------------
// per-session locks
//---------------------------------------------------------------------

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*sessionLock)}
}

func (sl *sessionLocks) lock(id uuid.UUID) func() {
	sl.mu.Lock()
	l, ok := sl.locks[id]
	if !ok {
		l = &sessionLock{}
		sl.locks[id] = l
	}
	l.refs++
	sl.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		sl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(sl.locks, id)
		}
		sl.mu.Unlock()
	}
}
