package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/types"
)

// Session is the per-visitor context handed to every chat handler. It is
// created when the visitor starts chatting and dropped, transcript included,
// when the session ends.
type Session struct {
	ID        uuid.UUID `json:"session_id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`

	store TranscriptStore
}

func (s *Session) Append(ctx context.Context, turn types.ChatTurn) error {
	return s.store.Append(ctx, s.ID, turn)
}

func (s *Session) Turns(ctx context.Context) ([]types.ChatTurn, error) {
	return s.store.Turns(ctx, s.ID)
}

type Claims struct {
	jwt.RegisteredClaims
	Model string `json:"model,omitempty"`
}

// Manager starts, resolves and ends sessions. A session is identified by a
// signed token; the token carries no user identity.
type Manager struct {
	store  TranscriptStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

func NewManager(store TranscriptStore, secret string, ttl time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log.With("component", "SessionManager"),
	}
}

// Start opens an empty transcript for a new session and returns it with its
// signed token.
func (m *Manager) Start(ctx context.Context, model string) (*Session, string, error) {
	s := &Session{
		ID:        uuid.New(),
		Model:     model,
		CreatedAt: time.Now().UTC(),
		store:     m.store,
	}
	if err := m.store.Create(ctx, s.ID); err != nil {
		m.log.Warn("Failed to create transcript for new session", "error", err)
		return nil, "", fmt.Errorf("failed to start session: %w", err)
	}
	token, err := m.sign(s)
	if err != nil {
		_ = m.store.Delete(ctx, s.ID)
		return nil, "", err
	}
	m.log.Info("Session started", "session", s.ID, "model", model)
	return s, token, nil
}

func (m *Manager) sign(s *Session) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  s.ID.String(),
			IssuedAt: jwt.NewNumericDate(s.CreatedAt),
		},
		Model: s.Model,
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(s.CreatedAt.Add(m.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Resolve verifies tokenString and loads the session it names.
func (m *Manager) Resolve(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, errs.ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errs.ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad session id", errs.ErrInvalidToken)
	}
	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.ErrSessionNotFound
	}
	var created time.Time
	if claims.IssuedAt != nil {
		created = claims.IssuedAt.Time.UTC()
	}
	return &Session{ID: id, Model: claims.Model, CreatedAt: created, store: m.store}, nil
}

// End discards the transcript. Ending an unknown session is not an error.
func (m *Manager) End(ctx context.Context, id uuid.UUID) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, errs.ErrSessionNotFound) {
		return err
	}
	m.log.Info("Session ended", "session", id)
	return nil
}
