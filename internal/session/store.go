package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/types"
)

// TranscriptStore keeps the ordered turns of live sessions. Turns are only
// ever appended; a transcript disappears as a whole when its session ends.
type TranscriptStore interface {
	Create(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Append(ctx context.Context, id uuid.UUID, turn types.ChatTurn) error
	Turns(ctx context.Context, id uuid.UUID) ([]types.ChatTurn, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

//---------------------------------------------------------------------
// MemoryStore
//---------------------------------------------------------------------

// MemoryStore keeps transcripts in process memory. With a ttl set, sessions
// idle for longer than ttl are dropped the next time a session is created.
type MemoryStore struct {
	mu          sync.RWMutex
	ttl         time.Duration
	now         func() time.Time
	transcripts map[uuid.UUID][]types.ChatTurn
	touched     map[uuid.UUID]time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:         ttl,
		now:         time.Now,
		transcripts: make(map[uuid.UUID][]types.ChatTurn),
		touched:     make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryStore) Create(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	if _, ok := m.transcripts[id]; !ok {
		m.transcripts[id] = []types.ChatTurn{}
	}
	m.touched[id] = m.now()
	return nil
}

func (m *MemoryStore) pruneLocked() {
	if m.ttl <= 0 {
		return
	}
	cutoff := m.now().Add(-m.ttl)
	for id, at := range m.touched {
		if at.Before(cutoff) {
			delete(m.transcripts, id)
			delete(m.touched, id)
		}
	}
}

func (m *MemoryStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transcripts[id]
	return ok, nil
}

func (m *MemoryStore) Append(ctx context.Context, id uuid.UUID, turn types.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns, ok := m.transcripts[id]
	if !ok {
		return errs.ErrSessionNotFound
	}
	m.transcripts[id] = append(turns, turn)
	m.touched[id] = m.now()
	return nil
}

func (m *MemoryStore) Turns(ctx context.Context, id uuid.UUID) ([]types.ChatTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns, ok := m.transcripts[id]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	out := make([]types.ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, id)
	delete(m.touched, id)
	return nil
}

//---------------------------------------------------------------------
// RedisStore
//---------------------------------------------------------------------

// RedisStore keeps each transcript in a Redis list so any instance can serve
// the session. The list always starts with a marker entry so an empty
// transcript still exists; the TTL is pushed forward on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

const (
	transcriptKeyPrefix = "chat:transcript:"
	transcriptMarker    = "{}"
)

func NewRedisStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, log: log.With("component", "RedisTranscriptStore")}
}

func transcriptKey(id uuid.UUID) string {
	return transcriptKeyPrefix + id.String()
}

func (r *RedisStore) Create(ctx context.Context, id uuid.UUID) error {
	key := transcriptKey(id)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, transcriptMarker)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("Failed to create transcript in redis", "session", id, "error", err)
		return fmt.Errorf("redis create transcript: %w", err)
	}
	return nil
}

func (r *RedisStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.client.Exists(ctx, transcriptKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists transcript: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Append(ctx context.Context, id uuid.UUID, turn types.ChatTurn) error {
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrSessionNotFound
	}
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	key := transcriptKey(id)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("Failed to append turn in redis", "session", id, "error", err)
		return fmt.Errorf("redis append turn: %w", err)
	}
	return nil
}

func (r *RedisStore) Turns(ctx context.Context, id uuid.UUID) ([]types.ChatTurn, error) {
	vals, err := r.client.LRange(ctx, transcriptKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read transcript: %w", err)
	}
	if len(vals) == 0 {
		return nil, errs.ErrSessionNotFound
	}
	turns := make([]types.ChatTurn, 0, len(vals)-1)
	for _, v := range vals[1:] {
		var turn types.ChatTurn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			r.log.Warn("Skipping undecodable transcript entry", "session", id, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, transcriptKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete transcript: %w", err)
	}
	return nil
}
