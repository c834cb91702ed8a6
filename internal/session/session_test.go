package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/types"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl, logger.Nop()), mr
}

func storesUnderTest(t *testing.T) map[string]TranscriptStore {
	rs, _ := newRedisStore(t, time.Hour)
	return map[string]TranscriptStore{
		"memory": NewMemoryStore(time.Hour),
		"redis":  rs,
	}
}

func TestTranscriptStore_AppendKeepsOrder(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()
			require.NoError(t, store.Create(ctx, id))

			turns, err := store.Turns(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, turns)

			want := []types.ChatTurn{
				types.UserTurn("first"),
				types.AssistantTurn("reply one"),
				types.UserTurn("second"),
				types.AssistantTurn("reply two"),
			}
			for _, turn := range want {
				require.NoError(t, store.Append(ctx, id, turn))
			}
			got, err := store.Turns(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestTranscriptStore_UnknownSession(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()

			err := store.Append(ctx, id, types.UserTurn("x"))
			assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
			_, err = store.Turns(ctx, id)
			assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
			ok, err := store.Exists(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTranscriptStore_DeleteDiscards(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()
			require.NoError(t, store.Create(ctx, id))
			require.NoError(t, store.Append(ctx, id, types.UserTurn("x")))

			require.NoError(t, store.Delete(ctx, id))
			_, err := store.Turns(ctx, id)
			assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
		})
	}
}

func TestMemoryStore_TurnsReturnsCopy(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, store.Create(ctx, id))
	require.NoError(t, store.Append(ctx, id, types.UserTurn("original")))

	turns, err := store.Turns(ctx, id)
	require.NoError(t, err)
	turns[0].Content = "mutated"

	again, err := store.Turns(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestMemoryStore_PrunesIdleSessions(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	idle := uuid.New()
	require.NoError(t, store.Create(ctx, idle))

	now = now.Add(2 * time.Minute)
	fresh := uuid.New()
	require.NoError(t, store.Create(ctx, fresh))

	ok, _ := store.Exists(ctx, idle)
	assert.False(t, ok)
	ok, _ = store.Exists(ctx, fresh)
	assert.True(t, ok)
}

func TestRedisStore_TTLRefreshedOnAppend(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, store.Create(ctx, id))

	mr.FastForward(50 * time.Second)
	require.NoError(t, store.Append(ctx, id, types.UserTurn("still here")))
	mr.FastForward(50 * time.Second)

	turns, err := store.Turns(ctx, id)
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	mr.FastForward(2 * time.Minute)
	_, err = store.Turns(ctx, id)
	assert.True(t, errors.Is(err, errs.ErrSessionNotFound))
}

func TestManager_StartResolveEnd(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store, "secret", time.Hour, logger.Nop())
	ctx := context.Background()

	s, token, err := m.Start(ctx, "gemini-2.0-flash")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NoError(t, s.Append(ctx, types.UserTurn("hola")))

	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, resolved.ID)
	assert.Equal(t, "gemini-2.0-flash", resolved.Model)
	turns, err := resolved.Turns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.ChatTurn{types.UserTurn("hola")}, turns)

	require.NoError(t, m.End(ctx, s.ID))
	_, err = m.Resolve(ctx, token)
	assert.True(t, errors.Is(err, errs.ErrSessionNotFound))

	// ending twice is harmless
	assert.NoError(t, m.End(ctx, s.ID))
}

func TestManager_RejectsBadTokens(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store, "secret", time.Hour, logger.Nop())
	other := NewManager(store, "another-secret", time.Hour, logger.Nop())
	ctx := context.Background()

	_, foreign, err := other.Start(ctx, "m")
	require.NoError(t, err)

	for _, tok := range []string{"", "not-a-jwt", foreign} {
		_, err := m.Resolve(ctx, tok)
		assert.True(t, errors.Is(err, errs.ErrInvalidToken), "token %q", tok)
	}
}

func TestManager_ExpiredToken(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store, "secret", time.Nanosecond, logger.Nop())
	ctx := context.Background()

	_, token, err := m.Start(ctx, "m")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = m.Resolve(ctx, token)
	assert.True(t, errors.Is(err, errs.ErrInvalidToken))
}
