package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) GeminiService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	gs, err := NewGeminiService(logger.Nop(), GeminiOptions{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Models:  []string{"gemini-2.0-flash", "gemini-1.5-pro"},
	})
	require.NoError(t, err)
	return gs
}

func TestGemini_Generate(t *testing.T) {
	gs := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		raw, _ := io.ReadAll(r.Body)
		var req geminiRequest
		if assert.NoError(t, json.Unmarshal(raw, &req)) && assert.Len(t, req.Contents, 1) {
			assert.Equal(t, "hola", req.Contents[0].Parts[0].Text)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "Hola, "}, {"text": "¿qué tal?"}},
				},
				"finishReason": "STOP",
			}},
		})
	})

	resp, err := gs.Generate(context.Background(), "gemini-2.0-flash", "hola")
	require.NoError(t, err)
	assert.Equal(t, "Hola, ¿qué tal?", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
}

func TestGemini_HTTPError(t *testing.T) {
	gs := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	})

	_, err := gs.Generate(context.Background(), "gemini-2.0-flash", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrGeneration))
	var me *errs.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, http.StatusTooManyRequests, me.StatusCode)
	assert.Equal(t, "quota exceeded", me.Message)
}

func TestGemini_EmptyCandidates(t *testing.T) {
	gs := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := gs.Generate(context.Background(), "gemini-2.0-flash", "hi")
	assert.True(t, errors.Is(err, errs.ErrGeneration))
}

func TestGemini_BlockedPrompt(t *testing.T) {
	gs := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := gs.Generate(context.Background(), "gemini-2.0-flash", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGemini_UnknownModel(t *testing.T) {
	called := false
	gs := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := gs.Generate(context.Background(), "gpt-4", "hi")
	assert.True(t, errors.Is(err, errs.ErrUnknownModel))
	assert.False(t, called)
}

func TestGemini_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	gs, err := NewGeminiService(logger.Nop(), GeminiOptions{APIKey: "k", BaseURL: server.URL, Models: []string{"m"}})
	require.NoError(t, err)

	_, err = gs.Generate(context.Background(), "m", "hi")
	assert.True(t, errors.Is(err, errs.ErrGeneration))
}

func TestGemini_RequiresKey(t *testing.T) {
	_, err := NewGeminiService(logger.Nop(), GeminiOptions{Models: []string{"m"}})
	assert.True(t, errors.Is(err, errs.ErrConfigMissing))
}

func TestGemini_Models(t *testing.T) {
	gs := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, "gemini-2.0-flash", gs.DefaultModel())
	assert.True(t, gs.HasModel("gemini-1.5-pro"))
	assert.False(t, gs.HasModel("other"))
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-pro"}, gs.Models())
}
