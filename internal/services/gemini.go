package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

type GeminiService interface {
	Generate(ctx context.Context, modelID string, prompt string) (GeminiResponse, error)
	Models() []string
	HasModel(modelID string) bool
	DefaultModel() string
}

type GeminiResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type GeminiOptions struct {
	APIKey  string
	BaseURL string
	Models  []string
	// Timeout of zero leaves the call unbounded; it then ends only when the
	// provider answers or the request context is cancelled.
	Timeout    time.Duration
	HTTPClient *http.Client
}

type geminiService struct {
	log     *logger.Logger
	client  *http.Client
	baseURL string
	apiKey  string
	models  []string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

func NewGeminiService(log *logger.Logger, opts GeminiOptions) (GeminiService, error) {
	serviceLog := log.With("service", "GeminiService")
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &errs.ConfigError{Missing: []string{"GEMINI_API_KEY"}}
	}
	if len(opts.Models) == 0 {
		return nil, fmt.Errorf("gemini service needs at least one model")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &geminiService{
		log:     serviceLog,
		client:  httpClient,
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		models:  append([]string(nil), opts.Models...),
	}, nil
}

func (gs *geminiService) Models() []string {
	return append([]string(nil), gs.models...)
}

func (gs *geminiService) DefaultModel() string {
	return gs.models[0]
}

func (gs *geminiService) HasModel(modelID string) bool {
	for _, m := range gs.models {
		if m == modelID {
			return true
		}
	}
	return false
}

func (gs *geminiService) Generate(ctx context.Context, modelID string, prompt string) (GeminiResponse, error) {
	var out GeminiResponse
	if !gs.HasModel(modelID) {
		return out, fmt.Errorf("%w: %q", errs.ErrUnknownModel, modelID)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return out, &errs.ModelError{Model: modelID, Message: "failed to encode request", Err: err}
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", gs.baseURL, url.PathEscape(modelID), url.QueryEscape(gs.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		gs.log.Warn("failed to build new request", "error", err)
		return out, &errs.ModelError{Model: modelID, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := gs.client.Do(req)
	if err != nil {
		gs.log.Warn("failed to call gemini", "model", modelID, "error", err)
		return out, &errs.ModelError{Model: modelID, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		gs.log.Warn("failed to read gemini response body", "error", err)
		return out, &errs.ModelError{Model: modelID, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(bodyBytes, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(bodyBytes))
		}
		gs.log.Warn("gemini responded with non-2xx", "statusCode", resp.StatusCode, "message", msg)
		return out, &errs.ModelError{Model: modelID, StatusCode: resp.StatusCode, Message: msg}
	}

	text, finish, err := parseGenerateContent(bodyBytes)
	if err != nil {
		gs.log.Warn("gemini response had no usable content", "error", err)
		return out, &errs.ModelError{Model: modelID, Message: err.Error()}
	}
	out.Text = text
	out.FinishReason = finish
	gs.log.Info("Gemini call success", "model", modelID, "chars", len(text), "elapsed", time.Since(start))
	return out, nil
}

// parseGenerateContent joins the text parts of the first candidate.
func parseGenerateContent(body []byte) (string, string, error) {
	if !gjson.ValidBytes(body) {
		return "", "", fmt.Errorf("invalid JSON in response")
	}
	parsed := gjson.ParseBytes(body)
	if reason := parsed.Get("promptFeedback.blockReason").String(); reason != "" {
		return "", "", fmt.Errorf("prompt blocked: %s", reason)
	}
	candidate := parsed.Get("candidates.0")
	if !candidate.Exists() {
		return "", "", fmt.Errorf("no candidates in response")
	}
	var sb strings.Builder
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if part.Get("thought").Bool() {
			return true
		}
		sb.WriteString(part.Get("text").String())
		return true
	})
	if sb.Len() == 0 {
		return "", "", fmt.Errorf("no content in response")
	}
	return sb.String(), candidate.Get("finishReason").String(), nil
}
