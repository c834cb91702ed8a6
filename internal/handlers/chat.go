package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/render"
	"github.com/slotter-org/gemini-chat/internal/requestdata"
	"github.com/slotter-org/gemini-chat/internal/services"
)

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
	renderer    *render.Renderer
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService, renderer *render.Renderer) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chatService: chatService, renderer: renderer}
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// Submit runs one exchange. Model failures come back as 502 with the user
// turn that was kept; storage failures still return the reply.
func (ch *ChatHandler) Submit(c *gin.Context) {
	sess := requestdata.GetSession(c.Request.Context())
	if sess == nil {
		respondError(c, errs.ErrSessionNotFound, nil)
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := ch.chatService.Submit(c.Request.Context(), sess, req.Model, req.Prompt)
	if err != nil {
		extra := gin.H{}
		if result != nil {
			extra["model"] = result.Model
			extra["user_turn"] = result.UserTurn
			if result.AssistantTurn != nil {
				extra["assistant_turn"] = result.AssistantTurn
			}
		}
		respondError(c, err, extra)
		return
	}

	body := gin.H{
		"model":          result.Model,
		"user_turn":      result.UserTurn,
		"assistant_turn": result.AssistantTurn,
		"persisted":      result.Persisted,
	}
	if result.Exchange != nil {
		body["exchange"] = result.Exchange
	}
	if result.PersistError != nil {
		body["persist_error"] = result.PersistError.Error()
	}
	if html, err := ch.renderer.Markdown(result.AssistantTurn.Content); err == nil {
		body["assistant_html"] = html
	} else {
		ch.log.Warn("Failed to render reply", "error", err)
	}
	c.JSON(http.StatusOK, body)
}
