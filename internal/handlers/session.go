package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/requestdata"
	"github.com/slotter-org/gemini-chat/internal/services"
	"github.com/slotter-org/gemini-chat/internal/session"
)

type SessionHandler struct {
	manager *session.Manager
	gemini  services.GeminiService
}

func NewSessionHandler(manager *session.Manager, gemini services.GeminiService) *SessionHandler {
	return &SessionHandler{manager: manager, gemini: gemini}
}

func (sh *SessionHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": sh.gemini.Models(), "default": sh.gemini.DefaultModel()})
}

type startSessionRequest struct {
	Model string `json:"model"`
}

func (sh *SessionHandler) Start(c *gin.Context) {
	var req startSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	model := req.Model
	if model == "" {
		model = sh.gemini.DefaultModel()
	}
	if !sh.gemini.HasModel(model) {
		respondError(c, fmt.Errorf("%w: %q", errs.ErrUnknownModel, model), nil)
		return
	}
	sess, token, err := sh.manager.Start(c.Request.Context(), model)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID, "token": token, "model": sess.Model})
}

func (sh *SessionHandler) Get(c *gin.Context) {
	sess := requestdata.GetSession(c.Request.Context())
	if sess == nil {
		respondError(c, errs.ErrSessionNotFound, nil)
		return
	}
	turns, err := sess.Turns(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "turns": turns})
}

func (sh *SessionHandler) End(c *gin.Context) {
	sess := requestdata.GetSession(c.Request.Context())
	if sess == nil {
		respondError(c, errs.ErrSessionNotFound, nil)
		return
	}
	if err := sh.manager.End(c.Request.Context(), sess.ID); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}
