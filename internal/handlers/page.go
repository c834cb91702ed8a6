package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/render"
	"github.com/slotter-org/gemini-chat/internal/requestdata"
	"github.com/slotter-org/gemini-chat/internal/services"
	"github.com/slotter-org/gemini-chat/internal/templates"
)

type PageHandler struct {
	log         *logger.Logger
	gemini      services.GeminiService
	renderer    *render.Renderer
	exportLimit int
}

func NewPageHandler(log *logger.Logger, gemini services.GeminiService, renderer *render.Renderer, exportLimit int) *PageHandler {
	return &PageHandler{log: log.With("handler", "PageHandler"), gemini: gemini, renderer: renderer, exportLimit: exportLimit}
}

// Chat serves the chat page with the current transcript, if any.
func (ph *PageHandler) Chat(c *gin.Context) {
	data := templates.ChatPageData{
		Title:         "Gemini Chat",
		Models:        ph.gemini.Models(),
		SelectedModel: ph.gemini.DefaultModel(),
		ExportLimit:   ph.exportLimit,
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd != nil && rd.Session != nil {
		data.Token = rd.TokenString
		if rd.Session.Model != "" {
			data.SelectedModel = rd.Session.Model
		}
		turns, err := rd.Session.Turns(c.Request.Context())
		if err != nil {
			data.Error = err.Error()
		}
		for _, turn := range turns {
			html, err := ph.renderer.Markdown(turn.Content)
			if err != nil {
				ph.log.Warn("Failed to render turn", "error", err)
				continue
			}
			data.Turns = append(data.Turns, templates.ChatTurnView{Role: string(turn.Role), HTML: html})
		}
	} else if rd != nil && rd.TokenString != "" {
		data.Error = "Your session has ended. Start a new chat."
		data.ResetToken = true
	}

	page, err := templates.RenderChatHTML(data)
	if err != nil {
		ph.log.Error("Failed to render chat page", "error", err)
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
