package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/slotter-org/gemini-chat/internal/handlers"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/middleware"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

type RouterConfig struct {
	Log               *logger.Logger
	CORSOrigins       []string
	SessionMiddleware *middleware.SessionMiddleware
	SessionHandler    *handlers.SessionHandler
	ChatHandler       *handlers.ChatHandler
	HistoryHandler    *handlers.HistoryHandler
	PageHandler       *handlers.PageHandler
	WsHandler         gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.RequestLogger(cfg.Log))

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Session-Token"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//-----------------------------------------
	// Health + Page
	//-----------------------------------------
	router.GET("/healthz", handlers.Healthz)
	router.GET("/", cfg.SessionMiddleware.OptionalSession(), cfg.PageHandler.Chat)

	//-----------------------------------------
	// Public Routes
	//-----------------------------------------
	api := router.Group("/api")
	{
		api.GET("/models", cfg.SessionHandler.Models)
		api.POST("/session", cfg.SessionHandler.Start)

		api.GET("/history", cfg.HistoryHandler.Recent)
		api.DELETE("/history", cfg.HistoryHandler.Purge)
		api.GET("/history/export", cfg.HistoryHandler.Export)
		api.POST("/history/export/upload", cfg.HistoryHandler.Upload)
		api.POST("/history/export/email", cfg.HistoryHandler.Email)
	}

	//------------------------------------------
	// Session Routes
	//------------------------------------------
	withSession := api.Group("")
	withSession.Use(cfg.SessionMiddleware.RequireSession())
	withSession.GET("/session", cfg.SessionHandler.Get)
	withSession.DELETE("/session", cfg.SessionHandler.End)
	withSession.POST("/chat", cfg.ChatHandler.Submit)
	withSession.GET("/ws", cfg.WsHandler)

	return router
}
