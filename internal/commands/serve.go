package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/slotter-org/gemini-chat/internal/config"
	"github.com/slotter-org/gemini-chat/internal/db"
	"github.com/slotter-org/gemini-chat/internal/handlers"
	"github.com/slotter-org/gemini-chat/internal/middleware"
	"github.com/slotter-org/gemini-chat/internal/render"
	"github.com/slotter-org/gemini-chat/internal/repos"
	"github.com/slotter-org/gemini-chat/internal/server"
	"github.com/slotter-org/gemini-chat/internal/services"
	"github.com/slotter-org/gemini-chat/internal/session"
	"github.com/slotter-org/gemini-chat/internal/socket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat web server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//1) Configuration
	cfg, err := config.Load(log)
	if err != nil {
		return err
	}
	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	//2) Database Setup
	log.Info("Setting Up Database from Serve now...", "driver", cfg.Database.Driver, "pooled", cfg.Database.Pooled)
	dbService, err := db.NewDatabaseService(cfg.Database, log)
	if err != nil {
		return err
	}
	defer dbService.Close()
	if err := dbService.AutoMigrateAll(ctx); err != nil {
		log.Warn("Auto migration failed", "error", err)
	}
	historyRepo := repos.NewChatHistoryRepo(dbService, log)
	log.Info("Database Setup Successful :)")

	//3) Redis (optional unless sessions live there)
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password})
		defer redisClient.Close()
	}

	//4) Sessions
	var store session.TranscriptStore
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		store = session.NewRedisStore(redisClient, cfg.Session.TTL, log)
	case config.SessionBackendMemory:
		store = session.NewMemoryStore(cfg.Session.TTL)
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", cfg.Session.Backend)
	}
	if cfg.Session.Secret == "defaultsecret" {
		log.Warn("SESSION_SECRET not set; using the default secret")
	}
	manager := session.NewManager(store, cfg.Session.Secret, cfg.Session.TTL, log)

	//5) Websocket Hub + Redis PubSub
	log.Info("Setting Up Websocket Hub from Serve now...")
	wsHub := socket.NewHub(log)
	var redisPubSub *socket.RedisPubSub
	if redisClient != nil {
		redisPubSub, err = socket.NewRedisPubSub(log, redisClient, cfg.Redis.Channel)
		if err != nil {
			log.Warn("Failed to init redis pubsub", "error", err)
		} else if err := redisPubSub.StartSubscriber(wsHub); err != nil {
			log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
			redisPubSub = nil
		} else {
			wsHub.SetRedisPubSub(redisPubSub)
			defer redisPubSub.Stop()
			log.Info("Redis pubsub is active!")
		}
	}

	//6) Services
	log.Info("Setting up Services from Serve now...")
	geminiService, err := services.NewGeminiService(log, services.GeminiOptions{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Models:  cfg.Gemini.Models,
		Timeout: cfg.Gemini.Timeout,
	})
	if err != nil {
		return err
	}
	chatService := services.NewChatService(log, geminiService, historyRepo, wsHub)
	historyService := services.NewHistoryService(log, historyRepo, wsHub, cfg.Export.DefaultLimit)
	bucketService, err := services.NewBucketService(ctx, log, cfg.Export.Bucket, cfg.Export.CredentialsFile)
	if err != nil {
		log.Warn("Could not init BucketService; uploads disabled", "error", err)
	} else {
		defer bucketService.Close()
	}
	emailService, err := services.NewEmailService(log, cfg.Export.SendGridAPIKey, cfg.Export.FromEmail)
	if err != nil {
		log.Warn("Could not init EmailService; email exports disabled", "error", err)
	}
	log.Info("Services Set Up Successful :)")

	//7) Handlers, Middleware, Router
	renderer := render.New()
	router := server.NewRouter(server.RouterConfig{
		Log:               log,
		CORSOrigins:       cfg.CORSOrigins,
		SessionMiddleware: middleware.NewSessionMiddleware(log, manager),
		SessionHandler:    handlers.NewSessionHandler(manager, geminiService),
		ChatHandler:       handlers.NewChatHandler(log, chatService, renderer),
		HistoryHandler:    handlers.NewHistoryHandler(log, historyService, bucketService, emailService),
		PageHandler:       handlers.NewPageHandler(log, geminiService, renderer, cfg.Export.DefaultLimit),
		WsHandler:         handlers.WsHandler(wsHub, log),
	})

	//8) Serve until signalled
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening :)", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down server now...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", "error", err)
		}
	}
	return nil
}
