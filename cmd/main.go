package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/internal/api"
	"github.com/satriahrh/tawa/internal/config"
	"github.com/satriahrh/tawa/internal/websocket"
	"github.com/satriahrh/tawa/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger level comes from config, so report with a default logger.
		fallback, _ := zap.NewProduction()
		fallback.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize adapters
	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	// Initialize WebSocket hub for ingest progress
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	publisher := deps.Publisher(hub)

	// Initialize usecase services
	ingestService := usecase.NewIngestService(
		deps.Storage,
		deps.STT,
		deps.Emotions,
		deps.Records,
		publisher,
		cfg.STT.Language,
		logger,
	)
	recordingService := usecase.NewRecordingService(deps.Records, deps.Storage, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Ingest:         ingestService,
		Recordings:     recordingService,
		Hub:            hub,
		Signer:         deps.Signer,
		Status:         deps.Status(cfg),
		Stats:          deps.Stats(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RequireToken:   cfg.Server.RequireToken,
		Logger:         logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("stt", cfg.STT.Provider),
		zap.String("emotion", cfg.Emotion.Provider),
		zap.String("storage", cfg.Storage.Backend))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("Server exited")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
