package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutor-backend/internal/config"
	"tutor-backend/internal/database"
	"tutor-backend/internal/handlers"
	"tutor-backend/internal/middleware"
	"tutor-backend/internal/realtime"
	"tutor-backend/internal/router"
	"tutor-backend/internal/services"
	"tutor-backend/internal/session"
)

func main() {
	log.Println("🚀 Starting Friedberg Linear Algebra Tutor...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Inspect Reference Document ────
	documentService := services.NewDocumentService()
	docInfo, err := documentService.Inspect(cfg.DocumentPath)
	if err != nil {
		log.Fatalf("✗ Reference document unavailable: %v", err)
	}
	log.Printf("✓ Reference document found (%d pages, %d bytes)", docInfo.Pages, docInfo.SizeBytes)

	// ──── Step 3: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, services.GeminiOptions{
		Model:          cfg.GeminiModel,
		Temperature:    cfg.GeminiTemperature,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Step 4: Upload And Cache Textbook ────
	uploadCtx, cancelUpload := context.WithTimeout(context.Background(), cfg.DocumentReadyTimeout+time.Minute)
	docRef, err := geminiService.CacheDocument(uploadCtx, cfg.DocumentPath, cfg.DocumentPollInterval, cfg.DocumentReadyTimeout)
	cancelUpload()
	if err != nil {
		log.Fatalf("✗ Textbook upload failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := geminiService.ReleaseDocument(ctx, docRef); err != nil {
			log.Printf("✗ Failed to release textbook: %v", err)
		}
	}()
	log.Printf("✓ Textbook loaded (URI ...%s)", docRef.URISuffix(10))

	// ──── Step 5: Initialize Redis Clients (optional) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		log.Println("✓ Redis connected")
	}

	// ──── Initialize Sessions And Services ────
	sessionStore := session.NewStore(cfg.SessionIdleTTL)
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.SessionIdleTTL)
	tutorService := services.NewTutorService(geminiService)

	// ──── Step 6: Start WebSocket Hub ────
	var wsHub *realtime.Hub
	var publisher realtime.Publisher
	if redisClients != nil {
		wsHub = realtime.NewHub(redisClients.Subscribe, sessionAuth)
		publisher = realtime.NewRedisPublisher(redisClients.Publish)
	} else {
		wsHub = realtime.NewHub(nil, sessionAuth)
		publisher = wsHub
	}
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(sessionStore, tutorService, sessionAuth, publisher, wsHub, docRef)
	documentHandler := handlers.NewDocumentHandler(docRef, docInfo)
	chatLimiter := middleware.NewRateLimiter(cfg.ChatReqsPerMin, time.Minute, middleware.BySession)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		sessionAuth,
		chatLimiter,
		chatHandler,
		documentHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.StreamWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		chatLimiter.Stop()
		sessionStore.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Tutor ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
