package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutor-backend/internal/config"
	"tutor-backend/internal/services"
	"tutor-backend/internal/session"
	"tutor-backend/internal/terminal"
)

func main() {
	cfg := config.Load()

	documentService := services.NewDocumentService()
	docInfo, err := documentService.Inspect(cfg.DocumentPath)
	if err != nil {
		log.Fatalf("✗ Reference document unavailable: %v", err)
	}

	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, services.GeminiOptions{
		Model:          cfg.GeminiModel,
		Temperature:    cfg.GeminiTemperature,
		ConcurrentReqs: 1,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("[System] Uploading textbook...")
	docRef, err := geminiService.CacheDocument(ctx, cfg.DocumentPath, cfg.DocumentPollInterval, cfg.DocumentReadyTimeout)
	if err != nil {
		log.Fatalf("✗ Textbook upload failed: %v", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		geminiService.ReleaseDocument(releaseCtx, docRef)
	}()

	fmt.Printf("[System] Textbook Loaded (%d pages, URI ...%s)\n", docInfo.Pages, docRef.URISuffix(10))
	fmt.Println("Friedberg Linear Algebra Tutor. Type /help for commands.")

	store := session.NewStore(0)
	defer store.Close()
	sess := store.Create(docRef)

	tty := terminal.IsTerminal(os.Stdout)
	markdown := terminal.NewMarkdownRenderer(terminal.Width(os.Stdout))
	pages := func(page int) (string, error) {
		return documentService.PageText(cfg.DocumentPath, page)
	}

	shell := terminal.NewShell(services.NewTutorService(geminiService), sess, pages, os.Stdout, tty, markdown)
	if err := shell.Run(ctx, os.Stdin); err != nil {
		log.Printf("✗ Input error: %v", err)
	}
}
