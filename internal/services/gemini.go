package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"tutor-backend/internal/models"
	"tutor-backend/internal/stream"
)

var (
	ErrDocumentFailed  = errors.New("Gemini failed to process the reference document")
	ErrDocumentTimeout = errors.New("reference document did not become active in time")
)

// fileAPI is the part of *genai.Client used for the document cache.
type fileAPI interface {
	UploadFile(ctx context.Context, name string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// responseIterator is satisfied by *genai.GenerateContentResponseIterator.
type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

type GeminiOptions struct {
	Model             string
	Temperature       float32
	SystemInstruction string
	ConcurrentReqs    int
}

type GeminiService struct {
	client   *genai.Client
	files    fileAPI
	opts     GeminiOptions
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey string, opts GeminiOptions) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if opts.SystemInstruction == "" {
		opts.SystemInstruction = SystemInstruction
	}
	if opts.ConcurrentReqs < 1 {
		opts.ConcurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, opts.ConcurrentReqs)
	for i := 0; i < opts.ConcurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		files:    client,
		opts:     opts,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// CacheDocument uploads the PDF at path and waits until the provider marks
// it active. PROCESSING is retried every pollInterval until readyTimeout.
func (s *GeminiService) CacheDocument(ctx context.Context, path string, pollInterval, readyTimeout time.Duration) (*models.DocumentRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference document: %w", err)
	}
	defer f.Close()

	file, err := s.files.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    "application/pdf",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload reference document to Gemini: %w", err)
	}

	file, err = waitForActive(ctx, s.files, file, pollInterval, readyTimeout)
	if err != nil {
		return nil, err
	}

	return &models.DocumentRef{
		Name:        file.Name,
		DisplayName: file.DisplayName,
		URI:         file.URI,
		MIMEType:    file.MIMEType,
	}, nil
}

func waitForActive(ctx context.Context, files fileAPI, file *genai.File, pollInterval, readyTimeout time.Duration) (*genai.File, error) {
	deadline := time.NewTimer(readyTimeout)
	defer deadline.Stop()

	for {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			return nil, ErrDocumentFailed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w (waited %s)", ErrDocumentTimeout, readyTimeout)
		case <-time.After(pollInterval):
		}

		current, err := files.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get uploaded file status: %w", err)
		}
		file = current
	}
}

// ReleaseDocument removes the cached file from the provider.
func (s *GeminiService) ReleaseDocument(ctx context.Context, doc *models.DocumentRef) error {
	if doc == nil || doc.Name == "" {
		return nil
	}
	if err := s.files.DeleteFile(ctx, doc.Name); err != nil {
		return fmt.Errorf("failed to delete cached document %s: %w", doc.Name, err)
	}
	return nil
}

// GenerateStream starts one grounded generation call. The returned source
// holds a rate slot until it reports end of stream or an error.
func (s *GeminiService) GenerateStream(ctx context.Context, doc *models.DocumentRef, userText string) (stream.Fragments, error) {
	if doc == nil {
		return nil, fmt.Errorf("no reference document cached")
	}
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}

	model := s.client.GenerativeModel(s.opts.Model)
	model.SetTemperature(s.opts.Temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(s.opts.SystemInstruction)},
	}

	it := model.GenerateContentStream(ctx,
		genai.FileData{MIMEType: doc.MIMEType, URI: doc.URI},
		genai.Text(userText),
	)

	return newResponseFragments(it, s.releaseRate), nil
}

// responseFragments adapts a Gemini response iterator to stream.Fragments,
// skipping responses that carry no text.
type responseFragments struct {
	it      responseIterator
	release func()
	once    sync.Once
}

func newResponseFragments(it responseIterator, release func()) *responseFragments {
	return &responseFragments{it: it, release: release}
}

func (r *responseFragments) Next() (string, error) {
	for {
		resp, err := r.it.Next()
		if err != nil {
			r.done()
			if errors.Is(err, iterator.Done) {
				return "", stream.Done
			}
			return "", fmt.Errorf("Gemini stream error: %w", err)
		}

		logFinishReasons(resp)
		if text := extractText(resp); text != "" {
			return text, nil
		}
	}
}

func (r *responseFragments) done() {
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func logFinishReasons(resp *genai.GenerateContentResponse) {
	if resp == nil {
		return
	}
	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonUnspecified && cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}
}
