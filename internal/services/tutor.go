package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"tutor-backend/internal/models"
	"tutor-backend/internal/session"
	"tutor-backend/internal/stream"
)

// Generator opens one streaming generation call against the cached document.
type Generator interface {
	GenerateStream(ctx context.Context, doc *models.DocumentRef, userText string) (stream.Fragments, error)
}

type TutorService struct {
	gen Generator
}

func NewTutorService(gen Generator) *TutorService {
	return &TutorService{gen: gen}
}

// Ask runs one chat turn on sess, rendering into sink. A stream failure is
// not returned as an error: it is rendered, persisted as the failure
// sentinel, and reported in Result.Err.
func (t *TutorService) Ask(ctx context.Context, sess *session.Session, text string, sink stream.Sink) (stream.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return stream.Result{}, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	if err := sess.TryBegin(); err != nil {
		if errors.Is(err, session.ErrBusy) {
			return stream.Result{}, &ConflictError{Message: "A question is still being answered"}
		}
		return stream.Result{}, err
	}
	defer sess.End()

	sess.Append(models.RoleUser, text)

	started := time.Now()
	src, err := t.gen.GenerateStream(ctx, sess.Document, text)
	if err != nil {
		src = stream.FailedStream(err)
	}

	res := stream.Run(src, sink, func(content string) {
		sess.Append(models.RoleAssistant, content)
	})

	if res.Err != nil {
		log.Printf("Session %s: turn failed after %d fragments: %v", sess.ID, res.Fragments, res.Err)
	} else {
		log.Printf("Session %s: turn %s in %s (%d fragments, %d answer chars)",
			sess.ID, res.Outcome, time.Since(started).Round(time.Millisecond), res.Fragments, len(res.Persisted))
	}

	return res, nil
}

// Reset clears the session's history.
func (t *TutorService) Reset(sess *session.Session) error {
	if err := sess.TryClear(); err != nil {
		if errors.Is(err, session.ErrBusy) {
			return &ConflictError{Message: "Cannot reset while a question is being answered"}
		}
		return err
	}
	return nil
}
