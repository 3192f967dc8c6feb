package realtime

import (
	"context"
	"log"

	"github.com/google/uuid"

	"tutor-backend/internal/models"
	"tutor-backend/internal/stream"
)

// SessionSink renders splitter output as websocket messages for one session.
type SessionSink struct {
	ctx       context.Context
	pub       Publisher
	sessionID uuid.UUID
}

func NewSessionSink(ctx context.Context, pub Publisher, sessionID uuid.UUID) *SessionSink {
	return &SessionSink{ctx: ctx, pub: pub, sessionID: sessionID}
}

func (s *SessionSink) UpdateStatus(u stream.StatusUpdate) {
	s.publish(models.WSMessage{
		Type: models.WSStatusUpdate,
		Payload: models.StatusPayload{
			SessionID: s.sessionID,
			Label:     u.Label,
			Body:      u.Body,
			State:     string(u.State),
			Collapsed: u.Collapsed,
		},
	})
}

func (s *SessionSink) UpdateAnswer(text string) {
	s.publish(models.WSMessage{
		Type:    models.WSAnswerUpdate,
		Payload: models.AnswerUpdate{SessionID: s.sessionID, Text: text},
	})
}

func (s *SessionSink) Error(text string) {
	s.publish(models.WSMessage{
		Type:    models.WSError,
		Payload: models.ErrorEvent{SessionID: s.sessionID, ErrorMessage: text},
	})
}

// Complete announces the persisted reply once the turn is recorded.
func (s *SessionSink) Complete(res stream.Result) {
	s.publish(models.WSMessage{
		Type: models.WSTurnComplete,
		Payload: models.TurnComplete{
			SessionID: s.sessionID,
			Reply:     res.Persisted,
			Outcome:   string(res.Outcome),
		},
	})
}

func (s *SessionSink) publish(msg models.WSMessage) {
	// The request context may already be gone; the tab still wants the update.
	ctx := context.WithoutCancel(s.ctx)
	if err := s.pub.Publish(ctx, s.sessionID, msg); err != nil {
		log.Printf("Session %s: %s update dropped: %v", s.sessionID, msg.Type, err)
	}
}
