package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutor-backend/internal/middleware"
	"tutor-backend/internal/models"
	"tutor-backend/internal/realtime"
	"tutor-backend/internal/session"
	"tutor-backend/internal/stream"
)

type sessionStore interface {
	Create(doc *models.DocumentRef) *session.Session
	Get(id uuid.UUID) (*session.Session, error)
	End(id uuid.UUID) error
}

type tutorService interface {
	Ask(ctx context.Context, sess *session.Session, text string, sink stream.Sink) (stream.Result, error)
	Reset(sess *session.Session) error
}

type tokenIssuer interface {
	GenerateSessionToken(sessionID uuid.UUID) (string, time.Time, error)
}

// sessionCloser drops live connections of an ended session.
type sessionCloser interface {
	CloseSession(sessionID uuid.UUID)
}

type ChatHandler struct {
	sessions  sessionStore
	tutor     tutorService
	tokens    tokenIssuer
	publisher realtime.Publisher
	closer    sessionCloser
	document  *models.DocumentRef
}

func NewChatHandler(
	sessions sessionStore,
	tutor tutorService,
	tokens tokenIssuer,
	publisher realtime.Publisher,
	closer sessionCloser,
	document *models.DocumentRef,
) *ChatHandler {
	return &ChatHandler{
		sessions:  sessions,
		tutor:     tutor,
		tokens:    tokens,
		publisher: publisher,
		closer:    closer,
		document:  document,
	}
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create(h.document)

	token, exp, err := h.tokens.GenerateSessionToken(sess.ID)
	if err != nil {
		h.sessions.End(sess.ID)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.SessionResponse{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: exp,
	})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, models.HistoryResponse{
		SessionID: sess.ID,
		Messages:  sess.Messages(),
	})
}

// AskQuestion runs one turn. Live renders go out over the websocket; the
// response carries the recorded reply once the stream has ended.
func (h *ChatHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	sink := realtime.NewSessionSink(r.Context(), h.publisher, sess.ID)
	res, err := h.tutor.Ask(r.Context(), sess, req.Message, sink)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	sink.Complete(res)

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Reply:     res.Persisted,
		Reasoning: res.Reasoning,
		Outcome:   string(res.Outcome),
	})
}

func (h *ChatHandler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	if err := h.tutor.Reset(sess); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.publisher.Publish(context.WithoutCancel(r.Context()), sess.ID, models.WSMessage{
		Type:    models.WSHistoryReset,
		Payload: map[string]string{"session_id": sess.ID.String()},
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	if err := h.sessions.End(sess.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if h.closer != nil {
		h.closer.CloseSession(sess.ID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session ended"})
}

// loadSession resolves {id} and checks it against the token's session.
func (h *ChatHandler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return nil, false
	}

	if middleware.GetSessionID(r.Context()) != sessionID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return sess, true
}
