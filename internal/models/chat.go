package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn record in a session's history.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the finished turn. Reasoning is shown once and never
// stored in the history.
type ChatResponse struct {
	Reply     string `json:"reply"`
	Reasoning string `json:"reasoning,omitempty"`
	Outcome   string `json:"outcome"`
}

type HistoryResponse struct {
	SessionID uuid.UUID     `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
