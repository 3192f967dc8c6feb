package models

import "github.com/google/uuid"

// WebSocket message types
const (
	WSStatusUpdate = "status_update"
	WSAnswerUpdate = "answer_update"
	WSError        = "error"
	WSTurnComplete = "turn_complete"
	WSHistoryReset = "history_reset"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type AnswerUpdate struct {
	SessionID uuid.UUID `json:"session_id"`
	Text      string    `json:"text"`
}

type StatusPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Label     string    `json:"label"`
	Body      string    `json:"body,omitempty"`
	State     string    `json:"state"`
	Collapsed bool      `json:"collapsed"`
}

type ErrorEvent struct {
	SessionID    uuid.UUID `json:"session_id"`
	ErrorMessage string    `json:"error_message"`
}

type TurnComplete struct {
	SessionID uuid.UUID `json:"session_id"`
	Reply     string    `json:"reply"`
	Outcome   string    `json:"outcome"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
