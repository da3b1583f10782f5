package websocket

import "github.com/aimstudio/aims-backend/internal/model"

// The response stream is owner-facing: the dashboard opens one socket per
// quiz and receives every finalized response as it lands on the queue.

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventResponse Event = "response"
	EventPong     Event = "pong"
)

// ResponseEvent carries one finalized quiz response to the dashboard.
type ResponseEvent struct {
	Event    Event              `json:"event"`
	Response model.QuizResponse `json:"response"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
