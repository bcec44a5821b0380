package model

import "time"

// Fragment event types emitted on the NDJSON chat stream. The first record
// of every stream is EventRunStarted carrying the session id; the last is
// either EventRunCompleted or EventRunError.
const (
	EventRunStarted   = "RunStarted"
	EventRunContent   = "RunResponseContent"
	EventRunCompleted = "RunCompleted"
	EventRunError     = "RunError"
)

// Fragment is one incremental unit of a streamed chat response.
type Fragment struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id"`
	CreatedAt int64  `json:"created_at"`
}

// Message is one persisted turn of a session transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// SessionSummary describes one chat session without its transcript.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Session is a full session record including its transcript.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
