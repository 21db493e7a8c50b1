package chat

import (
	"fmt"
	"time"
)

// Session is one conversation owned by a user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is a stored turn. Role is llm.RoleUser or llm.RoleAssistant.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Topic     Topic     `json:"topic,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionNotFoundError is returned when no session with the id belongs to the user.
type SessionNotFoundError struct {
	SessionID string
	UserID    string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("chat session %s not found for user %s", e.SessionID, e.UserID)
}
