package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ValidRole reports whether r belongs to the closed role set.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleBot
}

// Message represents a single archived message. Messages are immutable
// once stored; reconciliation only ever appends new ones.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// SearchHit is one full-text match returned by the search index.
type SearchHit struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Snippet        string    `json:"snippet"`
	Score          float64   `json:"score"`
	Timestamp      time.Time `json:"timestamp"`
}
