// Package model defines the canonical entities stored in the archive.
package model

import (
	"time"
)

// Conversation represents one archived conversation thread.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Bot          string    `json:"bot"`
	Category     string    `json:"category,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages,omitempty"`
}

// ConversationSummary is a conversation row without message bodies,
// as returned by list and query endpoints.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Bot          string    `json:"bot"`
	Category     string    `json:"category,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ListFilter holds the structured predicates for listing conversations.
// Zero-value fields are not applied; an empty filter matches the whole
// corpus.
type ListFilter struct {
	Bot      string
	Category string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	HasMore       bool                  `json:"has_more"`
}

// Stats summarizes the archive contents.
type Stats struct {
	Conversations int            `json:"conversations"`
	Messages      int            `json:"messages"`
	Bots          map[string]int `json:"bots"`
	Categories    map[string]int `json:"categories"`
}
