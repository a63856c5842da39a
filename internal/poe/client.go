// Package poe is the boundary to the remote chat service. It fetches raw
// conversation and message pages and normalizes them into the canonical
// entities; everything past this package works only with canonical data.
package poe

import (
	"context"
	"time"
)

// AuthContext is a currently valid authentication context for the remote
// service. How it is obtained (browser cookies, token files, keychain)
// is the credential store's business, not ours.
type AuthContext struct {
	FormKey  string
	PBCookie string
}

// CredentialSource supplies a valid AuthContext on demand. The engine
// never touches credential files directly.
type CredentialSource interface {
	Credentials(ctx context.Context) (AuthContext, error)
}

// StaticCredentials is a CredentialSource with fixed values, used for
// configuration-supplied tokens and in tests.
type StaticCredentials AuthContext

func (s StaticCredentials) Credentials(ctx context.Context) (AuthContext, error) {
	return AuthContext(s), nil
}

// ConversationPage is one page of raw conversation records. Pages may
// overlap or repeat items; the reconciliation engine treats repeats as
// no-ops.
type ConversationPage struct {
	Items      []map[string]any
	NextCursor string
}

// MessagePage is one page of raw message records for a conversation.
type MessagePage struct {
	Items      []map[string]any
	NextCursor string
}

// Client fetches raw records from the remote service. Both listings are
// paged through an opaque continuation cursor; an empty cursor starts
// from the beginning, and an empty NextCursor ends the sequence.
// Delivery is at-least-once: correctness must not depend on the remote
// side never repeating a record.
type Client interface {
	// ListConversations returns conversations updated at or after
	// since, newest first.
	ListConversations(ctx context.Context, since time.Time, cursor string, limit int) (ConversationPage, error)

	// ListMessages returns the messages of one conversation in
	// chronological order.
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) (MessagePage, error)
}
