package poe

import (
	"fmt"
	"strings"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
)

// The remote service has shipped several response shapes over time:
// camelCase GraphQL fields, snake_case REST-ish exports, epoch
// timestamps in seconds, milliseconds or microseconds, and RFC 3339
// strings. Normalization is one explicit function over that closed set
// of variants; anything outside it is a ValidationError, never a guess.

// NormalizeConversation maps a raw conversation record into the
// canonical entity.
func NormalizeConversation(raw map[string]any) (*model.Conversation, error) {
	id, _ := pick(raw, "id", "chatId", "chat_id").(string)
	if id == "" {
		return nil, &model.ValidationError{Field: "id", Reason: "missing"}
	}

	conv := &model.Conversation{ID: id}
	conv.Title, _ = pick(raw, "title").(string)
	conv.Category, _ = pick(raw, "category").(string)

	switch b := pick(raw, "bot").(type) {
	case string:
		conv.Bot = b
	case map[string]any:
		conv.Bot, _ = pick(b, "nickname", "displayName", "display_name").(string)
	}
	if conv.Bot == "" {
		conv.Bot = "unknown"
	}

	created, ok := parseTimestamp(pick(raw, "creationTime", "createdAt", "created_at"))
	if !ok {
		return nil, &model.ValidationError{Field: "created_at", Reason: "missing or malformed"}
	}
	conv.CreatedAt = created

	updated, ok := parseTimestamp(pick(raw, "lastMessageTime", "updatedAt", "updated_at"))
	if !ok {
		// A conversation that never got a reply is still syncable.
		updated = created
	}
	conv.UpdatedAt = updated
	return conv, nil
}

// NormalizeMessage maps a raw message record into the canonical entity.
// seq is the record's position in the fetch order; it backs the
// composed message ID when the remote supplies no stable one.
func NormalizeMessage(conversationID string, seq int, raw map[string]any) (*model.Message, error) {
	msg := &model.Message{ConversationID: conversationID}

	switch v := pick(raw, "messageId", "id", "message_id").(type) {
	case string:
		msg.ID = v
	case float64:
		msg.ID = fmt.Sprintf("%.0f", v)
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d", conversationID, seq)
	}

	content, _ := pick(raw, "text", "content").(string)
	msg.Content = content

	author, _ := pick(raw, "author", "role", "sender").(string)
	switch strings.ToLower(author) {
	case "human", "user":
		msg.Role = model.RoleUser
	case "":
		return nil, &model.ValidationError{Field: "author", Reason: "missing"}
	default:
		msg.Role = model.RoleBot
	}

	ts, ok := parseTimestamp(pick(raw, "creationTime", "timestamp", "created_at"))
	if !ok {
		return nil, &model.ValidationError{Field: "timestamp", Reason: "missing or malformed"}
	}
	msg.Timestamp = ts
	return msg, nil
}

// pick returns the first present key from the known aliases.
func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// parseTimestamp accepts the timestamp encodings the remote service has
// used: epoch seconds/millis/micros as a number, or a string in RFC
// 3339 or "2006-01-02 15:04:05" form.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		return fromEpoch(int64(t)), true
	case int64:
		return fromEpoch(t), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func fromEpoch(n int64) time.Time {
	switch {
	case n > 1e15: // microseconds
		return time.UnixMicro(n).UTC()
	case n > 1e12: // milliseconds
		return time.UnixMilli(n).UTC()
	default: // seconds
		return time.Unix(n, 0).UTC()
	}
}
