package poe

import (
	"errors"
	"testing"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
)

func TestNormalizeConversationVariants(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  map[string]any
	}{
		{
			name: "graphql camelCase with bot object",
			raw: map[string]any{
				"chatId":          "c1",
				"title":           "hello",
				"bot":             map[string]any{"displayName": "Claude"},
				"creationTime":    float64(want.Add(-time.Hour).UnixMicro()),
				"lastMessageTime": float64(want.UnixMicro()),
			},
		},
		{
			name: "snake_case with string bot",
			raw: map[string]any{
				"id":         "c1",
				"title":      "hello",
				"bot":        "Claude",
				"created_at": want.Add(-time.Hour).Format(time.RFC3339),
				"updated_at": want.Format(time.RFC3339),
			},
		},
		{
			name: "epoch seconds",
			raw: map[string]any{
				"id":         "c1",
				"title":      "hello",
				"bot":        "Claude",
				"created_at": float64(want.Add(-time.Hour).Unix()),
				"updated_at": float64(want.Unix()),
			},
		},
		{
			name: "epoch milliseconds",
			raw: map[string]any{
				"id":         "c1",
				"title":      "hello",
				"bot":        "Claude",
				"created_at": float64(want.Add(-time.Hour).UnixMilli()),
				"updated_at": float64(want.UnixMilli()),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conv, err := NormalizeConversation(tc.raw)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if conv.ID != "c1" {
				t.Errorf("id = %q, want c1", conv.ID)
			}
			if conv.Bot != "Claude" {
				t.Errorf("bot = %q, want Claude", conv.Bot)
			}
			if !conv.UpdatedAt.Equal(want) {
				t.Errorf("updated_at = %v, want %v", conv.UpdatedAt, want)
			}
		})
	}
}

func TestNormalizeConversationMissingID(t *testing.T) {
	_, err := NormalizeConversation(map[string]any{"title": "nameless"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestNormalizeConversationDefaults(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conv, err := NormalizeConversation(map[string]any{
		"id":         "c1",
		"created_at": created.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if conv.Bot != "unknown" {
		t.Errorf("bot = %q, want unknown", conv.Bot)
	}
	// No reply yet: updated falls back to created.
	if !conv.UpdatedAt.Equal(created) {
		t.Errorf("updated_at = %v, want created %v", conv.UpdatedAt, created)
	}
}

func TestNormalizeMessageRoles(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		author string
		want   model.Role
	}{
		{"human", model.RoleUser},
		{"user", model.RoleUser},
		{"USER", model.RoleUser},
		{"bot", model.RoleBot},
		{"claude-3-opus", model.RoleBot},
	}
	for _, tc := range cases {
		msg, err := NormalizeMessage("c1", 0, map[string]any{
			"id":        "m1",
			"author":    tc.author,
			"text":      "hi",
			"timestamp": ts.Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("author %q: %v", tc.author, err)
		}
		if msg.Role != tc.want {
			t.Errorf("author %q mapped to %s, want %s", tc.author, msg.Role, tc.want)
		}
	}
}

func TestNormalizeMessageMissingAuthor(t *testing.T) {
	_, err := NormalizeMessage("c1", 0, map[string]any{
		"id": "m1", "text": "hi", "timestamp": "2026-03-01T12:00:00Z",
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestNormalizeMessageComposedID(t *testing.T) {
	msg, err := NormalizeMessage("c1", 4, map[string]any{
		"author":    "human",
		"text":      "no id here",
		"timestamp": "2026-03-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if msg.ID != "c1-4" {
		t.Fatalf("composed id = %q, want c1-4", msg.ID)
	}
}

func TestNormalizeMessageNumericID(t *testing.T) {
	msg, err := NormalizeMessage("c1", 0, map[string]any{
		"messageId": float64(123456),
		"author":    "bot",
		"text":      "numeric",
		"timestamp": "2026-03-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if msg.ID != "123456" {
		t.Fatalf("id = %q, want 123456", msg.ID)
	}
}
