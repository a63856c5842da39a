package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "archive.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustUpsert(t *testing.T, st *Store, conv *model.Conversation) {
	t.Helper()
	if _, err := st.UpsertConversation(context.Background(), conv); err != nil {
		t.Fatalf("upsert conversation %s: %v", conv.ID, err)
	}
}

func mustAddMessages(t *testing.T, st *Store, conversationID string, msgs ...model.Message) {
	t.Helper()
	if _, err := st.UpsertMessages(context.Background(), conversationID, msgs); err != nil {
		t.Fatalf("upsert messages for %s: %v", conversationID, err)
	}
}

func testConversation(id string, updated time.Time) *model.Conversation {
	return &model.Conversation{
		ID:        id,
		Title:     "conversation " + id,
		Bot:       "claude",
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	st := newTestStore(t)

	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	var version int
	if err := st.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("user_version = %d, want %d", version, len(migrations))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.db")

	st, err := Open(path, logger.NewNop())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	mustUpsert(t, st, testConversation("c1", time.Now()))
	st.Close()

	st, err = Open(path, logger.NewNop())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer st.Close()

	got, err := st.GetConversation(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.ID != "c1" {
		t.Fatalf("got conversation %q, want c1", got.ID)
	}
}

func TestCheckIndexHealthy(t *testing.T) {
	st := newTestStore(t)
	mustUpsert(t, st, testConversation("c1", time.Now()))
	mustAddMessages(t, st, "c1", model.Message{
		ID: "m1", Role: model.RoleUser, Content: "hello there", Timestamp: time.Now(),
	})

	if err := st.CheckIndex(context.Background()); err != nil {
		t.Fatalf("check index on healthy store: %v", err)
	}
}

func TestReindexAllPreservesSearch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, st, testConversation("c1", time.Now()))
	mustAddMessages(t, st, "c1", model.Message{
		ID: "m1", Role: model.RoleBot, Content: "gradient descent converges", Timestamp: time.Now(),
	})

	if err := st.ReindexAll(ctx); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	hits, err := st.Search(ctx, "gradient", SearchOptions{})
	if err != nil {
		t.Fatalf("search after reindex: %v", err)
	}
	if len(hits) != 1 || hits[0].MessageID != "m1" {
		t.Fatalf("hits after reindex = %+v, want one hit for m1", hits)
	}
}
