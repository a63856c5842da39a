package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
)

func TestUpsertMessagesAppendOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mustUpsert(t, st, testConversation("c1", now))

	msgs := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "hello", Timestamp: now},
		{ID: "m2", Role: model.RoleBot, Content: "hi there", Timestamp: now.Add(time.Second)},
	}
	inserted, err := st.UpsertMessages(ctx, "c1", msgs)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	// Replaying the same batch plus one new message only adds the new one.
	msgs[0].Content = "mutated content must be ignored"
	msgs = append(msgs, model.Message{
		ID: "m3", Role: model.RoleUser, Content: "newer", Timestamp: now.Add(2 * time.Second),
	})
	inserted, err = st.UpsertMessages(ctx, "c1", msgs)
	if err != nil {
		t.Fatalf("replay upsert: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("replay inserted = %d, want 1", inserted)
	}

	got, err := st.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageCount != 3 {
		t.Fatalf("message_count = %d, want 3", got.MessageCount)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(got.Messages))
	}
	if got.Messages[0].Content != "hello" {
		t.Fatalf("stored message mutated: %q", got.Messages[0].Content)
	}
}

func TestUpsertMessagesUnknownParent(t *testing.T) {
	st := newTestStore(t)

	_, err := st.UpsertMessages(context.Background(), "ghost", []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "orphan", Timestamp: time.Now()},
	})
	var integrity *model.StorageIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("err = %v, want StorageIntegrityError", err)
	}
}

func TestUpsertMessagesCrossConversation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	mustUpsert(t, st, testConversation("c1", now))
	mustUpsert(t, st, testConversation("c2", now))

	_, err := st.UpsertMessages(ctx, "c1", []model.Message{
		{ID: "m1", ConversationID: "c2", Role: model.RoleUser, Content: "wrong home", Timestamp: now},
	})
	var integrity *model.StorageIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("err = %v, want StorageIntegrityError", err)
	}

	// The failed batch must not have touched the count.
	got, err := st.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageCount != 0 {
		t.Fatalf("message_count = %d after rejected batch, want 0", got.MessageCount)
	}
}

func TestUpsertMessagesEmptyID(t *testing.T) {
	st := newTestStore(t)
	mustUpsert(t, st, testConversation("c1", time.Now()))

	_, err := st.UpsertMessages(context.Background(), "c1", []model.Message{
		{ID: "", Role: model.RoleUser, Content: "anonymous", Timestamp: time.Now()},
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestUpsertMessagesVisibleToSearchImmediately(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, st, testConversation("c1", time.Now()))
	mustAddMessages(t, st, "c1", model.Message{
		ID: "m1", Role: model.RoleBot, Content: "the mitochondria is the powerhouse", Timestamp: time.Now(),
	})

	hits, err := st.Search(ctx, "mitochondria", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ConversationID != "c1" {
		t.Fatalf("hits = %+v, want one hit in c1", hits)
	}
}
