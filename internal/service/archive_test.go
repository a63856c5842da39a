package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/store"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

func newTestArchive(t *testing.T) (*Archive, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "archive.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewArchive(st, logger.NewNop(), 20), st
}

func seedArchive(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	convs := []*model.Conversation{
		{ID: "rust", Title: "rust ownership", Bot: "claude", Category: "Technical",
			CreatedAt: base, UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "sourdough", Title: "sourdough starter", Bot: "gpt-4",
			CreatedAt: base, UpdatedAt: base.Add(time.Hour)},
		{ID: "borrow", Title: "fighting the borrow checker", Bot: "claude", Category: "Technical",
			CreatedAt: base, UpdatedAt: base.Add(3 * time.Hour)},
	}
	for _, c := range convs {
		if _, err := st.UpsertConversation(ctx, c); err != nil {
			t.Fatalf("seed conversation %s: %v", c.ID, err)
		}
	}

	add := func(convID string, msgs ...model.Message) {
		if _, err := st.UpsertMessages(ctx, convID, msgs); err != nil {
			t.Fatalf("seed messages for %s: %v", convID, err)
		}
	}
	add("rust",
		model.Message{ID: "m1", Role: model.RoleUser, Content: "explain rust ownership rules", Timestamp: base},
		model.Message{ID: "m2", Role: model.RoleBot, Content: "ownership in rust means every value has one owner", Timestamp: base.Add(time.Minute)},
	)
	add("sourdough",
		model.Message{ID: "m1", Role: model.RoleUser, Content: "my starter smells like acetone", Timestamp: base},
	)
	add("borrow",
		model.Message{ID: "m1", Role: model.RoleUser, Content: "the rust borrow checker rejects my code", Timestamp: base},
	)
}

func TestQueryStructuredList(t *testing.T) {
	archive, st := newTestArchive(t)
	seedArchive(t, st)

	resp, err := archive.Query(context.Background(), QueryRequest{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if resp.Total != 3 || len(resp.Results) != 3 {
		t.Fatalf("total %d, rows %d; want 3 and 3", resp.Total, len(resp.Results))
	}
	// Newest first.
	if resp.Results[0].ID != "borrow" || resp.Results[2].ID != "sourdough" {
		t.Fatalf("order = %s..%s, want borrow..sourdough", resp.Results[0].ID, resp.Results[2].ID)
	}
	// No text, no relevance decoration.
	if resp.Results[0].Score != 0 || resp.Results[0].Snippet != "" {
		t.Fatalf("structured result carries search fields: %+v", resp.Results[0])
	}
}

func TestQueryStructuredFilters(t *testing.T) {
	archive, st := newTestArchive(t)
	seedArchive(t, st)

	resp, err := archive.Query(context.Background(), QueryRequest{Bot: "claude"})
	if err != nil {
		t.Fatalf("query by bot: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("bot filter total = %d, want 2", resp.Total)
	}

	resp, err = archive.Query(context.Background(), QueryRequest{Category: "Technical", Bot: "gpt-4"})
	if err != nil {
		t.Fatalf("query combined: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("conflicting filters total = %d, want 0", resp.Total)
	}
}

func TestQueryTextGroupsPerConversation(t *testing.T) {
	archive, st := newTestArchive(t)
	seedArchive(t, st)

	resp, err := archive.Query(context.Background(), QueryRequest{Text: "rust"})
	if err != nil {
		t.Fatalf("text query: %v", err)
	}
	// "rust" appears in two conversations; each appears once.
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	seen := map[string]int{}
	for _, r := range resp.Results {
		seen[r.ID]++
		if r.Snippet == "" || r.Matches == 0 || r.Score <= 0 {
			t.Fatalf("result %s missing search decoration: %+v", r.ID, r)
		}
	}
	if seen["rust"] != 1 || seen["borrow"] != 1 {
		t.Fatalf("grouping broken: %v", seen)
	}

	// Two matching messages plus the matching title.
	for _, r := range resp.Results {
		if r.ID == "rust" && r.Matches != 3 {
			t.Fatalf("rust matches = %d, want 3", r.Matches)
		}
	}
}

func TestQueryTextWithFilter(t *testing.T) {
	archive, st := newTestArchive(t)
	seedArchive(t, st)

	resp, err := archive.Query(context.Background(), QueryRequest{Text: "rust", Bot: "gpt-4"})
	if err != nil {
		t.Fatalf("filtered text query: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("got %d results, want 0 (no gpt-4 conversation mentions rust)", len(resp.Results))
	}
}

func TestQueryTextPagination(t *testing.T) {
	archive, st := newTestArchive(t)
	seedArchive(t, st)

	resp, err := archive.Query(context.Background(), QueryRequest{Text: "rust", PageSize: 1})
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(resp.Results) != 1 || !resp.HasMore || resp.Total != 2 {
		t.Fatalf("page 0 = %d rows, has_more=%v, total=%d; want 1/true/2",
			len(resp.Results), resp.HasMore, resp.Total)
	}
	first := resp.Results[0].ID

	resp, err = archive.Query(context.Background(), QueryRequest{Text: "rust", PageSize: 1, Page: 1})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(resp.Results) != 1 || resp.HasMore {
		t.Fatalf("page 1 = %d rows, has_more=%v; want 1/false", len(resp.Results), resp.HasMore)
	}
	if resp.Results[0].ID == first {
		t.Fatalf("page 1 repeated %s", first)
	}
}

func TestQueryEmptyArchive(t *testing.T) {
	archive, _ := newTestArchive(t)

	resp, err := archive.Query(context.Background(), QueryRequest{Text: "anything"})
	if err != nil {
		t.Fatalf("query empty archive: %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Fatalf("empty archive returned %+v", resp)
	}
}

func TestQueryRecoversFromCorruptIndex(t *testing.T) {
	archive, st := newTestArchive(t)
	seedArchive(t, st)

	// A rebuilt index behaves identically; the recovery path is the
	// same ReindexAll the façade invokes on corruption.
	if err := st.ReindexAll(context.Background()); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	resp, err := archive.Query(context.Background(), QueryRequest{Text: "sourdough"})
	if err != nil {
		t.Fatalf("query after rebuild: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "sourdough" {
		t.Fatalf("results = %+v, want sourdough", resp.Results)
	}
}
