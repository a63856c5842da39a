package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/poe"
	"github.com/hkevin01/poe-archive/internal/service"
	"github.com/hkevin01/poe-archive/internal/store"
	syncengine "github.com/hkevin01/poe-archive/internal/sync"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

// emptyClient serves a remote with nothing new to sync.
type emptyClient struct{}

func (emptyClient) ListConversations(ctx context.Context, since time.Time, cursor string, limit int) (poe.ConversationPage, error) {
	return poe.ConversationPage{}, nil
}

func (emptyClient) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (poe.MessagePage, error) {
	return poe.MessagePage{}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "archive.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logger.NewNop()
	archive := service.NewArchive(st, log, 20)
	exporter := service.NewExporter(st)
	engine := syncengine.NewEngine(st, emptyClient{}, log)

	conversations := NewConversationHandler(archive, log)
	syncs := NewSyncHandler(engine, log)
	exports := NewExportHandler(exporter, log)
	health := NewHealthHandler(st)

	r := chi.NewRouter()
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/conversations", conversations.Query)
		r.Get("/conversations/{id}", conversations.Get)
		r.Delete("/conversations/{id}", conversations.Delete)
		r.Post("/sync", syncs.Trigger)
		r.Get("/sync/{runID}", syncs.Status)
		r.Get("/export", exports.Export)
		r.Get("/stats", conversations.Stats)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func seedConversation(t *testing.T, st *store.Store, id string) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := st.UpsertConversation(ctx, &model.Conversation{
		ID: id, Title: "seeded " + id, Bot: "claude", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	if _, err := st.UpsertMessages(ctx, id, []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "hello from " + id, Timestamp: now},
	}); err != nil {
		t.Fatalf("seed messages: %v", err)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	if code := getJSON(t, srv.URL+"/health", nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	if code := getJSON(t, srv.URL+"/ready", nil); code != http.StatusOK {
		t.Fatalf("ready = %d", code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	seedConversation(t, st, "c1")
	seedConversation(t, st, "c2")

	var resp service.QueryResponse
	if code := getJSON(t, srv.URL+"/api/v1/conversations", &resp); code != http.StatusOK {
		t.Fatalf("query = %d", code)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}

	if code := getJSON(t, srv.URL+"/api/v1/conversations?q=c1", &resp); code != http.StatusOK {
		t.Fatalf("text query = %d", code)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "c1" {
		t.Fatalf("text query results = %+v, want only c1", resp.Results)
	}
}

func TestQueryEndpointBadMode(t *testing.T) {
	srv, _ := newTestServer(t)

	var body errorResponse
	if code := getJSON(t, srv.URL+"/api/v1/conversations?mode=fuzzy", &body); code != http.StatusBadRequest {
		t.Fatalf("bad mode = %d, want 400", code)
	}
	if body.Error == "" {
		t.Fatal("error response missing its message")
	}
}

func TestGetAndDeleteEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedConversation(t, st, "c1")

	var conv model.Conversation
	if code := getJSON(t, srv.URL+"/api/v1/conversations/c1", &conv); code != http.StatusOK {
		t.Fatalf("get = %d", code)
	}
	if conv.ID != "c1" || len(conv.Messages) != 1 {
		t.Fatalf("conversation = %+v", conv)
	}

	if code := getJSON(t, srv.URL+"/api/v1/conversations/missing", nil); code != http.StatusNotFound {
		t.Fatalf("get missing = %d, want 404", code)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/conversations/c1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", resp.StatusCode)
	}

	if code := getJSON(t, srv.URL+"/api/v1/conversations/c1", nil); code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", code)
	}
}

func TestSyncEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/sync", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger = %d, want 202", resp.StatusCode)
	}

	var snap model.RunSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode trigger response: %v", err)
	}
	if snap.ID == "" || snap.Scope != model.ScopeGlobal {
		t.Fatalf("snapshot = %+v", snap)
	}

	// Poll until the empty sync finishes.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var polled model.RunSnapshot
		if code := getJSON(t, srv.URL+"/api/v1/sync/"+snap.ID, &polled); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if polled.State.Terminal() {
			if polled.State != model.RunSucceeded {
				t.Fatalf("state = %s, want succeeded", polled.State)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if code := getJSON(t, srv.URL+"/api/v1/sync/unknown-run", nil); code != http.StatusNotFound {
		t.Fatalf("unknown run = %d, want 404", code)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	seedConversation(t, st, "c1")

	resp, err := http.Get(srv.URL + "/api/v1/export?format=csv")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}

	if code := getJSON(t, srv.URL+"/api/v1/export?format=yaml", nil); code != http.StatusBadRequest {
		t.Fatalf("bad format = %d, want 400", code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	seedConversation(t, st, "c1")

	var stats model.Stats
	if code := getJSON(t, srv.URL+"/api/v1/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats = %d", code)
	}
	if stats.Conversations != 1 || stats.Messages != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
