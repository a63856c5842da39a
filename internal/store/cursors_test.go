package store

import (
	"context"
	"testing"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
)

func TestGetCursorUnknownScope(t *testing.T) {
	st := newTestStore(t)

	c, err := st.GetCursor(context.Background(), "global")
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if !c.LastSyncedAt.IsZero() {
		t.Fatalf("fresh cursor watermark = %v, want zero", c.LastSyncedAt)
	}
}

func TestSetCursorMonotonic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := st.SetCursor(ctx, model.SyncCursor{
		Scope: "global", LastSyncedAt: base, LastRunStatus: model.RunSucceeded,
	}); err != nil {
		t.Fatalf("set cursor: %v", err)
	}

	// An older watermark must not move the cursor back, but the status
	// should still reflect the latest run.
	if err := st.SetCursor(ctx, model.SyncCursor{
		Scope: "global", LastSyncedAt: base.Add(-time.Hour), LastRunStatus: model.RunPartiallyFailed,
	}); err != nil {
		t.Fatalf("set stale cursor: %v", err)
	}

	c, err := st.GetCursor(ctx, "global")
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if !c.LastSyncedAt.Equal(base) {
		t.Fatalf("watermark = %v, want %v", c.LastSyncedAt, base)
	}
	if c.LastRunStatus != model.RunPartiallyFailed {
		t.Fatalf("status = %s, want partially_failed", c.LastRunStatus)
	}
}

func TestCursorScopesIndependent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := st.SetCursor(ctx, model.SyncCursor{
		Scope: "global", LastSyncedAt: base, LastRunStatus: model.RunSucceeded,
	}); err != nil {
		t.Fatalf("set global: %v", err)
	}
	if err := st.SetCursor(ctx, model.SyncCursor{
		Scope: "claude", LastSyncedAt: base.Add(time.Hour), LastRunStatus: model.RunSucceeded,
	}); err != nil {
		t.Fatalf("set bot scope: %v", err)
	}

	g, _ := st.GetCursor(ctx, "global")
	b, _ := st.GetCursor(ctx, "claude")
	if !g.LastSyncedAt.Equal(base) || !b.LastSyncedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("scopes bled into each other: global=%v bot=%v", g.LastSyncedAt, b.LastSyncedAt)
	}
}
