package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hkevin01/poe-archive/internal/model"
)

// GetCursor returns the sync cursor for a scope. A scope that has never
// synced gets a zero-valued cursor, not an error.
func (s *Store) GetCursor(ctx context.Context, scope string) (model.SyncCursor, error) {
	c := model.SyncCursor{Scope: scope}
	var ms int64
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_synced_at, last_run_status FROM sync_cursors WHERE scope = ?`,
		scope,
	).Scan(&ms, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	c.LastSyncedAt = fromMillis(ms)
	c.LastRunStatus = model.RunState(status)
	return c, nil
}

// SetCursor upserts the cursor for a scope. The watermark never
// regresses: an older last_synced_at only updates the run status.
func (s *Store) SetCursor(ctx context.Context, c model.SyncCursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (scope, last_synced_at, last_run_status)
		VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			last_synced_at  = MAX(sync_cursors.last_synced_at, excluded.last_synced_at),
			last_run_status = excluded.last_run_status`,
		c.Scope, toMillis(c.LastSyncedAt), string(c.LastRunStatus))
	return err
}
