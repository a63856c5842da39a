// Package store implements the durable archive: conversations, messages
// and sync cursors in SQLite, with FTS5 indexes over message content
// and conversation titles.
//
// Every mutating call runs inside its own short transaction, so a reader
// interleaved between two calls always sees a fully-consistent state and
// a failed reconciliation run can be retried from the last committed
// cursor.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

// migrations is the forward-only schema history. The index into this
// slice is persisted as PRAGMA user_version; a database created by a
// newer build is refused.
var migrations = []string{
	`
	CREATE TABLE conversations (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL DEFAULT '',
		bot           TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX idx_conversations_bot      ON conversations(bot);
	CREATE INDEX idx_conversations_category ON conversations(category);
	CREATE INDEX idx_conversations_updated  ON conversations(updated_at DESC, id ASC);

	CREATE TABLE messages (
		conversation_id TEXT NOT NULL,
		id              TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, id),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	CREATE INDEX idx_messages_conversation ON messages(conversation_id);
	CREATE INDEX idx_messages_timestamp    ON messages(timestamp);

	CREATE VIRTUAL TABLE messages_fts USING fts5(
		content,
		content='messages',
		content_rowid='rowid'
	);

	CREATE TRIGGER messages_fts_insert AFTER INSERT ON messages BEGIN
		INSERT INTO messages_fts(rowid, content) VALUES (new.rowid, new.content);
	END;

	CREATE TRIGGER messages_fts_delete AFTER DELETE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, content)
		VALUES ('delete', old.rowid, old.content);
	END;

	CREATE TABLE sync_cursors (
		scope           TEXT PRIMARY KEY,
		last_synced_at  INTEGER NOT NULL,
		last_run_status TEXT NOT NULL DEFAULT ''
	);
	`,
	`
	CREATE VIRTUAL TABLE conversations_fts USING fts5(
		title,
		content='conversations',
		content_rowid='rowid'
	);

	CREATE TRIGGER conversations_fts_insert AFTER INSERT ON conversations BEGIN
		INSERT INTO conversations_fts(rowid, title) VALUES (new.rowid, new.title);
	END;

	CREATE TRIGGER conversations_fts_update AFTER UPDATE OF title ON conversations BEGIN
		INSERT INTO conversations_fts(conversations_fts, rowid, title)
		VALUES ('delete', old.rowid, old.title);
		INSERT INTO conversations_fts(rowid, title) VALUES (new.rowid, new.title);
	END;

	CREATE TRIGGER conversations_fts_delete AFTER DELETE ON conversations BEGIN
		INSERT INTO conversations_fts(conversations_fts, rowid, title)
		VALUES ('delete', old.rowid, old.title);
	END;

	INSERT INTO conversations_fts(rowid, title)
	SELECT rowid, title FROM conversations;
	`,
}

// Store is the SQLite-backed storage layer.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (or creates) the archive database at path and brings the
// schema up to date.
func Open(path string, log *logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, logger: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.logger.Info("applied schema migration", zap.Int("version", i+1))
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error. A crash
// mid-call leaves either the old or the new state, never a partial one.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Millisecond-precision UTC timestamps; integer storage keeps range
// comparisons and ordering exact.

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// CheckIndex verifies both FTS indexes against their content tables. A
// mismatch is reported as an IndexCorruptionError so callers can rebuild.
func (s *Store) CheckIndex(ctx context.Context) error {
	for _, stmt := range []string{
		`INSERT INTO messages_fts(messages_fts, rank) VALUES ('integrity-check', 1)`,
		`INSERT INTO conversations_fts(conversations_fts, rank) VALUES ('integrity-check', 1)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &model.IndexCorruptionError{Err: err}
		}
	}
	return nil
}

// ReindexAll rebuilds the search indexes from the messages and
// conversations tables. The rebuild runs in one transaction, so
// concurrent readers see either the fully-old or fully-new index.
func (s *Store) ReindexAll(ctx context.Context) error {
	start := time.Now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages_fts(messages_fts) VALUES ('rebuild')`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversations_fts(conversations_fts) VALUES ('rebuild')`)
		return err
	})
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	s.logger.Info("search index rebuilt", zap.Duration("took", time.Since(start)))
	return nil
}
