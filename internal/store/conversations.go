package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hkevin01/poe-archive/internal/model"
)

// UpsertConversation inserts conv if its ID is unseen, otherwise updates
// the mutable fields (title, category, updated_at), but only when the
// incoming updated_at is not older than the stored one. Last writer wins
// by timestamp, not by arrival order, which is what makes re-fetched
// records safe to merge any number of times. Reports whether the row
// changed.
func (s *Store) UpsertConversation(ctx context.Context, conv *model.Conversation) (bool, error) {
	if conv.ID == "" {
		return false, &model.ValidationError{Field: "id", Reason: "empty"}
	}

	var changed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, title, bot, category, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title      = excluded.title,
				category   = CASE WHEN excluded.category != '' THEN excluded.category
				                  ELSE conversations.category END,
				updated_at = excluded.updated_at
			WHERE excluded.updated_at >= conversations.updated_at`,
			conv.ID, conv.Title, conv.Bot, conv.Category,
			toMillis(conv.CreatedAt), toMillis(conv.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert conversation %s: %w", conv.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// SetCategory updates a conversation's category label. Used by the
// enrichment step after a sync; a missing conversation is ErrNotFound.
func (s *Store) SetCategory(ctx context.Context, id, category string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET category = ? WHERE id = ?`, category, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetConversation returns the full conversation with its messages
// ordered by timestamp, insertion order breaking ties.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv := &model.Conversation{}
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, bot, category, created_at, updated_at, message_count
		FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.Bot, &conv.Category, &createdAt, &updatedAt, &conv.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.CreatedAt = fromMillis(createdAt)
	conv.UpdatedAt = fromMillis(updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, timestamp
		FROM messages WHERE conversation_id = ?
		ORDER BY timestamp ASC, rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Timestamp = fromMillis(ts)
		conv.Messages = append(conv.Messages, m)
	}
	return conv, rows.Err()
}

func filterClauses(f model.ListFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Bot != "" {
		conds = append(conds, "bot = ?")
		args = append(args, f.Bot)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		conds = append(conds, "updated_at >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "updated_at < ?")
		args = append(args, toMillis(f.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListConversations returns summaries matching the filter, newest first
// (updated_at DESC, id ASC for determinism on ties). An empty filter
// returns the whole corpus.
func (s *Store) ListConversations(ctx context.Context, f model.ListFilter) (*model.ListConversationsResponse, error) {
	where, args := filterClauses(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations"+where, args...,
	).Scan(&total); err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, title, bot, category, created_at, updated_at, message_count
		FROM conversations` + where + `
		ORDER BY updated_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &model.ListConversationsResponse{Total: total}
	for rows.Next() {
		var c model.ConversationSummary
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.Title, &c.Bot, &c.Category, &createdAt, &updatedAt, &c.MessageCount); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(createdAt)
		c.UpdatedAt = fromMillis(updatedAt)
		resp.Conversations = append(resp.Conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	resp.HasMore = f.Offset+len(resp.Conversations) < total
	return resp, nil
}

// SummariesByID returns summaries for the given conversation IDs,
// keyed by ID. Unknown IDs are simply absent from the result.
func (s *Store) SummariesByID(ctx context.Context, ids []string) (map[string]model.ConversationSummary, error) {
	out := make(map[string]model.ConversationSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, bot, category, created_at, updated_at, message_count
		FROM conversations WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c model.ConversationSummary
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.Title, &c.Bot, &c.Category, &createdAt, &updatedAt, &c.MessageCount); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(createdAt)
		c.UpdatedAt = fromMillis(updatedAt)
		out[c.ID] = c
	}
	return out, rows.Err()
}

// DeleteConversation removes the conversation and all its messages in
// one transaction. Deleting an absent conversation is not an error.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		return err
	})
}

// Stats returns corpus-wide totals grouped by bot and category.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	st := &model.Stats{
		Bots:       map[string]int{},
		Categories: map[string]int{},
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.Conversations); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.Messages); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT bot, COUNT(*) FROM conversations GROUP BY bot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bot string
		var n int
		if err := rows.Scan(&bot, &n); err != nil {
			return nil, err
		}
		st.Bots[bot] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows2, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM conversations WHERE category != '' GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows2.Close()
	for rows2.Next() {
		var cat string
		var n int
		if err := rows2.Scan(&cat, &n); err != nil {
			return nil, err
		}
		st.Categories[cat] = n
	}
	return st, rows2.Err()
}
