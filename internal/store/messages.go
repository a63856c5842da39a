package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hkevin01/poe-archive/internal/model"
)

// UpsertMessages inserts only the messages whose IDs are not already
// present for the conversation; stored messages are never modified.
// message_count is recomputed in the same transaction, and the FTS
// triggers index the new content inside it too, so the search index is
// never behind committed data. Returns the number of messages inserted.
func (s *Store) UpsertMessages(ctx context.Context, conversationID string, msgs []model.Message) (int, error) {
	if conversationID == "" {
		return 0, &model.ValidationError{Field: "conversation_id", Reason: "empty"}
	}

	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return &model.StorageIntegrityError{
				Reason: fmt.Sprintf("messages for unknown conversation %s", conversationID),
			}
		}
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (conversation_id, id, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range msgs {
			if m.ConversationID != "" && m.ConversationID != conversationID {
				return &model.StorageIntegrityError{
					Reason: fmt.Sprintf("message %s belongs to conversation %s, not %s",
						m.ID, m.ConversationID, conversationID),
				}
			}
			if m.ID == "" {
				return &model.ValidationError{Field: "message.id", Reason: "empty"}
			}
			res, err := stmt.ExecContext(ctx,
				conversationID, m.ID, string(m.Role), m.Content, toMillis(m.Timestamp))
			if err != nil {
				return fmt.Errorf("insert message %s: %w", m.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations
			SET message_count = (SELECT COUNT(*) FROM messages WHERE conversation_id = ?)
			WHERE id = ?`, conversationID, conversationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
