package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/store"
)

// ExportFormat selects the export serialization.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatCSV      ExportFormat = "csv"
	FormatMarkdown ExportFormat = "markdown"
)

// ParseExportFormat validates a format string.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatJSON, FormatCSV, FormatMarkdown:
		return ExportFormat(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// exportBatchSize pages conversations out of the store during export.
const exportBatchSize = 200

// Exporter writes archived conversations to a stream.
type Exporter struct {
	store *store.Store
}

// NewExporter creates an exporter.
func NewExporter(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

// Export writes every conversation matching the filter, with full
// message bodies, to w in the requested format.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format ExportFormat, filter model.ListFilter) error {
	conversations, err := e.collect(ctx, filter)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		return e.writeCSV(w, conversations)
	case FormatMarkdown:
		return e.writeMarkdown(w, conversations)
	default:
		return e.writeJSON(w, conversations)
	}
}

func (e *Exporter) collect(ctx context.Context, filter model.ListFilter) ([]*model.Conversation, error) {
	var out []*model.Conversation
	filter.Limit = exportBatchSize
	for offset := 0; ; offset += exportBatchSize {
		filter.Offset = offset
		page, err := e.store.ListConversations(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, summary := range page.Conversations {
			conv, err := e.store.GetConversation(ctx, summary.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		if !page.HasMore {
			return out, nil
		}
	}
}

func (e *Exporter) writeJSON(w io.Writer, conversations []*model.Conversation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"exported_at":   time.Now().UTC().Format(time.RFC3339),
		"count":         len(conversations),
		"conversations": conversations,
	})
}

func (e *Exporter) writeCSV(w io.Writer, conversations []*model.Conversation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"conversation_id", "bot", "title", "category",
		"message_id", "role", "content", "timestamp",
	}); err != nil {
		return err
	}
	for _, conv := range conversations {
		for _, m := range conv.Messages {
			if err := cw.Write([]string{
				conv.ID, conv.Bot, conv.Title, conv.Category,
				m.ID, string(m.Role), m.Content, m.Timestamp.Format(time.RFC3339),
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *Exporter) writeMarkdown(w io.Writer, conversations []*model.Conversation) error {
	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		if _, err := fmt.Fprintf(w, "# %s\n\n- Bot: %s\n- Updated: %s\n- Messages: %d\n\n",
			title, conv.Bot, conv.UpdatedAt.Format("2006-01-02 15:04"), conv.MessageCount); err != nil {
			return err
		}
		for _, m := range conv.Messages {
			speaker := "**You**"
			if m.Role == model.RoleBot {
				speaker = "**" + conv.Bot + "**"
			}
			if _, err := fmt.Fprintf(w, "%s (%s):\n\n%s\n\n",
				speaker, m.Timestamp.Format("15:04"), m.Content); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, "---\n\n"); err != nil {
			return err
		}
	}
	return nil
}
