package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/service"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

// ExportHandler streams archive dumps in a choice of formats.
type ExportHandler struct {
	exporter *service.Exporter
	logger   *logger.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exporter *service.Exporter, log *logger.Logger) *ExportHandler {
	return &ExportHandler{exporter: exporter, logger: log}
}

// Export handles GET /api/v1/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := service.ParseExportFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := model.ListFilter{
		Bot:      q.Get("bot"),
		Category: q.Get("category"),
	}
	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filter.To = t
	}

	w.Header().Set("Content-Type", contentTypeFor(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "conversations."+extensionFor(format)))

	if err := h.exporter.Export(r.Context(), w, format, filter); err != nil {
		// Headers are already out; all we can do is log and cut the stream.
		h.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
	}
}

func contentTypeFor(f service.ExportFormat) string {
	switch f {
	case service.FormatCSV:
		return "text/csv"
	case service.FormatMarkdown:
		return "text/markdown"
	default:
		return "application/json"
	}
}

func extensionFor(f service.ExportFormat) string {
	switch f {
	case service.FormatCSV:
		return "csv"
	case service.FormatMarkdown:
		return "md"
	default:
		return "json"
	}
}
