package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/service"
	"github.com/hkevin01/poe-archive/internal/store"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

// ConversationHandler serves the archive query surface.
type ConversationHandler struct {
	archive *service.Archive
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(archive *service.Archive, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{archive: archive, logger: log}
}

// Query handles GET /api/v1/conversations. Free text, structured
// filters and pagination all come in as query parameters.
func (h *ConversationHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.QueryRequest{
		Text:     q.Get("q"),
		Bot:      q.Get("bot"),
		Category: q.Get("category"),
	}

	mode, err := parseSearchMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Mode = mode

	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		req.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		req.To = t
	}

	req.Page = parseIntDefault(q.Get("page"), 0)
	req.PageSize = parseIntDefault(q.Get("page_size"), 0)

	resp, err := h.archive.Query(r.Context(), req)
	if err != nil {
		writeDomainError(w, h.logger, err, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, err := h.archive.GetConversation(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger.With(zap.String("conversation_id", id)), err, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.archive.DeleteConversation(r.Context(), id); err != nil {
		writeDomainError(w, h.logger.With(zap.String("conversation_id", id)), err, "failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/stats
func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.archive.Stats(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func parseSearchMode(s string) (store.SearchMode, error) {
	switch s {
	case "", "terms":
		return store.MatchTerms, nil
	case "literal":
		return store.MatchLiteral, nil
	case "regex":
		return store.MatchRegex, nil
	default:
		return 0, &model.ValidationError{Field: "mode", Reason: "must be terms, literal or regex"}
	}
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
