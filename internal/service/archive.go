// Package service provides the query façade composing the storage layer
// with the search index. It is the single entry point for the
// interactive path and never talks to the remote service.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/internal/store"
	"github.com/hkevin01/poe-archive/pkg/logger"
	"github.com/hkevin01/poe-archive/pkg/metrics"
)

// searchFetchCap bounds how many raw hits a text query pulls from the
// index before grouping per conversation.
const searchFetchCap = 1000

// Archive is the query façade.
type Archive struct {
	store    *store.Store
	logger   *logger.Logger
	pageSize int
}

// NewArchive creates the façade. pageSize is the default page size when
// a request does not specify one.
func NewArchive(st *store.Store, log *logger.Logger, pageSize int) *Archive {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Archive{store: st, logger: log, pageSize: pageSize}
}

// QueryRequest carries free text plus structured filters. Everything is
// optional; a zero request returns the full corpus newest-first.
type QueryRequest struct {
	Text     string
	Mode     store.SearchMode
	Bot      string
	Category string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// QueryResult is one conversation in a query response. Score, Matches
// and Snippet are only populated for text queries.
type QueryResult struct {
	model.ConversationSummary
	Score   float64 `json:"score,omitempty"`
	Matches int     `json:"matches,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
}

// QueryResponse is a page of query results.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	HasMore bool          `json:"has_more"`
}

// Query answers the interactive path. With text it ranks by relevance
// then recency; without, it is a pure structured listing ordered by
// recency then ID.
func (a *Archive) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = a.pageSize
	}
	if req.Page < 0 {
		req.Page = 0
	}

	if req.Text == "" {
		return a.structuredList(ctx, req, pageSize)
	}
	return a.textQuery(ctx, req, pageSize)
}

func (a *Archive) structuredList(ctx context.Context, req QueryRequest, pageSize int) (*QueryResponse, error) {
	list, err := a.store.ListConversations(ctx, model.ListFilter{
		Bot:      req.Bot,
		Category: req.Category,
		From:     req.From,
		To:       req.To,
		Limit:    pageSize,
		Offset:   req.Page * pageSize,
	})
	if err != nil {
		return nil, err
	}

	resp := &QueryResponse{
		Results: make([]QueryResult, 0, len(list.Conversations)),
		Total:   list.Total,
		Page:    req.Page,
		HasMore: list.HasMore,
	}
	for _, c := range list.Conversations {
		resp.Results = append(resp.Results, QueryResult{ConversationSummary: c})
	}
	return resp, nil
}

func (a *Archive) textQuery(ctx context.Context, req QueryRequest, pageSize int) (*QueryResponse, error) {
	start := time.Now()
	hits, err := a.search(ctx, req.Text, req.Mode)
	if err != nil {
		return nil, err
	}
	metrics.SearchDuration.WithLabelValues(modeLabel(req.Mode)).Observe(time.Since(start).Seconds())

	// Group hits per conversation: best hit carries the snippet,
	// additional matches contribute with diminishing returns.
	type group struct {
		score   float64
		matches int
		snippet string
	}
	groups := make(map[string]*group)
	order := make([]string, 0)
	for _, h := range hits {
		g, ok := groups[h.ConversationID]
		if !ok {
			groups[h.ConversationID] = &group{score: h.Score, matches: 1, snippet: h.Snippet}
			order = append(order, h.ConversationID)
			continue
		}
		g.matches++
		g.score += h.Score * 0.5
	}

	summaries, err := a.store.SummariesByID(ctx, order)
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(order))
	for _, id := range order {
		summary, ok := summaries[id]
		if !ok {
			continue
		}
		if !matchesFilter(summary, req) {
			continue
		}
		g := groups[id]
		results = append(results, QueryResult{
			ConversationSummary: summary,
			Score:               g.score,
			Matches:             g.matches,
			Snippet:             g.snippet,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].UpdatedAt.Equal(results[j].UpdatedAt) {
			return results[i].UpdatedAt.After(results[j].UpdatedAt)
		}
		return results[i].ID < results[j].ID
	})

	total := len(results)
	startIdx := req.Page * pageSize
	if startIdx > total {
		startIdx = total
	}
	endIdx := startIdx + pageSize
	if endIdx > total {
		endIdx = total
	}

	return &QueryResponse{
		Results: results[startIdx:endIdx],
		Total:   total,
		Page:    req.Page,
		HasMore: endIdx < total,
	}, nil
}

// search hits the index, rebuilding it once if it reports corruption.
func (a *Archive) search(ctx context.Context, text string, mode store.SearchMode) ([]model.SearchHit, error) {
	opts := store.SearchOptions{Mode: mode, Limit: searchFetchCap}
	hits, err := a.store.Search(ctx, text, opts)

	var corrupt *model.IndexCorruptionError
	if errors.As(err, &corrupt) {
		a.logger.Warn("search index corrupted, rebuilding", zap.Error(err))
		metrics.IndexRebuildsTotal.Inc()
		if rerr := a.store.ReindexAll(ctx); rerr != nil {
			return nil, rerr
		}
		hits, err = a.store.Search(ctx, text, opts)
	}
	return hits, err
}

func matchesFilter(c model.ConversationSummary, req QueryRequest) bool {
	if req.Bot != "" && c.Bot != req.Bot {
		return false
	}
	if req.Category != "" && c.Category != req.Category {
		return false
	}
	if !req.From.IsZero() && c.UpdatedAt.Before(req.From) {
		return false
	}
	if !req.To.IsZero() && !c.UpdatedAt.Before(req.To) {
		return false
	}
	return true
}

func modeLabel(m store.SearchMode) string {
	switch m {
	case store.MatchLiteral:
		return "literal"
	case store.MatchRegex:
		return "regex"
	default:
		return "terms"
	}
}

// GetConversation returns the full conversation with ordered messages.
func (a *Archive) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return a.store.GetConversation(ctx, id)
}

// DeleteConversation removes a conversation and its messages. Idempotent.
func (a *Archive) DeleteConversation(ctx context.Context, id string) error {
	return a.store.DeleteConversation(ctx, id)
}

// Stats returns corpus totals.
func (a *Archive) Stats(ctx context.Context) (*model.Stats, error) {
	return a.store.Stats(ctx)
}
