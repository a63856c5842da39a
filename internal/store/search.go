package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hkevin01/poe-archive/internal/model"
)

// SearchMode selects how the query string is interpreted.
type SearchMode int

const (
	// MatchTerms tokenizes the query and searches the FTS index,
	// ranked by relevance. This is the default interactive path.
	MatchTerms SearchMode = iota
	// MatchLiteral matches the raw query as a substring, bypassing
	// tokenization. Slower, exact.
	MatchLiteral
	// MatchRegex compiles the query as a regular expression and scans
	// raw content. Slowest, exact.
	MatchRegex
)

// SearchOptions bounds a search call.
type SearchOptions struct {
	Mode   SearchMode
	Limit  int
	Offset int
}

const snippetRadius = 60

// Search returns matches over message content and conversation titles,
// most relevant first, ties broken by recency. A title hit carries an
// empty MessageID and the conversation's update time. Index corruption
// is reported as an IndexCorruptionError so the caller can rebuild and
// retry.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]model.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	switch opts.Mode {
	case MatchLiteral:
		return s.searchScan(ctx, opts, func(text string) (int, bool) {
			i := foldIndex(text, query)
			return i, i >= 0
		})
	case MatchRegex:
		re, err := regexp.Compile(query)
		if err != nil {
			return nil, &model.ValidationError{Field: "query", Reason: err.Error()}
		}
		return s.searchScan(ctx, opts, func(text string) (int, bool) {
			loc := re.FindStringIndex(text)
			if loc == nil {
				return 0, false
			}
			return loc[0], true
		})
	default:
		return s.searchFTS(ctx, query, opts)
	}
}

func (s *Store) searchFTS(ctx context.Context, query string, opts SearchOptions) ([]model.SearchHit, error) {
	match := sanitizeFTS(query)
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.conversation_id, m.id, m.timestamp,
		       snippet(messages_fts, 0, '[', ']', '…', 16),
		       messages_fts.rank
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		WHERE messages_fts MATCH ?
		UNION ALL
		SELECT c.id, '', c.updated_at,
		       snippet(conversations_fts, 0, '[', ']', '…', 16),
		       conversations_fts.rank
		FROM conversations_fts
		JOIN conversations c ON c.rowid = conversations_fts.rowid
		WHERE conversations_fts MATCH ?
		ORDER BY 5 ASC, 3 DESC
		LIMIT ? OFFSET ?`,
		match, match, opts.Limit, opts.Offset)
	if err != nil {
		if isFTSQueryErr(err) {
			return nil, &model.ValidationError{Field: "query", Reason: err.Error()}
		}
		return nil, &model.IndexCorruptionError{Err: err}
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		var ts int64
		var rank float64
		if err := rows.Scan(&h.ConversationID, &h.MessageID, &ts, &h.Snippet, &rank); err != nil {
			return nil, err
		}
		h.Timestamp = fromMillis(ts)
		// fts5 rank is negative bm25; flip so higher means better.
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// isFTSQueryErr distinguishes a MATCH expression the FTS5 parser
// rejected from genuine index damage. Only the latter warrants a
// rebuild.
func isFTSQueryErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unterminated string") ||
		strings.Contains(msg, "malformed MATCH")
}

// searchScan applies match in Go over message content and conversation
// titles, newest first. Used for the literal and regex modes that
// bypass the index.
func (s *Store) searchScan(ctx context.Context, opts SearchOptions, match func(string) (int, bool)) ([]model.SearchHit, error) {
	hits, err := s.scanMessages(ctx, match)
	if err != nil {
		return nil, err
	}
	titleHits, err := s.scanTitles(ctx, match)
	if err != nil {
		return nil, err
	}
	hits = append(hits, titleHits...)
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Timestamp.After(hits[j].Timestamp)
	})

	if opts.Offset >= len(hits) {
		return nil, nil
	}
	hits = hits[opts.Offset:]
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func (s *Store) scanMessages(ctx context.Context, match func(string) (int, bool)) ([]model.SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, id, content, timestamp
		FROM messages ORDER BY timestamp DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var convID, msgID, content string
		var ts int64
		if err := rows.Scan(&convID, &msgID, &content, &ts); err != nil {
			return nil, err
		}
		pos, ok := match(content)
		if !ok {
			continue
		}
		hits = append(hits, model.SearchHit{
			ConversationID: convID,
			MessageID:      msgID,
			Snippet:        window(content, pos),
			Score:          1,
			Timestamp:      fromMillis(ts),
		})
	}
	return hits, rows.Err()
}

func (s *Store) scanTitles(ctx context.Context, match func(string) (int, bool)) ([]model.SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, updated_at
		FROM conversations ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var id, title string
		var ts int64
		if err := rows.Scan(&id, &title, &ts); err != nil {
			return nil, err
		}
		pos, ok := match(title)
		if !ok {
			continue
		}
		hits = append(hits, model.SearchHit{
			ConversationID: id,
			Snippet:        window(title, pos),
			Score:          1,
			Timestamp:      fromMillis(ts),
		})
	}
	return hits, rows.Err()
}

// foldIndex is a case-insensitive strings.Index. Lowercasing can change
// a rune's byte width, so the offset is found by folding rune-by-rune
// against s itself instead of indexing into a lowered copy.
func foldIndex(s, substr string) int {
	needle := strings.ToLower(substr)
	if needle == "" {
		return 0
	}
	for i := range s {
		if hasFoldPrefix(s[i:], needle) {
			return i
		}
	}
	return -1
}

// hasFoldPrefix reports whether s starts with lowered, comparing runes
// after folding each rune of s. lowered must already be lowercase.
func hasFoldPrefix(s, lowered string) bool {
	for lowered != "" {
		if s == "" {
			return false
		}
		sr, sn := utf8.DecodeRuneInString(s)
		lr, ln := utf8.DecodeRuneInString(lowered)
		if unicode.ToLower(sr) != lr {
			return false
		}
		s, lowered = s[sn:], lowered[ln:]
	}
	return true
}

// window extracts a snippet centered on the match position. pos must be
// a byte offset at a rune boundary of content.
func window(content string, pos int) string {
	runes := []rune(content)
	rpos := len([]rune(content[:pos]))
	start := rpos - snippetRadius
	end := rpos + snippetRadius
	prefix, suffix := "", ""
	if start < 0 {
		start = 0
	} else if start > 0 {
		prefix = "…"
	}
	if end > len(runes) {
		end = len(runes)
	} else if end < len(runes) {
		suffix = "…"
	}
	return prefix + string(runes[start:end]) + suffix
}

// sanitizeFTS turns free text into an FTS5 query that cannot fail to
// parse: each term is quoted, with interior quotes doubled per the
// FTS5 string escape. "fix auth bug" becomes `"fix" "auth" "bug"`.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}
