package poe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/model"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

const defaultBaseURL = "https://poe.com"

// HTTPClient talks to the remote GraphQL endpoint. It handles request
// signing headers and 429 backoff; session refresh lives in the
// credential source.
type HTTPClient struct {
	rest   *resty.Client
	creds  CredentialSource
	logger *logger.Logger
}

// NewHTTPClient creates a client against baseURL (the production
// endpoint when empty).
func NewHTTPClient(baseURL string, creds CredentialSource, log *logger.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(20 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		})
	return &HTTPClient{rest: rest, creds: creds, logger: log}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []gqlError     `json:"errors,omitempty"`
}

const chatListQuery = `
query ChatListPaginationQuery($count: Int!, $cursor: String) {
  chats(first: $count, after: $cursor) {
    edges {
      node {
        id
        title
        creationTime
        lastMessageTime
        bot {
          displayName
          nickname
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

const chatMessagesQuery = `
query ChatMessagesQuery($chatId: ID!, $count: Int!, $cursor: String) {
  chat(id: $chatId) {
    messagesConnection(first: $count, after: $cursor) {
      edges {
        node {
          messageId
          author
          text
          creationTime
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

func (c *HTTPClient) post(ctx context.Context, req gqlRequest) (map[string]any, error) {
	auth, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, &model.TransientFetchError{Op: "credentials", Err: err}
	}

	var out gqlResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Poe-Formkey", auth.FormKey).
		SetHeader("Cookie", "p-b="+auth.PBCookie).
		SetBody(req).
		SetResult(&out).
		Post("/api/gql_POST")
	if err != nil {
		return nil, &model.TransientFetchError{Op: "gql_POST", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &model.TransientFetchError{
			Op:  "gql_POST",
			Err: fmt.Errorf("status %d", resp.StatusCode()),
		}
	}
	if len(out.Errors) > 0 {
		return nil, &model.TransientFetchError{
			Op:  "gql_POST",
			Err: fmt.Errorf("graphql: %s", out.Errors[0].Message),
		}
	}
	return out.Data, nil
}

// ListConversations implements Client. The since bound is applied
// client-side: the remote listing is newest-first, so paging stops once
// records older than the watermark appear.
func (c *HTTPClient) ListConversations(ctx context.Context, since time.Time, cursor string, limit int) (ConversationPage, error) {
	vars := map[string]any{"count": limit}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	data, err := c.post(ctx, gqlRequest{Query: chatListQuery, Variables: vars})
	if err != nil {
		return ConversationPage{}, err
	}

	edges, pageInfo := connection(data, "chats")
	page := ConversationPage{}
	reachedWatermark := false
	for _, node := range edges {
		if !since.IsZero() {
			if ts, ok := parseTimestamp(pick(node, "lastMessageTime", "updatedAt", "updated_at")); ok && ts.Before(since) {
				reachedWatermark = true
				continue
			}
		}
		page.Items = append(page.Items, node)
	}
	if next, ok := pageInfo["endCursor"].(string); ok && !reachedWatermark {
		if more, _ := pageInfo["hasNextPage"].(bool); more {
			page.NextCursor = next
		}
	}
	c.logger.Debug("fetched conversation page",
		zap.Int("items", len(page.Items)), zap.Bool("more", page.NextCursor != ""))
	return page, nil
}

// ListMessages implements Client.
func (c *HTTPClient) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (MessagePage, error) {
	vars := map[string]any{"chatId": conversationID, "count": limit}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	data, err := c.post(ctx, gqlRequest{Query: chatMessagesQuery, Variables: vars})
	if err != nil {
		return MessagePage{}, err
	}

	chat, _ := data["chat"].(map[string]any)
	edges, pageInfo := connection(chat, "messagesConnection")
	page := MessagePage{Items: edges}
	if next, ok := pageInfo["endCursor"].(string); ok {
		if more, _ := pageInfo["hasNextPage"].(bool); more {
			page.NextCursor = next
		}
	}
	return page, nil
}

// connection unpacks a relay-style connection: the node of every edge
// plus the pageInfo block.
func connection(data map[string]any, key string) ([]map[string]any, map[string]any) {
	conn, _ := data[key].(map[string]any)
	rawEdges, _ := conn["edges"].([]any)

	var nodes []map[string]any
	for _, e := range rawEdges {
		edge, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if node, ok := edge["node"].(map[string]any); ok {
			nodes = append(nodes, node)
		}
	}
	pageInfo, _ := conn["pageInfo"].(map[string]any)
	if pageInfo == nil {
		pageInfo = map[string]any{}
	}
	return nodes, pageInfo
}

var _ Client = (*HTTPClient)(nil)
