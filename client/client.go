// Package client provides a Go client for a remote deer-flow server,
// speaking its HTTP API and reading chat streams as server-sent events.
//
// Usage:
//
//	c := client.New("http://localhost:8000",
//	    client.WithUserID("researcher-1"),
//	)
//
//	// Start a research run and stream its frames.
//	st, err := c.ChatStream(ctx, "thread-1", "solid-state batteries")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	for {
//	    frame, err := st.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    chunk, _ := frame.Chunk()
//	    fmt.Println(chunk.Content)
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chansky6/deer-flow/api"
)

// Client talks to one deer-flow server.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		// No client-wide timeout: chat streams stay open for the run's
		// lifetime. Bound individual calls through ctx.
		c.http = &http.Client{}
	}
	return c
}

// ChatStream starts (or re-attaches to) the thread's research run and
// returns the live frame stream. An empty threadID lets the server mint
// one; it comes back in every frame's thread_id field.
func (c *Client) ChatStream(ctx context.Context, threadID, query string) (*Stream, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/chat/stream", api.ChatStreamRequest{
		ThreadID: threadID,
		Messages: []api.ChatMessage{{Role: "user", Content: query}},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	return newStream(resp.Body), nil
}

// ResumeStream re-attaches to a thread's stream, replaying events from
// fromIndex onward. Threads the server no longer tracks are replayed
// from persisted history.
func (c *Client) ResumeStream(ctx context.Context, threadID string, fromIndex int) (*Stream, error) {
	path := "/api/chat/stream/" + url.PathEscape(threadID)
	if fromIndex > 0 {
		path += "?from_index=" + strconv.Itoa(fromIndex)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	return newStream(resp.Body), nil
}

// History returns the thread's persisted events in order.
func (c *Client) History(ctx context.Context, threadID string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/chat/stream/"+url.PathEscape(threadID)+"/history", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	var out api.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deerflow/client: decode history: %w", err)
	}
	return out.Events, nil
}

// Conversations lists the caller's conversations, most recently updated
// first. Zero limit uses the server default.
func (c *Client) Conversations(ctx context.Context, limit, offset int) ([]api.ConversationResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	var out api.ListConversationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deerflow/client: decode conversations: %w", err)
	}
	return out.Conversations, nil
}

// Conversation returns one thread's conversation metadata.
func (c *Client) Conversation(ctx context.Context, threadID string) (*api.ConversationResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(threadID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	var out api.ConversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deerflow/client: decode conversation: %w", err)
	}
	return &out, nil
}

// UpdateTitle renames a conversation and returns the updated record.
func (c *Client) UpdateTitle(ctx context.Context, threadID, title string) (*api.ConversationResponse, error) {
	resp, err := c.do(ctx, http.MethodPatch, "/api/conversations/"+url.PathEscape(threadID),
		api.UpdateConversationRequest{Title: title})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}
	var out api.ConversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("deerflow/client: decode conversation: %w", err)
	}
	return &out, nil
}

// DeleteConversation removes a conversation and its event history.
func (c *Client) DeleteConversation(ctx context.Context, threadID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(threadID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return c.apiError(resp)
	}
	return nil
}

// do issues one API request. The caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("deerflow/client: encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("deerflow/client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(api.UserHeader, c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deerflow/client: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// apiError drains an error response into a useful message and closes it.
func (c *Client) apiError(resp *http.Response) error {
	defer resp.Body.Close()
	msg := resp.Status
	var body struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		msg = body.Error
	}
	return fmt.Errorf("deerflow/client: %s %s: %s",
		resp.Request.Method, resp.Request.URL.Path, msg)
}
