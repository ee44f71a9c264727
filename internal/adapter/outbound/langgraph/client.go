// Package langgraph provides the outbound adapter for the upstream agent
// runtime: a LangGraph-style REST API for conversation lifecycle plus a
// server-sent-event stream for runs.
package langgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/port/outbound"
)

const (
	// serviceName tags external-service failures for log correlation.
	serviceName = "agent-runtime"

	// maxErrorSnippet bounds the upstream response excerpt carried in
	// failure context.
	maxErrorSnippet = 500
)

// Client talks to the upstream agent runtime. It implements
// outbound.AgentRuntime.
type Client struct {
	baseURL     string
	assistantID string
	apiKey      string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sets the X-Api-Key header sent on every runtime call.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout sets the timeout for non-streaming runtime calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a runtime client for the given base URL and assistant.
func NewClient(baseURL, assistantID string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		assistantID: assistantID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateThread creates a conversation stamped with the given metadata and
// returns its identifier.
func (c *Client) CreateThread(ctx context.Context, metadata map[string]string) (string, error) {
	body := map[string]any{"metadata": metadata}
	resp, err := c.do(ctx, http.MethodPost, "/threads", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := c.expectSuccess(resp, "create thread"); err != nil {
		return "", err
	}

	var created struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&created); err != nil {
		return "", c.malformed("create thread", err)
	}
	if created.ThreadID == "" {
		return "", fault.ExternalService("Agent runtime returned no thread id").
			With("service_name", serviceName)
	}
	return created.ThreadID, nil
}

// ThreadState fetches the raw state of a conversation.
func (c *Client) ThreadState(ctx context.Context, threadID string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/state", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, c.threadNotFound(threadID)
	}
	if err := c.expectSuccess(resp, "get thread state"); err != nil {
		return nil, err
	}

	state, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, c.malformed("get thread state", err)
	}
	return state, nil
}

// DeleteThread removes a conversation. The runtime answers 200 or 204 on
// success.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/threads/"+threadID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return c.threadNotFound(threadID)
	}
	return c.expectSuccess(resp, "delete thread")
}

// searchHit is the runtime's wire shape for one search result.
type searchHit struct {
	ThreadID  string         `json:"thread_id"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata"`
	Values    struct {
		Messages []wireMessage `json:"messages"`
	} `json:"values"`
}

// wireMessage is the runtime's message shape. Content is usually a plain
// string but may be structured; structured content is carried verbatim as
// its JSON text.
type wireMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// SearchThreads returns conversations matching the query with messages
// mapped to API roles.
func (c *Client) SearchThreads(ctx context.Context, q outbound.ThreadQuery) ([]thread.Record, error) {
	metadata := q.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	body := map[string]any{
		"limit":    q.Limit,
		"offset":   q.Offset,
		"metadata": metadata,
	}
	resp, err := c.do(ctx, http.MethodPost, "/threads/search", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := c.expectSuccess(resp, "search threads"); err != nil {
		return nil, err
	}

	var hits []searchHit
	if err := json.NewDecoder(io.LimitReader(resp.Body, 50<<20)).Decode(&hits); err != nil {
		return nil, c.malformed("search threads", err)
	}

	records := make([]thread.Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, thread.Record{
			ThreadID:  hit.ThreadID,
			CreatedAt: parseRuntimeTime(hit.CreatedAt),
			UpdatedAt: parseRuntimeTime(hit.UpdatedAt),
			Status:    hit.Status,
			Metadata:  hit.Metadata,
			Messages:  mapMessages(hit.Values.Messages),
		})
	}
	return records, nil
}

// mapMessages converts runtime messages to the API shape. The runtime
// marks user turns as "human"; everything else maps to assistant.
func mapMessages(in []wireMessage) []thread.Message {
	out := make([]thread.Message, 0, len(in))
	for _, m := range in {
		role := thread.RoleAssistant
		if m.Type == "human" {
			role = thread.RoleUser
		}
		out = append(out, thread.Message{
			ID:      m.ID,
			Role:    role,
			Content: contentString(m.Content),
		})
	}
	return out
}

// contentString unwraps a plain string content value, or falls back to the
// raw JSON text for structured content.
func contentString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseRuntimeTime parses the runtime's RFC3339 timestamps, tolerating
// absent or malformed values as the zero time.
func parseRuntimeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// do issues one JSON request against the runtime.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.doWith(ctx, c.httpClient, method, path, body)
}

// doWith issues one JSON request using the given HTTP client. Streaming
// calls pass a client without a global timeout.
func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fault.Internal("Failed to encode runtime request").
				With("service_name", serviceName).
				With("path", path)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build runtime request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Error("agent runtime request failed", "method", method, "path", path, "error", err)
		return nil, fault.ExternalService("Agent runtime is unreachable").
			With("service_name", serviceName).
			With("path", path)
	}
	return resp, nil
}

// expectSuccess converts a non-2xx runtime response into an
// external-service failure carrying a truncated response snippet.
func (c *Client) expectSuccess(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
	c.logger.Error("agent runtime returned error status",
		"operation", op, "status", resp.StatusCode, "response", string(snippet))
	return fault.Newf(fault.KindExternalService, "Agent runtime failed to %s", op).
		With("service_name", serviceName).
		With("service_status_code", resp.StatusCode).
		With("service_response", string(snippet))
}

// malformed reports an unreadable or undecodable runtime response body.
func (c *Client) malformed(op string, err error) error {
	c.logger.Error("agent runtime returned malformed response", "operation", op, "error", err)
	return fault.Newf(fault.KindExternalService, "Agent runtime returned a malformed response for %s", op).
		With("service_name", serviceName)
}

// threadNotFound maps an upstream 404 for a conversation.
func (c *Client) threadNotFound(threadID string) error {
	return fault.NotFound("Thread not found").
		With("resource_type", "thread").
		With("resource_id", threadID)
}
