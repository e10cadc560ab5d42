// Package gateway provides the client for the agent-execution gateway. The
// gateway runs the actual agent sessions; this engine only sends rendered
// instructions to a named session and collects the reply. Routing is by the
// stable per-agent session key so the gateway keeps conversational state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/zulandar/trainorder/internal/models"
)

// Reply is the gateway's answer to one instruction. A non-empty ToolCalls
// set means the agent wants actions executed before it produces final text.
type Reply struct {
	RequestID string            `json:"request_id"`
	Text      string            `json:"text"`
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`
}

// Empty reports whether the reply carries neither text nor tool calls.
func (r *Reply) Empty() bool {
	return r.Text == "" && len(r.ToolCalls) == 0
}

// Client talks to the gateway's HTTP surface.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a gateway client. A non-positive timeout falls back to 30s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Send delivers a rendered instruction to the named session and returns the
// agent's reply.
func (c *Client) Send(ctx context.Context, sessionKey, instruction string) (*Reply, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("gateway: sessionKey is required")
	}
	if instruction == "" {
		return nil, fmt.Errorf("gateway: instruction is required")
	}

	requestID := uuid.New().String()
	body := map[string]any{
		"request_id":  requestID,
		"instruction": instruction,
	}

	var reply Reply
	if err := c.post(ctx, c.sessionPath(sessionKey, "messages"), body, &reply); err != nil {
		return nil, err
	}
	if reply.RequestID == "" {
		reply.RequestID = requestID
	}
	return &reply, nil
}

// SubmitToolResults sends tool-call outcomes back to the session and returns
// the agent's final reply text.
func (c *Client) SubmitToolResults(ctx context.Context, sessionKey, requestID string, results []models.ToolResult) (string, error) {
	if sessionKey == "" {
		return "", fmt.Errorf("gateway: sessionKey is required")
	}
	if requestID == "" {
		return "", fmt.Errorf("gateway: requestID is required")
	}

	body := map[string]any{
		"request_id": requestID,
		"results":    results,
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, c.sessionPath(sessionKey, "tool_results"), body, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) sessionPath(sessionKey, suffix string) string {
	return fmt.Sprintf("%s/sessions/%s/%s", c.baseURL, url.PathEscape(sessionKey), suffix)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gateway: decode response: %w", err)
		}
	}
	return nil
}
