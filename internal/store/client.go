// Package store provides the service-action client for the external task
// store. Every call posts one action envelope, bounded by the configured
// timeout, scoped to one account and token.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the store no longer knows the referenced entity
// (deleted task, agent, or notification).
var ErrNotFound = errors.New("store: not found")

// Client calls the store's service-action endpoint.
type Client struct {
	baseURL string
	token   string
	account string
	http    *http.Client
}

// NewClient creates a store client. A non-positive timeout falls back to 30s.
func NewClient(baseURL, token, account string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		account: account,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope is the request body for every service action.
type envelope struct {
	Action string `json:"action"`
	Args   any    `json:"args,omitempty"`
}

// response is the store's uniform reply shape.
type response struct {
	OK    bool            `json:"ok"`
	Error *actionError    `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type actionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do posts one action and decodes the data payload into out (which may be
// nil for actions with no interesting result).
func (c *Client) do(ctx context.Context, action string, args, out any) error {
	body, err := json.Marshal(envelope{Action: action, Args: args})
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/actions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("store: build %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Account", c.account)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("store: read %s response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store: %s: unexpected status %d", action, resp.StatusCode)
	}

	var env response
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("store: decode %s response: %w", action, err)
	}
	if !env.OK {
		if env.Error != nil && env.Error.Code == "not_found" {
			return fmt.Errorf("store: %s: %s: %w", action, env.Error.Message, ErrNotFound)
		}
		msg := "unknown error"
		if env.Error != nil {
			msg = env.Error.Message
		}
		return fmt.Errorf("store: %s: %s", action, msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("store: decode %s data: %w", action, err)
		}
	}
	return nil
}
