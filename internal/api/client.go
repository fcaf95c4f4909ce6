// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/galaxycore/galaxyview/pkg/core"
)

// ErrTransport wraps network failures, server errors and unreadable responses.
var ErrTransport = errors.New("transport error")

// maxBody caps how much of a response is read.
const maxBody = 16 << 20

// envelope is the backend's response wrapper.
type envelope struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client talks to the game backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client. token is sent as a bearer token when set.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithTimeout replaces the HTTP timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Healthcheck checks if the backend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: healthcheck request failed: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthcheck returned status %d", ErrTransport, resp.StatusCode)
	}
	return nil
}

// FetchSnapshot reads the full galaxy state for the authenticated player.
func (c *Client) FetchSnapshot(ctx context.Context) (*core.Snapshot, error) {
	var snap core.Snapshot
	if err := c.get(ctx, "/api/snapshot", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// FetchEconomy reads the player's money, metal, income and debt.
func (c *Client) FetchEconomy(ctx context.Context) (core.Economy, error) {
	var econ core.Economy
	err := c.get(ctx, "/api/economy", &econ)
	return econ, err
}

// FetchTech reads the player's research state and budget.
func (c *Client) FetchTech(ctx context.Context) (core.TechState, error) {
	var tech core.TechState
	err := c.get(ctx, "/api/tech", &tech)
	return tech, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	env, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK || !env.OK {
		return fmt.Errorf("%w: GET %s returned status %d: %s", ErrTransport, path, status, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
	}
	return nil
}

// Submit validates cmd locally and posts it. A validation failure never
// reaches the network. A refusal by the backend is returned as
// *core.RejectionError carrying the backend's message verbatim.
func (c *Client) Submit(ctx context.Context, cmd core.Command) (core.CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return core.CommandResult{}, err
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return core.CommandResult{}, fmt.Errorf("failed to encode %s: %w", cmd.Kind(), err)
	}

	path := "/api/commands/" + cmd.Kind()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return core.CommandResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, status, err := c.do(req)
	if err != nil {
		return core.CommandResult{}, err
	}

	switch {
	case status >= 500:
		return core.CommandResult{}, fmt.Errorf("%w: POST %s returned status %d", ErrTransport, path, status)
	case status >= 400 || !env.OK:
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return core.CommandResult{}, &core.RejectionError{Kind: cmd.Kind(), Message: msg}
	}

	result := core.CommandResult{Accepted: true, Message: env.Message}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &result.Data); err != nil {
			return core.CommandResult{}, fmt.Errorf("%w: decode %s result: %v", ErrTransport, cmd.Kind(), err)
		}
	}
	return result, nil
}

func (c *Client) do(req *http.Request) (envelope, int, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, 0, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return envelope{}, resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode < 400 {
				return envelope{}, resp.StatusCode, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
			}
			env = envelope{Message: strings.TrimSpace(string(raw))}
		}
	}
	return env, resp.StatusCode, nil
}
