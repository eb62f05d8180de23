package system

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrPlatformUnavailable is returned when the platform API cannot be
	// reached or rejects the request.
	ErrPlatformUnavailable = errors.New("system: platform API unavailable")

	// ErrConfigInvalid is returned when the platform's configuration check
	// fails. The wrapped message carries the platform's own diagnostics.
	ErrConfigInvalid = errors.New("system: platform configuration check failed")
)

// CheckResult is the outcome of a platform configuration check.
type CheckResult struct {
	Valid  bool   `json:"valid"`
	Errors string `json:"errors,omitempty"`
}

// Client calls the platform's supervisory REST endpoints: configuration
// check before a restart and the restart itself. Both are separate,
// explicit operations; a commit never triggers either.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a platform actions client.
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

// CheckConfig asks the platform to validate its full configuration,
// including the generated package files.
func (c *Client) CheckConfig(ctx context.Context) (*CheckResult, error) {
	body, err := c.post(ctx, "/api/config/core/check_config")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result string `json:"result"`
		Errors string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding check_config response: %w", err)
	}

	result := &CheckResult{Valid: parsed.Result == "valid", Errors: parsed.Errors}
	if !result.Valid {
		return result, fmt.Errorf("%w: %s", ErrConfigInvalid, parsed.Errors)
	}
	return result, nil
}

// Restart asks the platform to restart so file-backed artifacts take
// effect. Callers should run CheckConfig first; a restart into a broken
// configuration strands the platform.
func (c *Client) Restart(ctx context.Context) error {
	_, err := c.post(ctx, "/api/services/homeassistant/restart")
	return err
}

// post issues an authenticated POST and returns the response body.
func (c *Client) post(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrPlatformUnavailable, path, resp.StatusCode)
	}
	return body, nil
}
