// Package platform talks to the store-management backend: admin login,
// behavior settings, the price list and the call-log collector all live
// behind one base URL with bearer-token auth.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Client is an authenticated HTTP client for the store platform.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// Config configures the platform client.
type Config struct {
	BaseURL    string
	AdminEmail string
	AdminPass  string
	HTTPClient *http.Client
}

// NewClient creates a platform client. Credentials are verified lazily on
// the first authorized request, not here.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		email:      cfg.AdminEmail,
		password:   cfg.AdminPass,
		httpClient: httpClient,
	}, nil
}

// Token returns a cached access token, logging in when none is held yet.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}
	return c.loginLocked(ctx)
}

// RefreshToken discards the cached token and logs in again.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var payload struct {
		Tokens struct {
			Access string `json:"access"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if payload.Tokens.Access == "" {
		return "", fmt.Errorf("access token missing in login response")
	}

	c.token = payload.Tokens.Access
	return c.token, nil
}

// GetJSON performs an authorized GET of path (relative to the base URL) and
// decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, true)
}

// PostJSON performs an authorized POST of in to path, decoding any response
// body into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, path, body, out, true)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any, retryAuth bool) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && retryAuth {
		// Token expired server-side; retry once with a fresh login.
		if _, err := c.RefreshToken(ctx); err != nil {
			return fmt.Errorf("%s %s: re-auth: %w", method, path, err)
		}
		log.Printf("[platform] token refreshed after 401 on %s %s", method, path)
		return c.doJSON(ctx, method, path, body, out, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
