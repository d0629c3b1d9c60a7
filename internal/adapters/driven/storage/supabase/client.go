// Package supabase implements the storage ports against a Supabase
// project's PostgREST API. Every operation is a discrete HTTP call; the
// replace sequence is ordered so that a crash between calls is repaired
// by the next successful run for the same file identity.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// DefaultTimeout bounds each PostgREST call.
const DefaultTimeout = 30 * time.Second

// Config holds connection settings for a Supabase project.
type Config struct {
	// URL is the project base URL, e.g. https://xyz.supabase.co.
	URL string

	// ServiceKey is the service role key used for both the apikey and
	// Authorization headers.
	ServiceKey string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Client is a minimal PostgREST client scoped to the tables the pipeline
// owns.
type Client struct {
	http    *http.Client
	baseURL string
	key     string
}

// NewClient creates a PostgREST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("%w: supabase: URL and service key are required", domain.ErrInvalidConfig)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		key:     cfg.ServiceKey,
	}, nil
}

// do performs one PostgREST call. body (if non-nil) is JSON-encoded; out
// (if non-nil) receives the decoded response body.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, prefer string, body, out any) error {
	endpoint := c.baseURL + "/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, table, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, table, err)
		}
	}
	return nil
}

// eq builds a PostgREST equality filter value.
func eq(value string) string { return "eq." + value }
